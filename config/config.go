// SPDX-License-Identifier: EPL-2.0

// Package config loads engine settings with viper.
//
// Values come, in increasing priority, from defaults, an optional config file,
// a .env file and SPATIALPBX_ prefixed environment variables, so
// SPATIALPBX_OUTPUT_MODE overrides output.mode.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ik5/spatialpbx/backend"
	"github.com/ik5/spatialpbx/spatial"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const envPrefix = "SPATIALPBX"

// Config is the decoded engine configuration.
type Config struct {
	Output Output
	Volume spatial.Buses
	Engine Engine
	Log    Log
}

type Output struct {
	Mode       backend.Mode
	SampleRate int
	Buffer     time.Duration
}

type Engine struct {
	UpdateInterval time.Duration
	// Metering publishes level events for every voice.
	Metering bool
	// Speed and Pitch are applied to every voice; 1 leaves it unchanged.
	Speed float64
	Pitch float64
}

type Log struct {
	Level string
	File  string
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output.mode", string(backend.ModeDevice))
	v.SetDefault("output.sample_rate", backend.DefaultSampleRate)
	v.SetDefault("output.buffer_ms", int(backend.DefaultBuffer/time.Millisecond))

	v.SetDefault("volume.main", 1.0)
	v.SetDefault("volume.other", 1.0)
	v.SetDefault("volume.unfocused", 0.5)
	v.SetDefault("volume.sfx", 1.0)
	v.SetDefault("volume.livestream", 1.0)

	v.SetDefault("engine.update_interval", "100ms")
	v.SetDefault("engine.metering", false)
	v.SetDefault("engine.speed", 1.0)
	v.SetDefault("engine.pitch", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// New returns a viper instance with defaults and environment overrides.
// A missing envFile is not an error; "" skips it.
func New(envFile string) (*viper.Viper, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Load reads path (skipped when "") on top of New(".env") and decodes it.
func Load(path string) (Config, *viper.Viper, error) {
	v, err := New(".env")
	if err != nil {
		return Config{}, nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := Decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

func unit(v *viper.Viper, key string) (float64, error) {
	f := v.GetFloat64(key)
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("%w: %s = %v", ErrVolumeRange, key, f)
	}
	return f, nil
}

// Decode validates and converts the current values of v.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config

	mode, err := backend.ParseMode(v.GetString("output.mode"))
	if err != nil {
		return cfg, err
	}
	cfg.Output = Output{
		Mode:       mode,
		SampleRate: v.GetInt("output.sample_rate"),
		Buffer:     time.Duration(v.GetInt("output.buffer_ms")) * time.Millisecond,
	}
	if cfg.Output.SampleRate <= 0 {
		return cfg, fmt.Errorf("%w: output.sample_rate = %d", ErrInvalidValue, cfg.Output.SampleRate)
	}

	buses := []struct {
		key string
		dst *float64
	}{
		{"volume.main", &cfg.Volume.Main},
		{"volume.other", &cfg.Volume.Other},
		{"volume.unfocused", &cfg.Volume.Unfocused},
		{"volume.sfx", &cfg.Volume.SFX},
		{"volume.livestream", &cfg.Volume.LiveStream},
	}
	for _, b := range buses {
		if *b.dst, err = unit(v, b.key); err != nil {
			return cfg, err
		}
	}

	cfg.Engine = Engine{
		UpdateInterval: v.GetDuration("engine.update_interval"),
		Metering:       v.GetBool("engine.metering"),
		Speed:          v.GetFloat64("engine.speed"),
		Pitch:          v.GetFloat64("engine.pitch"),
	}
	if cfg.Engine.UpdateInterval <= 0 {
		return cfg, fmt.Errorf("%w: engine.update_interval = %v", ErrInvalidValue, cfg.Engine.UpdateInterval)
	}
	if cfg.Engine.Speed <= 0 {
		return cfg, fmt.Errorf("%w: engine.speed = %v", ErrInvalidValue, cfg.Engine.Speed)
	}
	if cfg.Engine.Pitch <= 0 {
		return cfg, fmt.Errorf("%w: engine.pitch = %v", ErrInvalidValue, cfg.Engine.Pitch)
	}

	cfg.Log = Log{
		Level: v.GetString("log.level"),
		File:  v.GetString("log.file"),
	}
	return cfg, nil
}

// BackendOptions turns the output section into backend options.
func (c Config) BackendOptions(log zerolog.Logger) backend.Options {
	return backend.Options{
		SampleRate: c.Output.SampleRate,
		Buffer:     c.Output.Buffer,
		Logger:     log,
	}
}

func reloadHandler(v *viper.Viper, log zerolog.Logger, fn func(Config)) func(fsnotify.Event) {
	return func(e fsnotify.Event) {
		cfg, err := Decode(v)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		fn(cfg)
	}
}

// Watch calls fn with the new configuration whenever the config file
// changes. Invalid changes are logged and skipped.
func Watch(v *viper.Viper, log zerolog.Logger, fn func(Config)) {
	v.OnConfigChange(reloadHandler(v, log, fn))
	v.WatchConfig()
}
