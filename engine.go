// SPDX-License-Identifier: EPL-2.0

package spatialpbx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ik5/spatialpbx/config"
	"github.com/ik5/spatialpbx/director"
	"github.com/ik5/spatialpbx/spatial"
	"github.com/rs/zerolog"
)

// Engine is a running director built from configuration.
type Engine struct {
	cfg      config.Config
	log      zerolog.Logger
	logFile  *os.File
	director *director.Director

	cancel    context.CancelFunc
	done      chan error
	closeOnce sync.Once
	closeErr  error
}

// DirectorOptions turns a configuration into director options.
func DirectorOptions(cfg config.Config, log zerolog.Logger) director.Options {
	buses := cfg.Volume
	return director.Options{
		Mode:           cfg.Output.Mode,
		Backend:        cfg.BackendOptions(log),
		Buses:          &buses,
		UpdateInterval: cfg.Engine.UpdateInterval,
		Metering:       cfg.Engine.Metering,
		Speed:          cfg.Engine.Speed,
		Pitch:          cfg.Engine.Pitch,
		Logger:         log,
	}
}

// Open loads the configuration at path ("" for defaults and environment
// only) and starts a director for listener.
func Open(path string, listener spatial.Listener) (*Engine, error) {
	cfg, v, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, file, err := config.NewLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		logFile:  file,
		director: director.New(listener, DirectorOptions(cfg, log)),
		done:     make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() { e.done <- e.director.Run(ctx) }()

	if path != "" {
		config.Watch(v, log, e.reload)
	}

	log.Info().
		Str("mode", string(cfg.Output.Mode)).
		Int("sample_rate", cfg.Output.SampleRate).
		Dur("update_interval", cfg.Engine.UpdateInterval).
		Msg("engine started")
	return e, nil
}

// reload applies the settings that can change while running.
func (e *Engine) reload(cfg config.Config) {
	e.director.SetBuses(cfg.Volume)
	if cfg.Output != e.cfg.Output || cfg.Engine != e.cfg.Engine {
		e.log.Warn().Msg("output and engine changes apply after a restart")
	}
}

func (e *Engine) Director() *director.Director { return e.director }
func (e *Engine) Config() config.Config        { return e.cfg }
func (e *Engine) Logger() zerolog.Logger       { return e.log }

// Close stops every voice and the update loop, then closes the log file.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		err := e.director.Close()
		e.cancel()
		if rerr := <-e.done; rerr != nil && !errors.Is(rerr, context.Canceled) {
			err = errors.Join(err, rerr)
		}
		if e.logFile != nil {
			err = errors.Join(err, e.logFile.Close())
		}
		e.closeErr = err
	})
	return e.closeErr
}
