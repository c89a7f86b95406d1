// SPDX-License-Identifier: EPL-2.0

package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the engine logger.
//
// Valid levels are "none", "error", "warn", "info" and "debug". With an empty
// file the logger writes human readable lines to stdout, otherwise JSON lines
// to file, which is truncated. The returned file, when not nil, is the
// caller's to close.
func NewLogger(level, file string) (zerolog.Logger, *os.File, error) {
	var lvl zerolog.Level
	switch level {
	case "none":
		return zerolog.Nop(), nil, nil
	case "error":
		lvl = zerolog.ErrorLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "debug":
		lvl = zerolog.DebugLevel
	default:
		return zerolog.Nop(), nil, ErrLogLevel
	}

	var (
		w io.Writer
		f *os.File
	)
	if file == "" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	} else {
		var err error
		f, err = os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		w = f
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), f, nil
}
