// SPDX-License-Identifier: EPL-2.0

package config

import "errors"

var (
	ErrLogLevel     = errors.New("unexpected log level")
	ErrVolumeRange  = errors.New("volume must be within [0, 1]")
	ErrInvalidValue = errors.New("invalid config value")
)
