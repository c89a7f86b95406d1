// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")
	ErrSeekOutOfRange = errors.New("seek position out of range")
	ErrNoChannels     = errors.New("source must have at least one channel")
)
