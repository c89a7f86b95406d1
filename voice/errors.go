// SPDX-License-Identifier: EPL-2.0

package voice

import "errors"

var (
	// ErrDecode wraps a source that could not be opened or failed while
	// playing.
	ErrDecode = errors.New("audio decode failed")

	ErrAlreadyStarted = errors.New("voice already started")
	// ErrInvalidated is returned by Play on a voice that has been stopped.
	ErrInvalidated = errors.New("voice was stopped")

	// errCancelled ends a start that raced with Stop.
	errCancelled = errors.New("voice start cancelled")
)
