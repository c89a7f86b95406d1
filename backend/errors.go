// SPDX-License-Identifier: EPL-2.0

package backend

import "errors"

var (
	// ErrInitFailed wraps every failure to acquire an output device.
	ErrInitFailed = errors.New("output backend init failed")

	ErrUnknownMode = errors.New("unknown output mode")
	ErrFormat      = errors.New("source format does not match the output")
	ErrNoSource    = errors.New("backend has no source")
	ErrNotReady    = errors.New("backend is not initialised")
)
