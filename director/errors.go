// SPDX-License-Identifier: EPL-2.0

package director

import "errors"

var (
	// ErrResourceNotFound is reported for locators that do not exist. The
	// request is dropped without an error event.
	ErrResourceNotFound = errors.New("resource not found")
	ErrClosed           = errors.New("director is closed")
)
