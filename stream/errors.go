// SPDX-License-Identifier: EPL-2.0

package stream

import "errors"

var (
	ErrUnsupportedScheme = errors.New("unsupported stream scheme")
	ErrBadHeader         = errors.New("bad stream header")
	ErrHTTPStatus        = errors.New("unexpected http status")
	ErrEmptyFrame        = errors.New("empty video frame")
)
