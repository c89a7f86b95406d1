// SPDX-License-Identifier: EPL-2.0

// Package stream opens live network sources.
//
// http and https locators are progressive downloads of a regular audio file.
// ws and wss locators carry a JSON header followed by tagged binary messages:
// 'A' with interleaved signed 16-bit little-endian PCM, or 'V' with an
// encoded still image that is re-encoded into a FrameMailbox.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/formats"
	"github.com/rs/zerolog"
)

// Options configures Open. The zero value is usable.
type Options struct {
	// Registry picks decoders for http streams. Defaults to formats.Default().
	Registry *audio.Registry
	// Frames receives decoded video frames. nil drops them.
	Frames *FrameMailbox
	Client *http.Client
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = formats.Default()
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

// IsStreamURL reports whether locator uses a scheme Open accepts.
func IsStreamURL(locator string) bool {
	i := strings.Index(locator, "://")
	if i <= 0 {
		return false
	}
	switch strings.ToLower(locator[:i]) {
	case "http", "https", "ws", "wss":
		return true
	}
	return false
}

// Open connects to locator and returns its audio. The source owns the
// connection; closing it hangs up.
func Open(ctx context.Context, locator string, opts Options) (audio.Source, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	opts = opts.withDefaults()

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return openHTTP(ctx, u, opts)
	case "ws", "wss":
		return openWebSocket(ctx, u, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}
