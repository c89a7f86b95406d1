// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/formats"
)

var mediaTypes = map[string]string{
	"audio/wav":       "wav",
	"audio/wave":      "wav",
	"audio/x-wav":     "wav",
	"audio/mpeg":      "mp3",
	"audio/mp3":       "mp3",
	"audio/ogg":       "ogg",
	"application/ogg": "ogg",
	"audio/vorbis":    "ogg",
	"audio/aiff":      "aiff",
	"audio/x-aiff":    "aiff",
}

// formatOf picks a registry key from the Content-Type, falling back to the
// URL's extension.
func formatOf(contentType string, u *url.URL) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if f, ok := mediaTypes[mt]; ok {
			return f
		}
	}
	return path.Ext(u.Path)
}

func openHTTP(ctx context.Context, u *url.URL, opts Options) (audio.Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u.Redacted(), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	format := formatOf(resp.Header.Get("Content-Type"), u)
	dec, ok := opts.Registry.Get(format)
	if !ok {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", formats.ErrUnknownFormat, format)
	}

	src, err := dec.Decode(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("decoding %s: %w", u.Redacted(), err)
	}

	opts.Logger.Debug().Str("url", u.Redacted()).Str("format", format).
		Int("sample_rate", src.SampleRate()).Int("channels", src.Channels()).
		Msg("http stream opened")
	return src, nil
}
