// SPDX-License-Identifier: EPL-2.0

package voice

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ik5/spatialpbx/formats/wav"
	"github.com/ik5/spatialpbx/spatial"
	"github.com/ik5/spatialpbx/stream"
	"github.com/rs/zerolog"
)

func TestVoice_PlayStreamHTTP(t *testing.T) {
	t.Parallel()

	var body bytes.Buffer
	if err := wav.WriteWAV16(&body, testRate, 1, make([]int16, 400)); err != nil {
		t.Fatalf("WriteWAV16() error = %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(body.Bytes())
	}))
	defer srv.Close()

	v := New(Config{Category: spatial.LiveStream, Logger: zerolog.Nop()})
	if err := v.PlayStream(context.Background(), srv.URL+"/live", nullOptions(nil, true)); err != nil {
		t.Fatalf("PlayStream() error = %v", err)
	}
	waitDone(t, v, 2*time.Second)
	v.Wait()

	if reason, err := v.Result(); reason != ReasonFinished || err != nil {
		t.Errorf("Result() = (%s, %v), want (finished, nil)", reason, err)
	}
	if v.Frames() != 400 {
		t.Errorf("Frames() = %d, want 400", v.Frames())
	}
}

func TestVoice_PlayStreamUnsupported(t *testing.T) {
	t.Parallel()

	v := New(Config{Category: spatial.LiveStream, Logger: zerolog.Nop()})
	err := v.PlayStream(context.Background(), "ftp://example.invalid/a.wav", nullOptions(nil, true))
	if !errors.Is(err, ErrDecode) || !errors.Is(err, stream.ErrUnsupportedScheme) {
		t.Fatalf("PlayStream() error = %v, want ErrDecode wrapping ErrUnsupportedScheme", err)
	}

	waitDone(t, v, time.Second)
	if reason, _ := v.Result(); reason != ReasonFailed {
		t.Errorf("Result() reason = %s, want failed", reason)
	}
}
