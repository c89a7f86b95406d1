// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/formats"
	"github.com/ik5/spatialpbx/formats/wav"
)

func readAll(t *testing.T, src audio.Source) []float32 {
	t.Helper()

	var out []float32
	buf := make([]float32, 64*src.Channels())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatal("stream did not end")
	return nil
}

func TestIsStreamURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"http://host/a.mp3", true},
		{"HTTPS://host/a.ogg", true},
		{"ws://host/live", true},
		{"wss://host/live", true},
		{"rtmp://host/live", false},
		{"/srv/clips/a.wav", false},
		{"://nothing", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsStreamURL(tt.in); got != tt.want {
			t.Errorf("IsStreamURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "rtmp://host/live", Options{}); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("Open() error = %v, want ErrUnsupportedScheme", err)
	}
}

func wavBytes(t *testing.T, samples []int16) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := wav.WriteWAV16(&buf, 16000, 1, samples); err != nil {
		t.Fatalf("WriteWAV16() error = %v", err)
	}
	return buf.Bytes()
}

func TestOpen_HTTP(t *testing.T) {
	t.Parallel()

	clip := wavBytes(t, []int16{0, 16384, -16384, 32767, 1000})

	mux := http.NewServeMux()
	mux.HandleFunc("/typed", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/x-wav; charset=binary")
		_, _ = w.Write(clip)
	})
	mux.HandleFunc("/clip.wav", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(clip)
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(clip)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for _, p := range []string{"/typed", "/clip.wav"} {
		src, err := Open(context.Background(), srv.URL+p, Options{})
		if err != nil {
			t.Fatalf("Open(%s) error = %v", p, err)
		}
		if src.SampleRate() != 16000 || src.Channels() != 1 {
			t.Errorf("%s: format = %d Hz %d ch, want 16000 Hz 1 ch", p, src.SampleRate(), src.Channels())
		}
		if got := readAll(t, src); len(got) != 5 || got[1] != 0.5 {
			t.Errorf("%s: samples = %v, want 5 with the second at 0.5", p, got)
		}
		if err := src.Close(); err != nil {
			t.Errorf("%s: Close() error = %v", p, err)
		}
	}

	if _, err := Open(context.Background(), srv.URL+"/blob", Options{}); !errors.Is(err, formats.ErrUnknownFormat) {
		t.Errorf("Open(/blob) error = %v, want ErrUnknownFormat", err)
	}
	if _, err := Open(context.Background(), srv.URL+"/missing.wav", Options{}); !errors.Is(err, ErrHTTPStatus) {
		t.Errorf("Open(/missing.wav) error = %v, want ErrHTTPStatus", err)
	}
}

var upgrader = websocket.Upgrader{}

// wsServer runs script against every connection.
func wsServer(t *testing.T, script func(*websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func pcmMessage(samples ...int16) []byte {
	msg := []byte{tagAudio}
	for _, s := range samples {
		msg = binary.LittleEndian.AppendUint16(msg, uint16(s))
	}
	return msg
}

func pngMessage(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	buf.WriteByte(tagVideo)
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	// Wait for the client's close reply.
	_, _, _ = conn.ReadMessage()
}

func TestOpen_WebSocket(t *testing.T) {
	t.Parallel()

	frame := pngMessage(t, 40, 20)
	url := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"sample_rate":24000,"channels":2}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, pcmMessage(16384, -16384, 0, 32767))
		_ = conn.WriteMessage(websocket.BinaryMessage, frame)
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{'X', 1, 2})
		_ = conn.WriteMessage(websocket.BinaryMessage, pcmMessage(8192, 8192, 1))
		closeNormally(conn)
	})

	var frames FrameMailbox
	src, err := Open(context.Background(), url, Options{Frames: &frames})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 24000 || src.Channels() != 2 {
		t.Fatalf("format = %d Hz %d ch, want 24000 Hz 2 ch", src.SampleRate(), src.Channels())
	}

	got := readAll(t, src)
	want := []float32{0.5, -0.5, 0, 32767.0 / 32768, 0.25, 0.25}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("samples = %v, want %v", got, want)
		}
	}

	data := frames.Latest()
	if data == nil {
		t.Fatal("no video frame published")
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("frame size = %dx%d, want 64x32", b.Dx(), b.Dy())
	}
}

func TestOpen_WebSocketBadHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind int
		msg  string
	}{
		{"binary first", websocket.BinaryMessage, "A"},
		{"not json", websocket.TextMessage, "hello"},
		{"no channels", websocket.TextMessage, `{"sample_rate":48000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			url := wsServer(t, func(conn *websocket.Conn) {
				_ = conn.WriteMessage(tt.kind, []byte(tt.msg))
				_, _, _ = conn.ReadMessage()
			})
			if _, err := Open(context.Background(), url, Options{}); !errors.Is(err, ErrBadHeader) {
				t.Errorf("Open() error = %v, want ErrBadHeader", err)
			}
		})
	}
}

func TestWebSocket_LiveReadsDoNotBlock(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"sample_rate":8000,"channels":1}`))
		<-release
	})

	src, err := Open(context.Background(), url, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		n, err := src.ReadSamples(make([]float32, 16))
		if n != 0 || err != nil {
			t.Errorf("ReadSamples() = (%d, %v), want (0, nil)", n, err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReadSamples() blocked on an idle stream")
	}

	close(release)
	if err := src.Close(); err != nil {
		t.Logf("Close() error = %v", err)
	}
}

func TestFrameMailbox(t *testing.T) {
	t.Parallel()

	var m FrameMailbox
	if m.Latest() != nil || m.Take() != nil {
		t.Fatal("empty mailbox returned a frame")
	}

	m.Publish([]byte("one"))
	m.Publish([]byte("two"))
	if got := string(m.Latest()); got != "two" {
		t.Errorf("Latest() = %q, want two", got)
	}
	if got := string(m.Take()); got != "two" {
		t.Errorf("Take() = %q, want two", got)
	}
	if m.Latest() != nil {
		t.Error("Take() left the frame in the mailbox")
	}

	m.Publish([]byte("three"))
	m.Clear()
	if m.Latest() != nil {
		t.Error("Clear() left the frame in the mailbox")
	}
}

func TestEncodeFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{32, 32, 32, 32},
		{33, 10, 64, 32},
		{1, 1, 32, 32},
		{640, 360, 640, 384},
	}

	for _, tt := range tests {
		img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
		img.Set(0, 0, color.White)

		data, err := EncodeFrame(img)
		if err != nil {
			t.Fatalf("EncodeFrame(%dx%d) error = %v", tt.w, tt.h, err)
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("DecodeConfig() error = %v", err)
		}
		if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
			t.Errorf("EncodeFrame(%dx%d) = %dx%d, want %dx%d", tt.w, tt.h, cfg.Width, cfg.Height, tt.wantW, tt.wantH)
		}
	}

	if _, err := EncodeFrame(image.NewRGBA(image.Rectangle{})); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("EncodeFrame(empty) error = %v, want ErrEmptyFrame", err)
	}
}
