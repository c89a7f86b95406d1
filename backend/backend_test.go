// SPDX-License-Identifier: EPL-2.0

package backend

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/internal/audiotest"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"device", ModeDevice, false},
		{"Exclusive", ModeExclusive, false},
		{" native ", ModeNative, false},
		{"mixer", ModeMixer, false},
		{"null", ModeNull, false},
		{"openal", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnknownMode) {
			t.Errorf("ParseMode(%q) error = %v, want ErrUnknownMode", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew_UnknownMode(t *testing.T) {
	t.Parallel()

	if _, err := New("openal", Options{}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("New() error = %v, want ErrUnknownMode", err)
	}
}

func TestOptions_Defaults(t *testing.T) {
	t.Parallel()

	o := Options{}.withDefaults()
	if o.SampleRate != DefaultSampleRate || o.Buffer != DefaultBuffer {
		t.Errorf("withDefaults() = %d Hz %v, want %d Hz %v", o.SampleRate, o.Buffer, DefaultSampleRate, DefaultBuffer)
	}

	low := Options{LowLatency: true}.withDefaults()
	if low.Buffer != lowLatencyBuffer {
		t.Errorf("low latency buffer = %v, want %v", low.Buffer, lowLatencyBuffer)
	}
	if low.frames() != 960 {
		t.Errorf("frames() = %d, want 960", low.frames())
	}
}

type collector struct {
	mu      sync.Mutex
	samples []float32
}

func (c *collector) sink(p []float32) {
	c.mu.Lock()
	c.samples = append(c.samples, p...)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

func waitDone(t *testing.T, b Backend) {
	t.Helper()

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("backend did not finish")
	}
}

func TestNull_PlaysToEnd(t *testing.T) {
	t.Parallel()

	var out collector
	b, err := New(ModeNull, Options{SampleRate: 8000, Sink: out.sink, Unpaced: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	src := audiotest.NewConstantSource(8000, 2, 1000, 0.5)
	if err := b.Init(src); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	b.SetVolume(0.5)
	if err := b.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	waitDone(t, b)

	if b.Err() != nil {
		t.Errorf("Err() = %v, want nil", b.Err())
	}
	if b.Playing() {
		t.Error("Playing() = true after the source ended")
	}
	if out.len() != 2000 {
		t.Fatalf("played %d samples, want 2000", out.len())
	}
	for i, s := range out.samples {
		if s != 0.25 {
			t.Fatalf("sample %d = %v, want 0.25", i, s)
		}
	}
	if err := b.Stop(); err != nil {
		t.Errorf("Stop() after end error = %v", err)
	}
}

func TestNull_PacedToSampleClock(t *testing.T) {
	t.Parallel()

	b, err := New(ModeNull, Options{SampleRate: 8000, Buffer: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// 250 ms of audio.
	if err := b.Init(audiotest.NewSilentSource(8000, 2, 2000)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	start := time.Now()
	if err := b.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	waitDone(t, b)

	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("played 250ms of audio in %v", elapsed)
	}
}

func TestNull_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	b, _ := New(ModeNull, Options{SampleRate: 8000})
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() before Init error = %v", err)
	}
	waitDone(t, b)

	b, _ = New(ModeNull, Options{SampleRate: 8000})
	if err := b.Init(audiotest.NewSilentSource(8000, 2, 8000*60)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := b.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if !b.Playing() {
		t.Error("Playing() = false after Play()")
	}

	for range 3 {
		if err := b.Stop(); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	}
	waitDone(t, b)
	if b.Playing() {
		t.Error("Playing() = true after Stop()")
	}
	if err := b.Play(); err != nil {
		t.Errorf("Play() after Stop() error = %v", err)
	}
	if b.Playing() {
		t.Error("Play() after Stop() restarted playback")
	}
}

func TestNull_FormatChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  audio.Source
		want error
	}{
		{"nil source", nil, ErrNoSource},
		{"mono", audiotest.NewSilentSource(8000, 1, 10), ErrFormat},
		{"wrong rate", audiotest.NewSilentSource(44100, 2, 10), ErrFormat},
	}

	for _, tt := range tests {
		b, _ := New(ModeNull, Options{SampleRate: 8000})
		if err := b.Init(tt.src); !errors.Is(err, tt.want) {
			t.Errorf("%s: Init() error = %v, want %v", tt.name, err, tt.want)
		}
		if err := b.Play(); !errors.Is(err, ErrNotReady) {
			t.Errorf("%s: Play() error = %v, want ErrNotReady", tt.name, err)
		}
	}
}

var errDevice = errors.New("device unplugged")

type failingSource struct{ audiotest.MockSource }

func (failingSource) ReadSamples([]float32) (int, error) { return 0, errDevice }

func TestNull_SourceErrorEndsPlayback(t *testing.T) {
	t.Parallel()

	b, _ := New(ModeNull, Options{SampleRate: 8000, Unpaced: true})
	src := &failingSource{*audiotest.NewSilentSource(8000, 2, 10)}
	if err := b.Init(src); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := b.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	waitDone(t, b)
	if !errors.Is(b.Err(), errDevice) {
		t.Errorf("Err() = %v, want errDevice", b.Err())
	}
}

func TestFeed_Volume(t *testing.T) {
	t.Parallel()

	var f feed
	f.prepare()

	if f.Volume() != 1 {
		t.Errorf("initial Volume() = %v, want 1", f.Volume())
	}
	f.SetVolume(-1)
	if f.Volume() != 0 {
		t.Errorf("Volume() after SetVolume(-1) = %v, want 0", f.Volume())
	}
	f.SetVolume(0.3)
	if f.Volume() != 0.3 {
		t.Errorf("Volume() = %v, want 0.3", f.Volume())
	}
}

// liveSource delivers one frame and then has nothing more for now.
type liveSource struct {
	audiotest.MockSource
	sent bool
}

func (l *liveSource) ReadSamples(dst []float32) (int, error) {
	if l.sent {
		return 0, nil
	}
	l.sent = true
	dst[0], dst[1] = 1, 1
	return 2, nil
}

func TestFeed_FillPadded(t *testing.T) {
	t.Parallel()

	var live feed
	live.prepare()
	live.src = &liveSource{MockSource: *audiotest.NewSilentSource(8000, 2, 1)}

	buf := []float32{9, 9, 9, 9, 9, 9}
	n, ok := live.fillPadded(buf)
	if n != 6 || !ok {
		t.Fatalf("fillPadded() = (%d, %v), want (6, true)", n, ok)
	}
	want := []float32{1, 1, 0, 0, 0, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf = %v, want %v", buf, want)
		}
	}

	var ending feed
	ending.prepare()
	ending.src = audiotest.NewConstantSource(8000, 2, 2, 1)

	n, ok = ending.fillPadded(buf)
	if n != 4 || ok {
		t.Errorf("fillPadded() = (%d, %v), want (4, false)", n, ok)
	}
	n, ok = ending.fillPadded(buf)
	if n != 0 || ok {
		t.Errorf("fillPadded() after end = (%d, %v), want (0, false)", n, ok)
	}
	select {
	case <-ending.Done():
	default:
		t.Error("feed not finished after the source ended")
	}
	if ending.Err() != nil {
		t.Errorf("Err() = %v, want nil for a normal end", ending.Err())
	}
}
