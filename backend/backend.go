// SPDX-License-Identifier: EPL-2.0

// Package backend drives audio output devices.
//
// Every mode implements the same small Backend capability: it is handed a
// stereo float32 pipeline at its own sample rate, pulls from it on the
// device's schedule and reports when the pipeline ran dry.
//
// The device and mixer modes both open the process-wide oto context (the
// mixer through beep's speaker), so only one of the two can be used in a
// process.
package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/ik5/spatialpbx/audio"
	"github.com/rs/zerolog"
)

// Mode selects an output implementation.
type Mode string

const (
	// ModeDevice plays through a shared oto context, one player per voice.
	ModeDevice Mode = "device"
	// ModeExclusive opens a dedicated portaudio stream per voice.
	ModeExclusive Mode = "exclusive"
	// ModeNative opens a PulseAudio playback stream per voice.
	ModeNative Mode = "native"
	// ModeMixer mixes every voice in beep's speaker.
	ModeMixer Mode = "mixer"
	// ModeNull plays into a callback at real time speed.
	ModeNull Mode = "null"
)

const (
	DefaultSampleRate = 48000
	DefaultBuffer     = 100 * time.Millisecond
	lowLatencyBuffer  = 20 * time.Millisecond
)

// ParseMode validates a configured output mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDevice, ModeExclusive, ModeNative, ModeMixer, ModeNull:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Options configures a backend.
type Options struct {
	SampleRate int
	Buffer     time.Duration
	// LowLatency asks for the smallest buffer the device allows.
	LowLatency bool
	Logger     zerolog.Logger

	// Sink receives every block the null backend plays. The slice is only
	// valid during the call.
	Sink func([]float32)
	// Unpaced makes the null backend play as fast as the pipeline delivers.
	Unpaced bool
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.Buffer <= 0 {
		o.Buffer = DefaultBuffer
	}
	if o.LowLatency && o.Buffer > lowLatencyBuffer {
		o.Buffer = lowLatencyBuffer
	}
	return o
}

// frames is the buffer length in frames.
func (o Options) frames() int {
	n := int(o.Buffer.Seconds() * float64(o.SampleRate))
	return max(n, 64)
}

// Backend is the output capability of one voice.
type Backend interface {
	// Init binds the pipeline. src must be stereo at SampleRate().
	Init(src audio.Source) error
	Play() error
	// Stop halts output and releases the device. It is safe to call more
	// than once and before Init.
	Stop() error
	Volume() float32
	SetVolume(v float32)
	Playing() bool
	SampleRate() int
	// Done is closed once playback has ended for any reason.
	Done() <-chan struct{}
	// Err is the fault that ended playback, or nil.
	Err() error
}

// Factory creates an uninitialised backend. New is the default.
type Factory func(mode Mode, opts Options) (Backend, error)

// New returns an uninitialised backend for mode.
func New(mode Mode, opts Options) (Backend, error) {
	opts = opts.withDefaults()

	switch mode {
	case ModeDevice:
		return newOtoBackend(opts)
	case ModeExclusive:
		return newPortaudioBackend(opts), nil
	case ModeNative:
		return newPulseBackend(opts), nil
	case ModeMixer:
		return newMixerBackend(opts)
	case ModeNull:
		return newNullBackend(opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func checkFormat(src audio.Source, rate int) error {
	if src == nil {
		return ErrNoSource
	}
	if src.Channels() != 2 || src.SampleRate() != rate {
		return fmt.Errorf("%w: got %d Hz %d ch, want %d Hz 2 ch",
			ErrFormat, src.SampleRate(), src.Channels(), rate)
	}
	return nil
}
