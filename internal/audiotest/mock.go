// SPDX-License-Identifier: EPL-2.0

// Package audiotest holds sources, emitters and listeners shared by tests.
package audiotest

import (
	"io"
	"math"
	"sync/atomic"
)

// MockSource generates frames from a waveform function. It satisfies
// audio.Source and reports io.EOF together with its last samples.
type MockSource struct {
	sampleRate int
	channels   int
	frames     int
	generated  int
	waveform   func(frame int, channel int) float32
	closed     atomic.Bool
}

// NewMockSource returns a source of frames frames computed by waveform.
func NewMockSource(sampleRate, channels, frames int, waveform func(frame int, channel int) float32) *MockSource {
	return &MockSource{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
		waveform:   waveform,
	}
}

func NewSilentSource(sampleRate, channels, frames int) *MockSource {
	return NewConstantSource(sampleRate, channels, frames, 0)
}

func NewSineSource(sampleRate, channels, frames int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, frames, func(frame int, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

func NewConstantSource(sampleRate, channels, frames int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, frames, func(int, int) float32 { return value })
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BufSize() int    { return 4096 }

func (m *MockSource) Close() error {
	m.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool { return m.closed.Load() }

// Reset rewinds the source to its first frame.
func (m *MockSource) Reset() { m.generated = 0 }

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	if m.generated >= m.frames {
		return 0, io.EOF
	}

	frames := min(len(dst)/m.channels, m.frames-m.generated)
	for f := range frames {
		for ch := range m.channels {
			dst[f*m.channels+ch] = m.waveform(m.generated+f, ch)
		}
	}
	m.generated += frames

	if m.generated >= m.frames {
		return frames * m.channels, io.EOF
	}
	return frames * m.channels, nil
}

// StallSource is a live source that never has samples ready.
type StallSource struct {
	SampleRateHz int
	closed       atomic.Bool
}

func (s *StallSource) SampleRate() int { return s.SampleRateHz }
func (s *StallSource) Channels() int   { return 1 }
func (s *StallSource) BufSize() int    { return 1024 }

func (s *StallSource) ReadSamples([]float32) (int, error) { return 0, nil }

func (s *StallSource) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *StallSource) Closed() bool { return s.closed.Load() }

// ErrorSource fails its first read with Err.
type ErrorSource struct {
	SampleRateHz int
	Err          error
}

func (s *ErrorSource) SampleRate() int                    { return s.SampleRateHz }
func (s *ErrorSource) Channels() int                      { return 1 }
func (s *ErrorSource) BufSize() int                       { return 1024 }
func (s *ErrorSource) Close() error                       { return nil }
func (s *ErrorSource) ReadSamples([]float32) (int, error) { return 0, s.Err }
