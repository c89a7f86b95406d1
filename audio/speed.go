// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
	"math"

	"github.com/oov/audio/resampler"
)

const speedQuality = 10

// SpeedShifter plays src faster or slower by resampling it as if it had been
// recorded at rate*speed. Pitch follows speed, like a tape running at a
// different rate. The output keeps src's sample rate and channel count.
type SpeedShifter struct {
	src      Source
	speed    float64
	channels int
	rs       *resampler.Resampler

	raw     []float32   // interleaved read buffer
	pending [][]float32 // per channel, input not yet consumed
	out     [][]float32 // per channel, scratch output
	eof     bool
}

// NewSpeedShifter returns src unchanged when speed is 1 or not positive.
func NewSpeedShifter(src Source, speed float64) Source {
	if speed <= 0 || speed == 1 || math.IsNaN(speed) {
		return src
	}

	channels := src.Channels()
	inRate := int(math.Round(float64(src.SampleRate()) * speed))
	s := &SpeedShifter{
		src:      src,
		speed:    speed,
		channels: channels,
		rs:       resampler.New(channels, inRate, src.SampleRate(), speedQuality),
		raw:      make([]float32, 4096-4096%channels),
		pending:  make([][]float32, channels),
		out:      make([][]float32, channels),
	}
	return s
}

func (s *SpeedShifter) SampleRate() int { return s.src.SampleRate() }
func (s *SpeedShifter) Channels() int   { return s.channels }
func (s *SpeedShifter) BufSize() int    { return s.src.BufSize() }
func (s *SpeedShifter) Speed() float64  { return s.speed }

func (s *SpeedShifter) Close() error {
	if err := s.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// fill pulls one block from src into the per-channel pending buffers and
// reports how many frames arrived.
func (s *SpeedShifter) fill() (int, error) {
	n, err := s.src.ReadSamples(s.raw)
	frames := n / s.channels
	for c := range s.channels {
		for f := range frames {
			s.pending[c] = append(s.pending[c], s.raw[f*s.channels+c])
		}
	}
	if err == io.EOF {
		s.eof = true
		return frames, nil
	}
	if err != nil {
		return frames, fmt.Errorf("%w", err)
	}
	return frames, nil
}

// refill is fill for ReadSamples. It reports false when src had nothing
// right now, so a live source that is starved does not spin the caller.
func (s *SpeedShifter) refill() (bool, error) {
	n, err := s.fill()
	if err != nil {
		return false, err
	}
	return n > 0 || s.eof, nil
}

func (s *SpeedShifter) ReadSamples(dst []float32) (int, error) {
	if len(dst)%s.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	want := len(dst) / s.channels
	written := 0

	for written < want {
		if len(s.pending[0]) == 0 {
			if s.eof {
				break
			}
			ok, err := s.refill()
			if err != nil {
				return written * s.channels, err
			}
			if !ok {
				break
			}
			continue
		}

		room := want - written
		var read, wrote int
		for c := range s.channels {
			if cap(s.out[c]) < room {
				s.out[c] = make([]float32, room)
			}
			s.out[c] = s.out[c][:room]
			read, wrote = s.rs.ProcessFloat32(c, s.pending[c], s.out[c])
		}

		for f := range wrote {
			for c := range s.channels {
				dst[(written+f)*s.channels+c] = s.out[c][f]
			}
		}
		written += wrote

		for c := range s.channels {
			s.pending[c] = s.pending[c][:copy(s.pending[c], s.pending[c][read:])]
		}

		if read == 0 && wrote == 0 {
			// Resampler wants more input than is pending.
			if s.eof {
				for c := range s.channels {
					s.pending[c] = s.pending[c][:0]
				}
				break
			}
			ok, err := s.refill()
			if err != nil {
				return written * s.channels, err
			}
			if !ok {
				break
			}
		}
	}

	if written == 0 && s.eof {
		return 0, io.EOF
	}
	return written * s.channels, nil
}
