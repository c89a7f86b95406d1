// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"math"
)

const pitchWindow = 2048 // frames, ~43ms at 48kHz

// PitchShifter changes pitch by a ratio while keeping duration. It reads
// through a short delay line with two taps half a window apart whose delay
// sweeps at (1 - ratio) per frame; triangular crossfades hide the jumps when
// a tap wraps around.
type PitchShifter struct {
	src      Source
	ratio    float64
	channels int

	ring  []float32 // channels * pitchWindow, interleaved
	write int       // frame index into ring
	delay float64   // frames, in [0, pitchWindow)
	tmp   []float32
}

// NewPitchShifter returns src unchanged when ratio is 1 or not positive.
func NewPitchShifter(src Source, ratio float64) Source {
	if ratio <= 0 || ratio == 1 || math.IsNaN(ratio) {
		return src
	}
	return &PitchShifter{
		src:      src,
		ratio:    ratio,
		channels: src.Channels(),
		ring:     make([]float32, src.Channels()*pitchWindow),
	}
}

func (p *PitchShifter) SampleRate() int { return p.src.SampleRate() }
func (p *PitchShifter) Channels() int   { return p.channels }
func (p *PitchShifter) BufSize() int    { return p.src.BufSize() }
func (p *PitchShifter) Ratio() float64  { return p.ratio }

func (p *PitchShifter) Close() error {
	if err := p.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// tap reads channel c at d frames behind the write head, interpolating
// linearly between neighbouring frames.
func (p *PitchShifter) tap(c int, d float64) float32 {
	pos := float64(p.write) - d
	for pos < 0 {
		pos += pitchWindow
	}
	i0 := int(pos) % pitchWindow
	i1 := (i0 + 1) % pitchWindow
	frac := float32(pos - math.Floor(pos))

	a := p.ring[i0*p.channels+c]
	b := p.ring[i1*p.channels+c]
	return a + (b-a)*frac
}

func triangle(d float64) float32 {
	half := float64(pitchWindow) / 2
	return float32(1 - math.Abs(d/half-1))
}

func (p *PitchShifter) ReadSamples(dst []float32) (int, error) {
	if len(dst)%p.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if cap(p.tmp) < len(dst) {
		p.tmp = make([]float32, len(dst))
	}
	p.tmp = p.tmp[:len(dst)]

	n, err := p.src.ReadSamples(p.tmp)
	frames := n / p.channels
	step := 1 - p.ratio

	for f := range frames {
		copy(p.ring[p.write*p.channels:(p.write+1)*p.channels], p.tmp[f*p.channels:(f+1)*p.channels])

		d1 := p.delay
		d2 := math.Mod(p.delay+pitchWindow/2, pitchWindow)
		g1, g2 := triangle(d1), triangle(d2)

		for c := range p.channels {
			dst[f*p.channels+c] = g1*p.tap(c, d1) + g2*p.tap(c, d2)
		}

		p.write = (p.write + 1) % pitchWindow
		p.delay = math.Mod(p.delay+step, pitchWindow)
		if p.delay < 0 {
			p.delay += pitchWindow
		}
	}

	return n, err
}
