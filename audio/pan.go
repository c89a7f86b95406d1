// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Panner places a source in the stereo field. Input of any channel count is
// first folded down to mono by averaging, then written to a stereo output
// with a balance law: at pan 0 both sides carry the full signal, moving
// towards ±1 attenuates the opposite side linearly to silence.
type Panner struct {
	src Source
	pan atomic.Uint32 // math.Float32bits
	tmp []float32
}

func NewPanner(src Source) *Panner {
	return &Panner{
		src: src,
		tmp: make([]float32, 4096),
	}
}

func (p *Panner) SampleRate() int { return p.src.SampleRate() }
func (p *Panner) Channels() int   { return 2 }
func (p *Panner) BufSize() int    { return p.src.BufSize() }

func (p *Panner) Close() error {
	if err := p.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// SetPan stores a pan position clamped to [-1, 1]; -1 is hard left.
func (p *Panner) SetPan(v float32) {
	switch {
	case math.IsNaN(float64(v)):
		v = 0
	case v < -1:
		v = -1
	case v > 1:
		v = 1
	}
	p.pan.Store(math.Float32bits(v))
}

func (p *Panner) Pan() float32 {
	return math.Float32frombits(p.pan.Load())
}

// Gains returns the left and right multipliers for a pan position.
func Gains(pan float32) (left, right float32) {
	left, right = 1, 1
	if pan > 0 {
		left = 1 - pan
	} else if pan < 0 {
		right = 1 + pan
	}
	return left, right
}

func (p *Panner) ReadSamples(dst []float32) (int, error) {
	if len(dst)%2 != 0 {
		return 0, ErrInvalidDstSize
	}
	if len(dst) == 0 {
		return 0, nil
	}

	channels := p.src.Channels()
	frames := len(dst) / 2
	need := frames * channels

	if cap(p.tmp) < need {
		p.tmp = make([]float32, max(need, 8192))
	}
	p.tmp = p.tmp[:need]

	n, err := p.src.ReadSamples(p.tmp)
	if n == 0 {
		return 0, err
	}

	got := n / channels
	left, right := Gains(p.Pan())

	switch channels {
	case 1:
		for f := range got {
			s := p.tmp[f]
			dst[2*f] = s * left
			dst[2*f+1] = s * right
		}
	case 2:
		for f := range got {
			s := (p.tmp[2*f] + p.tmp[2*f+1]) * 0.5
			dst[2*f] = s * left
			dst[2*f+1] = s * right
		}
	default:
		inv := float32(1) / float32(channels)
		for f := range got {
			var sum float32
			for c := range channels {
				sum += p.tmp[f*channels+c]
			}
			s := sum * inv
			dst[2*f] = s * left
			dst[2*f+1] = s * right
		}
	}

	return got * 2, err
}
