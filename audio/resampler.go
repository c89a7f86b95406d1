// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"

	"github.com/ik5/spatialpbx/utils"
)

// Resampler converts src to another sample rate with Catmull-Rom
// interpolation over a sliding window of four frames. Channel count is kept.
// When downsampling a one-pole low-pass runs on the input first.
//
// A live source that answers (0, nil) makes ReadSamples return a short (or
// empty) read; the window state survives until data arrives.
type Resampler struct {
	src      Source
	dstRate  int
	ratio    float64 // source frames per output frame
	channels int

	win  [4][]float32 // t-1, t0, t+1, t+2
	next []float32
	warm int // frames loaded during warm-up, up to 3
	pad  int // trailing copies made after EOF
	pos  float64

	block  []float32
	bi, bn int // frame cursor and frame count inside block
	eof    bool

	lp    []float32
	alpha float32
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()

	r := &Resampler{
		src:      src,
		dstRate:  dstRate,
		ratio:    float64(src.SampleRate()) / float64(dstRate),
		channels: channels,
		next:     make([]float32, channels),
		block:    make([]float32, 1024*channels),
		lp:       make([]float32, channels),
	}
	for i := range r.win {
		r.win[i] = make([]float32, channels)
	}
	if r.ratio > 1 {
		r.alpha = 0.5
	}

	return r
}

// Convert returns src at dstRate, skipping the resampler when the rates
// already match.
func Convert(src Source, dstRate int) Source {
	if src.SampleRate() == dstRate {
		return src
	}
	return NewResampler(src, dstRate)
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// pull copies the next source frame into dst. It reports false with a nil
// error when the source has nothing right now.
func (r *Resampler) pull(dst []float32) (bool, error) {
	for r.bi >= r.bn {
		if r.eof {
			return false, io.EOF
		}

		n, err := r.src.ReadSamples(r.block)
		r.bi, r.bn = 0, n/r.channels

		switch {
		case err == io.EOF:
			r.eof = true
		case err != nil:
			return false, fmt.Errorf("%w", err)
		case r.bn == 0:
			return false, nil
		}
	}

	c := r.channels
	copy(dst, r.block[r.bi*c:(r.bi+1)*c])
	r.bi++

	if r.alpha > 0 {
		for i := range dst {
			dst[i] = r.alpha*dst[i] + (1-r.alpha)*r.lp[i]
			r.lp[i] = dst[i]
		}
	}

	return true, nil
}

// warmUp fills t0..t+2, duplicating the first frame into t-1.
func (r *Resampler) warmUp() (bool, error) {
	for r.warm < 3 {
		ok, err := r.pull(r.win[r.warm+1])
		if err == io.EOF {
			if r.warm == 0 {
				return false, io.EOF
			}
			for r.warm < 3 {
				copy(r.win[r.warm+1], r.win[r.warm])
				r.warm++
				r.pad++
			}
			break
		}
		if err != nil || !ok {
			return false, err
		}

		if r.warm == 0 {
			copy(r.win[0], r.win[1])
			if r.alpha > 0 {
				copy(r.lp, r.win[1])
			}
		}
		r.warm++
	}
	return true, nil
}

// step slides the window forward by one source frame.
func (r *Resampler) step() (bool, error) {
	fresh := false
	if r.pad == 0 {
		ok, err := r.pull(r.next)
		if err != nil && err != io.EOF {
			return false, err
		}
		if !ok && err == nil {
			return false, nil
		}
		fresh = ok
	}

	copy(r.win[0], r.win[1])
	copy(r.win[1], r.win[2])
	copy(r.win[2], r.win[3])
	if fresh {
		copy(r.win[3], r.next)
	} else {
		r.pad++
	}

	return true, nil
}

func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if r.warm < 3 {
		ready, err := r.warmUp()
		if err != nil {
			return 0, err
		}
		if !ready {
			return 0, nil
		}
	}

	want := len(dst) / r.channels
	written := 0

	for written < want {
		for r.pos >= 1 {
			ready, err := r.step()
			if err != nil {
				return written * r.channels, err
			}
			if !ready {
				return written * r.channels, nil
			}
			r.pos--
		}

		// t0 itself is a copy past the end.
		if r.pad >= 3 {
			if written == 0 {
				return 0, io.EOF
			}
			return written * r.channels, nil
		}

		x := float32(r.pos)
		for c := range r.channels {
			dst[written*r.channels+c] = utils.CubicInterpolate(
				r.win[0][c], r.win[1][c], r.win[2][c], r.win[3][c], x)
		}

		written++
		r.pos += r.ratio
	}

	return written * r.channels, nil
}
