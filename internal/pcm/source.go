// SPDX-License-Identifier: EPL-2.0

// Package pcm turns integer PCM decoders from github.com/go-audio into
// float32 audio sources.
package pcm

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"

	"github.com/ik5/spatialpbx/audio"
)

// Reader is implemented by the go-audio wav and aiff decoders.
type Reader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// Source reads integer samples from a Reader and scales them by the
// source bit depth into [-1, 1).
type Source struct {
	r          Reader
	sampleRate int
	channels   int
	scale      float32
	buf        *goaudio.IntBuffer
	closer     io.Closer
	done       bool
}

// NewSource wraps r. closer may be nil.
func NewSource(r Reader, format *goaudio.Format, bitDepth int, closer io.Closer) *Source {
	channels := max(format.NumChannels, 1)
	return &Source{
		r:          r,
		sampleRate: format.SampleRate,
		channels:   channels,
		scale:      1 / float32(int64(1)<<(bitDepth-1)),
		buf: &goaudio.IntBuffer{
			Format:         format,
			Data:           make([]int, 4096-4096%channels),
			SourceBitDepth: bitDepth,
		},
		closer: closer,
	}
}

func (s *Source) SampleRate() int { return s.sampleRate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BufSize() int    { return cap(s.buf.Data) }

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (s *Source) ReadSamples(dst []float32) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	if len(dst) == 0 {
		return 0, nil
	}
	if len(dst)%s.channels != 0 {
		return 0, audio.ErrInvalidDstSize
	}

	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.r.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("decoding pcm: %w", err)
	}

	// Drop a trailing partial frame from a truncated file.
	n -= n % s.channels
	for i, v := range s.buf.Data[:n] {
		dst[i] = float32(v) * s.scale
	}

	if n == 0 || err == io.EOF {
		s.done = true
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n, nil
}
