// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
	"sync"
)

// Buffer is a fully decoded, seekable Source backed by interleaved samples.
// Voice clips are short enough to keep in memory, and holding them decoded
// gives the engine an exact duration and cheap rewinds for looping.
type Buffer struct {
	sampleRate int
	channels   int
	data       []float32

	mtx sync.Mutex
	pos int // in frames
}

// NewBuffer wraps interleaved samples. A trailing partial frame is dropped.
func NewBuffer(sampleRate, channels int, data []float32) *Buffer {
	if channels < 1 {
		channels = 1
	}
	whole := len(data) - len(data)%channels
	return &Buffer{
		sampleRate: sampleRate,
		channels:   channels,
		data:       data[:whole],
	}
}

// ReadAll drains src into a Buffer and closes it.
func ReadAll(src Source) (*Buffer, error) {
	defer src.Close()

	if src.Channels() < 1 {
		return nil, ErrNoChannels
	}

	size := src.BufSize()
	if size <= 0 {
		size = 4096
	}
	size -= size % src.Channels()
	if size == 0 {
		size = src.Channels()
	}

	buf := make([]float32, size)
	data := make([]float32, 0, size*4)
	empty := 0

	for {
		n, err := src.ReadSamples(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			empty = 0
		} else if err == nil {
			// Guard against decoders that keep answering (0, nil).
			empty++
			if empty > 64 {
				break
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading source: %w", err)
		}
	}

	return NewBuffer(src.SampleRate(), src.Channels(), data), nil
}

func (b *Buffer) SampleRate() int { return b.sampleRate }
func (b *Buffer) Channels() int   { return b.channels }
func (b *Buffer) BufSize() int    { return 4096 }
func (b *Buffer) Close() error    { return nil }

// Len returns the number of frames in the buffer.
func (b *Buffer) Len() int { return len(b.data) / b.channels }

func (b *Buffer) Position() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return b.pos
}

func (b *Buffer) Seek(frame int) error {
	if frame < 0 || frame > b.Len() {
		return fmt.Errorf("%w: %d not in [0,%d]", ErrSeekOutOfRange, frame, b.Len())
	}

	b.mtx.Lock()
	b.pos = frame
	b.mtx.Unlock()

	return nil
}

// Samples exposes the underlying interleaved data. Callers must not modify it.
func (b *Buffer) Samples() []float32 { return b.data }

func (b *Buffer) ReadSamples(dst []float32) (int, error) {
	if len(dst)%b.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	start := b.pos * b.channels
	if start >= len(b.data) {
		return 0, io.EOF
	}

	n := copy(dst, b.data[start:])
	b.pos += n / b.channels

	return n, nil
}
