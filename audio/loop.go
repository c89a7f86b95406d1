// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
	"sync/atomic"
)

// LoopingSource makes a finite Seeker appear endless by rewinding it to the
// first frame whenever it runs dry, or earlier when LoopEarly is called.
//
// A single ReadSamples call rewinds at most once, so a source shorter than
// dst returns a short read instead of spinning. A source that is empty (or
// already at frame zero when it reports no data) is never rewound.
type LoopingSource struct {
	src Seeker

	looping   atomic.Bool
	earlyLoop atomic.Bool
	loops     atomic.Int64
}

// NewLoopingSource wraps src with looping enabled.
func NewLoopingSource(src Seeker) *LoopingSource {
	l := &LoopingSource{src: src}
	l.looping.Store(true)
	return l
}

func (l *LoopingSource) SampleRate() int { return l.src.SampleRate() }
func (l *LoopingSource) Channels() int   { return l.src.Channels() }
func (l *LoopingSource) BufSize() int    { return l.src.BufSize() }
func (l *LoopingSource) Position() int   { return l.src.Position() }
func (l *LoopingSource) Len() int        { return l.src.Len() }

func (l *LoopingSource) Seek(frame int) error { return l.src.Seek(frame) }

func (l *LoopingSource) Close() error {
	if err := l.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// SetLooping enables or disables rewinding. With looping disabled the
// wrapper behaves exactly like the underlying source.
func (l *LoopingSource) SetLooping(on bool) { l.looping.Store(on) }

func (l *LoopingSource) Looping() bool { return l.looping.Load() }

// LoopEarly requests a rewind on the next read, before end of data.
func (l *LoopingSource) LoopEarly() { l.earlyLoop.Store(true) }

// Loops reports how many times the source has been rewound.
func (l *LoopingSource) Loops() int64 { return l.loops.Load() }

func (l *LoopingSource) rewind() error {
	if err := l.src.Seek(0); err != nil {
		return fmt.Errorf("rewinding loop: %w", err)
	}
	l.loops.Add(1)
	return nil
}

func (l *LoopingSource) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	rewound := false
	if l.earlyLoop.Swap(false) && l.looping.Load() && l.src.Position() != 0 {
		if err := l.rewind(); err != nil {
			return 0, err
		}
		rewound = true
	}

	total := 0
	for total < len(dst) {
		n, err := l.src.ReadSamples(dst[total:])
		total += n

		if err != nil && err != io.EOF {
			return total, fmt.Errorf("%w", err)
		}

		if n > 0 && err == nil {
			continue
		}

		// Underlying stream is dry (n == 0) or reported EOF.
		if !l.looping.Load() || rewound || l.src.Position() == 0 {
			if total == 0 {
				return 0, io.EOF
			}
			return total, nil
		}

		if err := l.rewind(); err != nil {
			return total, err
		}
		rewound = true
	}

	return total, nil
}
