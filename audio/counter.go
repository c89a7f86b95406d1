// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"sync/atomic"
)

// Counter passes samples through and records how many frames have been
// pulled from src. Unlike Position on a Seeker it never goes backwards, so it
// tells a watcher whether the stream is still advancing across loop rewinds.
type Counter struct {
	src    Source
	frames atomic.Int64
}

func NewCounter(src Source) *Counter {
	return &Counter{src: src}
}

func (c *Counter) SampleRate() int { return c.src.SampleRate() }
func (c *Counter) Channels() int   { return c.src.Channels() }
func (c *Counter) BufSize() int    { return c.src.BufSize() }

func (c *Counter) Close() error {
	if err := c.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// Frames returns the number of frames read so far.
func (c *Counter) Frames() int64 { return c.frames.Load() }

func (c *Counter) ReadSamples(dst []float32) (int, error) {
	n, err := c.src.ReadSamples(dst)
	if n > 0 {
		c.frames.Add(int64(n / max(c.src.Channels(), 1)))
	}
	return n, err
}
