// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"math"
	"sync"
)

// Levels is one metering snapshot: RMS and absolute peak per read block.
type Levels struct {
	RMS  float32
	Peak float32
}

// Meter is a pass-through stage that measures the level of every block it
// forwards. The latest reading is available from Levels; an optional callback
// receives each block's reading on the reading goroutine and must not block.
type Meter struct {
	src Source

	mtx    sync.Mutex
	last   Levels
	notify func(Levels)
}

func NewMeter(src Source) *Meter {
	return &Meter{src: src}
}

func (m *Meter) SampleRate() int { return m.src.SampleRate() }
func (m *Meter) Channels() int   { return m.src.Channels() }
func (m *Meter) BufSize() int    { return m.src.BufSize() }

func (m *Meter) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// OnLevels installs fn as the per-block callback. Passing nil disables it.
func (m *Meter) OnLevels(fn func(Levels)) {
	m.mtx.Lock()
	m.notify = fn
	m.mtx.Unlock()
}

// Levels returns the most recent reading.
func (m *Meter) Levels() Levels {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.last
}

func (m *Meter) ReadSamples(dst []float32) (int, error) {
	n, err := m.src.ReadSamples(dst)
	if n == 0 {
		return n, err
	}

	var sum float64
	var peak float32
	for _, s := range dst[:n] {
		sum += float64(s) * float64(s)
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	lv := Levels{
		RMS:  float32(math.Sqrt(sum / float64(n))),
		Peak: peak,
	}

	m.mtx.Lock()
	m.last = lv
	notify := m.notify
	m.mtx.Unlock()

	if notify != nil {
		notify(lv)
	}

	return n, err
}
