// SPDX-License-Identifier: EPL-2.0

package backend

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ik5/spatialpbx/audio"
)

// feed is the pipeline end shared by every backend: it pulls samples, applies
// the backend volume and records how playback ended.
type feed struct {
	src     audio.Source
	volume  atomic.Uint32
	playing atomic.Bool

	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func (f *feed) prepare() {
	f.done = make(chan struct{})
	f.volume.Store(math.Float32bits(1))
}

func (f *feed) Volume() float32 { return math.Float32frombits(f.volume.Load()) }

func (f *feed) SetVolume(v float32) {
	if v < 0 || v != v {
		v = 0
	}
	f.volume.Store(math.Float32bits(v))
}

func (f *feed) Playing() bool { return f.playing.Load() }

func (f *feed) Done() <-chan struct{} { return f.done }

func (f *feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// finish marks playback as ended. io.EOF is a normal end and is not kept.
func (f *feed) finish(err error) {
	f.once.Do(func() {
		if err != nil && !errors.Is(err, io.EOF) {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
		}
		f.playing.Store(false)
		close(f.done)
	})
}

func (f *feed) finished() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// fill reads until dst is full, the source ends, or the source has nothing
// right now. The returned error is the source's, io.EOF included.
func (f *feed) fill(dst []float32) (int, error) {
	if f.src == nil || f.finished() {
		return 0, io.EOF
	}

	total := 0
	var err error
	for total < len(dst) {
		var n int
		n, err = f.src.ReadSamples(dst[total:])
		total += n
		if err != nil || n == 0 {
			break
		}
	}

	if v := f.Volume(); v != 1 {
		for i := range dst[:total] {
			dst[i] *= v
		}
	}
	return total, err
}

// fillPadded is fill for device callbacks: a short read is padded with
// silence, and the end of the source finishes the feed.
func (f *feed) fillPadded(dst []float32) (int, bool) {
	n, err := f.fill(dst)
	if err != nil {
		f.finish(err)
		return n, false
	}
	clear(dst[n:])
	return len(dst), true
}
