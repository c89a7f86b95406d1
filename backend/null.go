// SPDX-License-Identifier: EPL-2.0

package backend

import (
	"sync"
	"time"

	"github.com/ik5/spatialpbx/audio"
)

const nullIdle = 10 * time.Millisecond

// nullBackend consumes the pipeline on its own goroutine, paced to the
// sample clock unless Unpaced is set.
type nullBackend struct {
	feed
	opts Options

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

func newNullBackend(opts Options) *nullBackend {
	b := &nullBackend{opts: opts, stop: make(chan struct{})}
	b.prepare()
	return b
}

func (b *nullBackend) SampleRate() int { return b.opts.SampleRate }

func (b *nullBackend) Init(src audio.Source) error {
	if err := checkFormat(src, b.opts.SampleRate); err != nil {
		return err
	}
	b.src = src
	return nil
}

func (b *nullBackend) Play() error {
	if b.src == nil {
		return ErrNotReady
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.playing.Load() || b.finished() {
		return nil
	}
	b.playing.Store(true)
	b.wg.Add(1)
	go b.pump()
	return nil
}

func (b *nullBackend) pump() {
	defer b.wg.Done()

	buf := make([]float32, 2*b.opts.frames())
	start := time.Now()
	var played int64

	for {
		select {
		case <-b.stop:
			return
		default:
		}

		n, err := b.fill(buf)
		if n > 0 {
			if b.opts.Sink != nil {
				b.opts.Sink(buf[:n])
			}
			played += int64(n / 2)
		}
		if err != nil {
			b.finish(err)
			return
		}

		wait := nullIdle
		if n > 0 {
			if b.opts.Unpaced {
				continue
			}
			due := start.Add(time.Duration(played) * time.Second / time.Duration(b.opts.SampleRate))
			wait = time.Until(due)
		}
		if wait <= 0 {
			continue
		}

		select {
		case <-b.stop:
			return
		case <-time.After(wait):
		}
	}
}

func (b *nullBackend) Stop() error {
	b.mu.Lock()
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.finish(nil)
	return nil
}
