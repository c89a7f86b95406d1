// SPDX-License-Identifier: EPL-2.0

package backend

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/ik5/spatialpbx/audio"
)

// portaudioBackend owns a blocking output stream on the default device.
// Combat voices ask for the device's low latency parameters.
type portaudioBackend struct {
	feed
	opts Options

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32
	stop   chan struct{}
	wg     sync.WaitGroup
}

func newPortaudioBackend(opts Options) *portaudioBackend {
	b := &portaudioBackend{opts: opts, stop: make(chan struct{})}
	b.prepare()
	return b
}

func (b *portaudioBackend) SampleRate() int { return b.opts.SampleRate }

func (b *portaudioBackend) Init(src audio.Source) error {
	if err := checkFormat(src, b.opts.SampleRate); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: portaudio: %w", ErrInitFailed, err)
	}

	host, err := portaudio.DefaultHostApi()
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: portaudio host: %w", ErrInitFailed, err)
	}

	var params portaudio.StreamParameters
	if b.opts.LowLatency {
		params = portaudio.LowLatencyParameters(nil, host.DefaultOutputDevice)
	} else {
		params = portaudio.HighLatencyParameters(nil, host.DefaultOutputDevice)
	}
	params.Output.Channels = 2
	params.SampleRate = float64(b.opts.SampleRate)
	params.FramesPerBuffer = b.opts.frames()

	buf := make([]float32, 2*params.FramesPerBuffer)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: portaudio stream: %w", ErrInitFailed, err)
	}

	b.mu.Lock()
	b.src = src
	b.stream = stream
	b.buf = buf
	b.mu.Unlock()
	return nil
}

func (b *portaudioBackend) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stream == nil {
		return ErrNotReady
	}
	if b.playing.Load() || b.finished() {
		return nil
	}
	if err := b.stream.Start(); err != nil {
		return fmt.Errorf("%w: portaudio start: %w", ErrInitFailed, err)
	}
	b.playing.Store(true)
	b.wg.Add(1)
	go b.pump(b.stream)
	return nil
}

func (b *portaudioBackend) pump(stream *portaudio.Stream) {
	defer b.wg.Done()

	for {
		select {
		case <-b.stop:
			return
		default:
		}

		n, ok := b.fillPadded(b.buf)
		if !ok {
			if n > 0 {
				clear(b.buf[n:])
				_ = stream.Write()
			}
			return
		}
		if err := stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
			b.finish(err)
			return
		}
	}
}

func (b *portaudioBackend) Stop() error {
	b.mu.Lock()
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	stream := b.stream
	b.stream = nil
	b.mu.Unlock()

	b.wg.Wait()
	b.finish(nil)

	if stream == nil {
		return nil
	}
	_ = stream.Stop()
	err := stream.Close()
	portaudio.Terminate()
	return err
}
