// SPDX-License-Identifier: EPL-2.0

package backend

import (
	"fmt"
	"sync"

	"github.com/ik5/spatialpbx/audio"
	"github.com/jfreymuth/pulse"
)

// pulseBackend plays through a PulseAudio stream, mixed by the sound server.
type pulseBackend struct {
	feed
	opts Options

	mu     sync.Mutex
	client *pulse.Client
	stream *pulse.PlaybackStream
}

func newPulseBackend(opts Options) *pulseBackend {
	b := &pulseBackend{opts: opts}
	b.prepare()
	return b
}

func (b *pulseBackend) SampleRate() int { return b.opts.SampleRate }

func (b *pulseBackend) read(out []float32) (int, error) {
	out = out[:len(out)-len(out)%2]
	n, ok := b.fillPadded(out)
	if !ok && n == 0 {
		return 0, pulse.EndOfData
	}
	return n, nil
}

func (b *pulseBackend) Init(src audio.Source) error {
	if err := checkFormat(src, b.opts.SampleRate); err != nil {
		return err
	}
	b.src = src

	client, err := pulse.NewClient(pulse.ClientApplicationName("spatialpbx"))
	if err != nil {
		return fmt.Errorf("%w: pulse: %w", ErrInitFailed, err)
	}

	stream, err := client.NewPlayback(
		pulse.Float32Reader(b.read),
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(b.opts.SampleRate),
		pulse.PlaybackLatency(b.opts.Buffer.Seconds()),
	)
	if err != nil {
		client.Close()
		return fmt.Errorf("%w: pulse playback: %w", ErrInitFailed, err)
	}

	b.mu.Lock()
	b.client = client
	b.stream = stream
	b.mu.Unlock()
	return nil
}

func (b *pulseBackend) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stream == nil {
		return ErrNotReady
	}
	if b.playing.Load() || b.finished() {
		return nil
	}
	b.playing.Store(true)
	b.stream.Start()
	return nil
}

func (b *pulseBackend) Stop() error {
	b.mu.Lock()
	stream, client := b.stream, b.client
	b.stream, b.client = nil, nil
	b.mu.Unlock()

	b.finish(nil)
	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	if client != nil {
		client.Close()
	}
	return nil
}
