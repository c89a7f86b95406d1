// SPDX-License-Identifier: EPL-2.0

package backend

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/ik5/spatialpbx/audio"
)

// oto allows a single context per process; every device-mode voice gets
// its own player on it.
var otoShared struct {
	once sync.Once
	ctx  *oto.Context
	rate int
	err  error
}

func otoContext(opts Options) (*oto.Context, int, error) {
	otoShared.once.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   opts.SampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   opts.Buffer,
		})
		if err != nil {
			otoShared.err = err
			return
		}
		<-ready
		otoShared.ctx = ctx
		otoShared.rate = opts.SampleRate
	})
	return otoShared.ctx, otoShared.rate, otoShared.err
}

type otoBackend struct {
	feed
	ctx    *oto.Context
	rate   int
	mu     sync.Mutex
	player *oto.Player
	buf    []float32
}

func newOtoBackend(opts Options) (*otoBackend, error) {
	ctx, rate, err := otoContext(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: oto: %w", ErrInitFailed, err)
	}
	b := &otoBackend{ctx: ctx, rate: rate}
	b.prepare()
	return b, nil
}

func (b *otoBackend) SampleRate() int { return b.rate }

func (b *otoBackend) Init(src audio.Source) error {
	if err := checkFormat(src, b.rate); err != nil {
		return err
	}
	b.src = src

	b.mu.Lock()
	b.player = b.ctx.NewPlayer(b)
	b.mu.Unlock()
	return nil
}

// Read feeds the player with little-endian float32 frames.
func (b *otoBackend) Read(p []byte) (int, error) {
	samples := len(p) / 4
	samples -= samples % 2
	if samples == 0 {
		return 0, nil
	}
	if cap(b.buf) < samples {
		b.buf = make([]float32, samples)
	}
	buf := b.buf[:samples]

	n, ok := b.fillPadded(buf)
	if !ok && n == 0 {
		return 0, io.EOF
	}
	for i, s := range buf[:n] {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(s))
	}
	return 4 * n, nil
}

func (b *otoBackend) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.player == nil {
		return ErrNotReady
	}
	if b.finished() {
		return nil
	}
	b.playing.Store(true)
	b.player.Play()
	return nil
}

// Playing stays true until the player has drained its buffer.
func (b *otoBackend) Playing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.feed.Playing() || (b.player != nil && b.player.IsPlaying())
}

func (b *otoBackend) Stop() error {
	b.mu.Lock()
	p := b.player
	b.player = nil
	b.mu.Unlock()

	var err error
	if p != nil {
		p.Pause()
		err = p.Close()
	}
	b.finish(nil)
	return err
}
