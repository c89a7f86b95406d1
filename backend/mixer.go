// SPDX-License-Identifier: EPL-2.0

package backend

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/ik5/spatialpbx/audio"
)

var speakerShared struct {
	once sync.Once
	rate beep.SampleRate
	err  error
}

func initSpeaker(opts Options) (beep.SampleRate, error) {
	speakerShared.once.Do(func() {
		sr := beep.SampleRate(opts.SampleRate)
		if err := speaker.Init(sr, sr.N(opts.Buffer)); err != nil {
			speakerShared.err = err
			return
		}
		speakerShared.rate = sr
	})
	return speakerShared.rate, speakerShared.err
}

// mixerBackend adds the voice to beep's speaker mixer.
type mixerBackend struct {
	feed
	rate beep.SampleRate
	ctrl *beep.Ctrl
	buf  []float32
}

func newMixerBackend(opts Options) (*mixerBackend, error) {
	rate, err := initSpeaker(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: speaker: %w", ErrInitFailed, err)
	}
	b := &mixerBackend{rate: rate}
	b.prepare()
	return b, nil
}

func (b *mixerBackend) SampleRate() int { return int(b.rate) }

// Stream implements beep.Streamer. It runs under the speaker lock.
func (b *mixerBackend) Stream(samples [][2]float64) (int, bool) {
	need := 2 * len(samples)
	if cap(b.buf) < need {
		b.buf = make([]float32, need)
	}
	buf := b.buf[:need]

	n, ok := b.fillPadded(buf)
	frames := n / 2
	for i := range frames {
		samples[i][0] = float64(buf[2*i])
		samples[i][1] = float64(buf[2*i+1])
	}
	if !ok && frames == 0 {
		return 0, false
	}
	return frames, true
}

func (b *mixerBackend) Init(src audio.Source) error {
	if err := checkFormat(src, int(b.rate)); err != nil {
		return err
	}
	b.src = src

	speaker.Lock()
	b.ctrl = &beep.Ctrl{Streamer: b, Paused: true}
	speaker.Unlock()

	speaker.Play(beep.Seq(b.ctrl, beep.Callback(func() { b.finish(nil) })))
	return nil
}

func (b *mixerBackend) Play() error {
	if b.ctrl == nil {
		return ErrNotReady
	}
	if b.finished() {
		return nil
	}
	b.playing.Store(true)

	speaker.Lock()
	b.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (b *mixerBackend) Stop() error {
	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Streamer = nil
		speaker.Unlock()
	}
	b.finish(nil)
	return nil
}
