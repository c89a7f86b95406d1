// SPDX-License-Identifier: EPL-2.0

package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/backend"
	"github.com/ik5/spatialpbx/spatial"
	"github.com/ik5/spatialpbx/stream"
	"golang.org/x/sync/errgroup"
)

// Options tune one Play call.
type Options struct {
	// Delay postpones the start. Stop cancels the wait.
	Delay time.Duration
	// SkipAhead starts a seekable source this far in.
	SkipAhead time.Duration
	// Speed plays faster (> 1) or slower (< 1), changing pitch with it.
	Speed float64
	// Pitch shifts pitch by a ratio without changing duration.
	Pitch float64

	Mode    backend.Mode
	Backend backend.Options
	// NewBackend replaces backend.New.
	NewBackend backend.Factory

	// OnLevels receives the level of every block played.
	OnLevels func(audio.Levels)
	// Stream configures PlayStream.
	Stream stream.Options
}

// Play starts src and returns once the backend accepted it, or when Stop
// cancelled the start. The voice owns src from here on, also on error.
func (v *Voice) Play(ctx context.Context, src audio.Source, opts Options) error {
	if v.invalidated.Load() {
		_ = src.Close()
		return ErrInvalidated
	}
	if !v.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		_ = src.Close()
		return ErrAlreadyStarted
	}

	err := v.start(ctx, src, opts)
	if err == nil {
		return nil
	}

	v.mu.Lock()
	attached := v.attached
	v.mu.Unlock()
	if !attached {
		_ = src.Close()
	}

	defer v.state.Store(int32(Stopped))
	if errors.Is(err, errCancelled) || errors.Is(err, context.Canceled) {
		v.finish(ReasonStopped, nil)
		return nil
	}
	v.finish(ReasonFailed, err)
	return err
}

// PlayStream opens locator with the stream package and plays it. The
// connection lives as long as the voice, not as long as ctx.
func (v *Voice) PlayStream(ctx context.Context, locator string, opts Options) error {
	if v.invalidated.Load() {
		return ErrInvalidated
	}
	if v.State() != Stopped {
		return ErrAlreadyStarted
	}

	opts.Stream.Logger = v.log
	src, err := stream.Open(v.life, locator, opts.Stream)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDecode, err)
		v.finish(ReasonFailed, err)
		return err
	}
	return v.Play(ctx, src, opts)
}

func (v *Voice) start(ctx context.Context, src audio.Source, opts Options) error {
	if src.Channels() < 1 {
		return fmt.Errorf("%w: %w", ErrDecode, audio.ErrNoChannels)
	}

	v.mu.Lock()
	category := v.category.Promote(audio.Duration(src))
	if category != v.category {
		v.log.Debug().
			Stringer("from", v.category).
			Stringer("to", category).
			Dur("length", audio.Duration(src)).
			Msg("long clip promoted to loop")
		v.category = category
	}
	v.mu.Unlock()

	if opts.Delay > 0 {
		timer := time.NewTimer(opts.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-v.life.Done():
			return errCancelled
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	bopts := opts.Backend
	bopts.LowLatency = bopts.LowLatency || category.IsCombat()
	bopts.Logger = v.log
	newBackend := opts.NewBackend
	if newBackend == nil {
		newBackend = backend.New
	}
	out, err := newBackend(opts.Mode, bopts)
	if err != nil {
		if !errors.Is(err, backend.ErrInitFailed) {
			err = fmt.Errorf("%w: %w", backend.ErrInitFailed, err)
		}
		return err
	}

	if opts.SkipAhead > 0 {
		if err := skipAhead(src, opts.SkipAhead); err != nil {
			_ = out.Stop()
			return err
		}
	}

	// Opening a device can take a round trip to the sound server, so the
	// pipeline is built and bound without holding mu.
	p := build(src, category, opts, out.SampleRate())
	if err := out.Init(p.out); err != nil {
		_ = out.Stop()
		return fmt.Errorf("%w: %w", backend.ErrInitFailed, err)
	}

	v.mu.Lock()
	if v.invalidated.Load() {
		v.mu.Unlock()
		_ = out.Stop()
		return errCancelled
	}
	v.out, v.pipe, v.attached = out, p.out, true
	v.loop, v.counter, v.meter, v.gain, v.panner = p.loop, p.counter, p.meter, p.gain, p.panner
	if category == spatial.LoopUntilStopped {
		v.fade = 0
	}
	v.applyLocked()

	g, gctx := errgroup.WithContext(v.life)
	g.Go(func() error { return v.watchBackend(gctx, out) })
	g.Go(func() error { return v.watchStall(gctx, p.counter) })
	switch {
	case v.emitter == nil:
	case category == spatial.AmbientLoop, category == spatial.AmbientLoopWhileMoving:
		g.Go(func() error { return v.watchLoopBreak(gctx, category) })
	case category == spatial.LoopUntilStopped:
		g.Go(func() error { return v.watchFade(gctx) })
	}
	v.monitors = g
	v.mu.Unlock()

	if err := out.Play(); err != nil {
		if v.invalidated.Load() {
			return errCancelled
		}
		return err
	}
	if v.state.CompareAndSwap(int32(Starting), int32(Playing)) {
		v.log.Debug().
			Stringer("category", category).
			Str("mode", string(opts.Mode)).
			Int("sample_rate", out.SampleRate()).
			Msg("voice playing")
	}
	return nil
}

func skipAhead(src audio.Source, d time.Duration) error {
	s, ok := src.(audio.Seeker)
	if !ok {
		return nil
	}
	frame := int(d.Seconds() * float64(s.SampleRate()))
	if frame >= s.Len() {
		frame = s.Len()
	}
	if err := s.Seek(frame); err != nil {
		return fmt.Errorf("%w: skip ahead: %w", ErrDecode, err)
	}
	return nil
}

// pipeline holds the stages a voice adjusts while it plays.
type pipeline struct {
	out     audio.Source
	loop    *audio.LoopingSource
	counter *audio.Counter
	meter   *audio.Meter
	gain    *audio.Gain
	panner  *audio.Panner
}

// build chains the pipeline stages:
// src → loop → counter → resample → meter → gain → pan → speed → pitch.
// The gain starts muted until the voice applies its volume.
func build(src audio.Source, category spatial.Category, opts Options, rate int) pipeline {
	var p pipeline
	var s audio.Source = src

	if category.IsLooping() {
		if sk, ok := src.(audio.Seeker); ok {
			p.loop = audio.NewLoopingSource(sk)
			s = p.loop
		}
	}

	p.counter = audio.NewCounter(s)
	s = audio.Convert(p.counter, rate)

	p.meter = audio.NewMeter(s)
	if opts.OnLevels != nil {
		p.meter.OnLevels(opts.OnLevels)
	}

	p.gain = audio.NewGain(p.meter, 0)
	p.panner = audio.NewPanner(p.gain)

	s = audio.NewSpeedShifter(p.panner, opts.Speed)
	p.out = audio.NewPitchShifter(s, opts.Pitch)
	return p
}
