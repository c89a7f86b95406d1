// SPDX-License-Identifier: EPL-2.0

package director

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/events"
	"github.com/ik5/spatialpbx/formats"
	"github.com/ik5/spatialpbx/spatial"
	"github.com/ik5/spatialpbx/stream"
	"github.com/ik5/spatialpbx/voice"
)

// PlayAudio plays the file or stream URL at locator from emitter in the
// background. Speech categories go to the Speech collection, everything
// else to VoicePack.
func (d *Director) PlayAudio(emitter spatial.Emitter, locator string, category spatial.Category, delay, skipAhead time.Duration) {
	collection := VoicePack
	if category.IsSpeech() {
		collection = Speech
	}
	d.dispatch(func(ctx context.Context) {
		d.ConfigureAudio(ctx, emitter, locator, category, collection, delay, skipAhead)
	})
}

// ConfigureAudio resolves and decodes locator, settles any voice already
// held for emitter in collection and starts the new one. Stream URLs are
// played as they arrive instead of being decoded up front. Calls overlapping
// for the same emitter and collection are coalesced into the first.
func (d *Director) ConfigureAudio(ctx context.Context, emitter spatial.Emitter, locator string, category spatial.Category, collection Collection, delay, skipAhead time.Duration) {
	if emitter == nil {
		return
	}
	name := emitter.Name()
	key := string(collection) + "/" + name

	_, _, shared := d.flight.Do(key, func() (any, error) {
		d.configure(ctx, emitter, locator, category, collection, delay, skipAhead)
		return nil, nil
	})
	if shared {
		d.log.Debug().Str("emitter", name).Str("locator", locator).Msg("play request coalesced")
	}
}

func (d *Director) configure(ctx context.Context, emitter spatial.Emitter, locator string, category spatial.Category, collection Collection, delay, skipAhead time.Duration) {
	name := emitter.Name()
	log := d.log.With().Str("emitter", name).Str("locator", locator).Logger()

	if stream.IsStreamURL(locator) {
		if !d.settle(ctx, collection, name, category) || ctx.Err() != nil {
			return
		}
		v := d.newVoice(emitter, category, collection)
		d.start(ctx, v, collection, func(opts voice.Options) error {
			opts.Delay, opts.SkipAhead = delay, skipAhead
			opts.Stream = d.streamOptions(false)
			return v.PlayStream(ctx, locator, opts)
		})
		return
	}

	clip, err := d.load(locator)
	if errors.Is(err, ErrResourceNotFound) {
		log.Debug().Msg("audio resource not found")
		return
	}
	if err != nil {
		d.reportError(name, err)
		return
	}

	if !d.settle(ctx, collection, name, category) {
		log.Debug().Stringer("category", category).Msg("existing voice keeps playing")
		return
	}
	if ctx.Err() != nil {
		return
	}

	v := d.newVoice(emitter, category, collection)
	d.start(ctx, v, collection, func(opts voice.Options) error {
		opts.Delay, opts.SkipAhead = delay, skipAhead
		return v.Play(ctx, clip, opts)
	})
}

// load decodes the whole clip so it can be measured, seeked and looped.
func (d *Director) load(locator string) (*audio.Buffer, error) {
	if _, err := os.Stat(locator); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, locator)
		}
		return nil, err
	}

	src, err := formats.Open(d.registry, locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", voice.ErrDecode, locator, err)
	}
	clip, err := audio.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", voice.ErrDecode, locator, err)
	}
	return clip, nil
}

// settle applies pre-emption to the voice held for name. It reports
// whether the new request may take the slot.
func (d *Director) settle(ctx context.Context, collection Collection, name string, category spatial.Category) bool {
	old := d.Voice(collection, name)
	if old == nil {
		return true
	}

	switch {
	case category == spatial.MainVoice || category.IsCombat():
		if old.State() == voice.Playing {
			return false
		}
		old.Stop()
	case category == spatial.MainTts:
		timer := time.NewTimer(d.preempt)
		select {
		case <-old.Done():
		case <-timer.C:
		case <-ctx.Done():
		}
		timer.Stop()
		old.StopWith(voice.ReasonPreempted)
	default:
		old.StopWith(voice.ReasonPreempted)
	}

	old.Wait()
	d.voices[collection].CompareAndDelete(name, old)
	return true
}

func (d *Director) newVoice(emitter spatial.Emitter, category spatial.Category, collection Collection) *voice.Voice {
	return voice.New(voice.Config{
		Emitter:  emitter,
		Category: category,
		Logger:   d.log.With().Str("collection", string(collection)).Logger(),
		OnStopped: func(v *voice.Voice, reason voice.Reason, err error) {
			d.voices[collection].CompareAndDelete(v.Emitter().Name(), v)
			if err != nil {
				d.reportError(v.Emitter().Name(), err)
			}
			d.bus.Publish(events.PlaybackStopped{
				Emitter:    v.Emitter().Name(),
				Collection: string(collection),
				Category:   v.Category(),
				Reason:     string(reason),
			})
		},
	})
}

// start registers v, gives it its initial placement and plays it.
func (d *Director) start(ctx context.Context, v *voice.Voice, collection Collection, play func(voice.Options) error) {
	name := v.Emitter().Name()
	d.voices[collection].Store(name, v)
	v.SetSpatial(d.spatialize(v.Category(), v.Emitter()))

	opts := voice.Options{
		Mode:       d.mode,
		Backend:    d.bopts,
		NewBackend: d.factory,
		Speed:      d.speed,
		Pitch:      d.pitch,
	}
	if d.metering {
		opts.OnLevels = func(l audio.Levels) {
			d.bus.Publish(events.Levels{Emitter: name, RMS: l.RMS, Peak: l.Peak})
		}
	}

	// Failures are reported by OnStopped.
	if err := play(opts); err != nil && !errors.Is(err, voice.ErrInvalidated) {
		d.log.Debug().Err(err).Str("emitter", name).Msg("voice did not start")
	}
	if ctx.Err() != nil {
		v.Stop()
	}
}

// PlayAudioStream plays a caller supplied source for emitter, replacing
// its previous passthrough voice. The director owns src from here on.
func (d *Director) PlayAudioStream(emitter spatial.Emitter, src audio.Source, category spatial.Category, delay time.Duration) {
	if emitter == nil || src == nil {
		return
	}
	ok := d.dispatch(func(ctx context.Context) {
		d.playAudioStream(ctx, emitter, src, category, delay)
	})
	if !ok {
		_ = src.Close()
	}
}

func (d *Director) playAudioStream(ctx context.Context, emitter spatial.Emitter, src audio.Source, category spatial.Category, delay time.Duration) {
	name := emitter.Name()
	unlock := d.emitterMu.Lock(name)
	defer unlock()

	if old := d.Voice(Passthrough, name); old != nil {
		old.StopWith(voice.ReasonPreempted)
		old.Wait()
		d.voices[Passthrough].CompareAndDelete(name, old)
	}
	if ctx.Err() != nil {
		_ = src.Close()
		return
	}

	v := d.newVoice(emitter, category, Passthrough)
	d.start(ctx, v, Passthrough, func(opts voice.Options) error {
		opts.Delay = delay
		return v.Play(ctx, src, opts)
	})
}

// PlayStream plays the live stream at url from emitter. Only one live
// stream plays at a time: the current one is stopped first. Locators that
// are not http, https, ws or wss URLs are ignored.
func (d *Director) PlayStream(emitter spatial.Emitter, url string, delay time.Duration) {
	if emitter == nil {
		return
	}
	if !stream.IsStreamURL(url) {
		d.log.Debug().Str("emitter", emitter.Name()).Str("url", url).Msg("not a stream url")
		return
	}
	d.dispatch(func(ctx context.Context) {
		d.playStream(ctx, emitter, url, delay)
	})
}

func (d *Director) playStream(ctx context.Context, emitter spatial.Emitter, url string, delay time.Duration) {
	d.streamMu.Lock()
	defer d.streamMu.Unlock()

	d.stopAll(LiveStream, voice.ReasonPreempted)
	if ctx.Err() != nil {
		return
	}

	v := d.newVoice(emitter, spatial.LiveStream, LiveStream)
	d.start(ctx, v, LiveStream, func(opts voice.Options) error {
		opts.Delay = delay
		opts.Stream = d.streamOptions(true)
		return v.PlayStream(ctx, url, opts)
	})
}

// streamOptions returns the stream options of a voice. Only the live
// stream publishes video frames.
func (d *Director) streamOptions(live bool) stream.Options {
	sopts := d.sopts
	sopts.Registry = d.registry
	if live {
		sopts.Frames = &d.frames
	}
	return sopts
}

// StopStream stops the live stream and forgets its last frame.
func (d *Director) StopStream() {
	d.streamMu.Lock()
	defer d.streamMu.Unlock()

	d.stopAll(LiveStream, voice.ReasonStopped)
	d.frames.Clear()
}

// IsAllowedToStartStream reports whether emitter may start a live stream:
// no stream is playing, emitter owns it, or it already stopped.
func (d *Director) IsAllowedToStartStream(emitter spatial.Emitter) bool {
	allowed := true
	d.voices[LiveStream].Range(func(key, value any) bool {
		v := value.(*voice.Voice)
		if emitter != nil && key.(string) == emitter.Name() {
			return true
		}
		if v.State() != voice.Stopped {
			allowed = false
			return false
		}
		return true
	})
	return allowed
}

// StopAudio stops emitter's file and passthrough voices.
func (d *Director) StopAudio(emitter spatial.Emitter) {
	if emitter == nil {
		return
	}
	for _, c := range []Collection{VoicePack, Passthrough} {
		if v, ok := d.voices[c].LoadAndDelete(emitter.Name()); ok {
			v.(*voice.Voice).Stop()
		}
	}
}

// LoopEarly restarts emitter's looping voices from the beginning.
func (d *Director) LoopEarly(emitter spatial.Emitter) {
	if emitter == nil {
		return
	}
	for _, c := range []Collection{VoicePack, Passthrough} {
		if v := d.Voice(c, emitter.Name()); v != nil {
			v.LoopEarly()
		}
	}
}
