// SPDX-License-Identifier: EPL-2.0

// Package voice plays one emitter's audio through an output backend.
//
// A Voice is single use: it goes Stopped → Starting → Playing → Stopped once,
// and its completion (Done, OnStopped) fires exactly once whichever way it
// ends, including a Stop before Play.
package voice

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/backend"
	"github.com/ik5/spatialpbx/spatial"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is the playback state of a voice.
type State int32

const (
	// Stopped is both the initial and the final state.
	Stopped State = iota
	// Starting covers the start delay and the device open.
	Starting
	// Playing means the backend is pulling samples.
	Playing
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Playing:
		return "playing"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Reason says why a voice stopped.
type Reason string

const (
	// ReasonFinished means the source ran out.
	ReasonFinished Reason = "finished"
	// ReasonStopped means Stop was called.
	ReasonStopped Reason = "stopped"
	// ReasonStall means the source delivered nothing for too long.
	ReasonStall Reason = "stall"
	// ReasonPreempted means a newer request took the voice's slot.
	ReasonPreempted Reason = "preempted"
	// ReasonMoved means a loop tied to a standing emitter saw it move.
	ReasonMoved Reason = "moved"
	// ReasonFailed means the backend or the source failed. Result has the error.
	ReasonFailed Reason = "failed"
)

// Config describes a voice.
type Config struct {
	Emitter  spatial.Emitter
	Category spatial.Category
	Logger   zerolog.Logger
	// OnStopped runs once, on the goroutine that stopped the voice.
	OnStopped func(v *Voice, reason Reason, err error)
}

// Voice is one playback of one source for one emitter. Create it with New,
// start it once with Play or PlayStream, and end it with Stop.
type Voice struct {
	id        uuid.UUID
	emitter   spatial.Emitter
	log       zerolog.Logger
	onStopped func(*Voice, Reason, error)

	state       atomic.Int32
	invalidated atomic.Bool

	life   context.Context
	cancel context.CancelFunc

	// mu guards the pipeline stages and the spatial parameters applied to
	// them.
	mu       sync.Mutex
	category spatial.Category
	base     float32
	pan      float32
	fade     float32
	out      backend.Backend
	pipe     audio.Source
	gain     *audio.Gain
	panner   *audio.Panner
	loop     *audio.LoopingSource
	counter  *audio.Counter
	meter    *audio.Meter
	monitors *errgroup.Group
	attached bool
	reason   Reason
	err      error

	once sync.Once
	done chan struct{}
}

// New returns a stopped voice.
func New(cfg Config) *Voice {
	id := uuid.New()
	name := ""
	if cfg.Emitter != nil {
		name = cfg.Emitter.Name()
	}

	life, cancel := context.WithCancel(context.Background())
	return &Voice{
		id:      id,
		emitter: cfg.Emitter,
		log: cfg.Logger.With().
			Str("voice", id.String()).
			Str("emitter", name).
			Logger(),
		onStopped: cfg.OnStopped,
		life:      life,
		cancel:    cancel,
		category:  cfg.Category,
		base:      1,
		fade:      1,
		done:      make(chan struct{}),
	}
}

// ID identifies the voice in logs.
func (v *Voice) ID() uuid.UUID            { return v.id }
func (v *Voice) Emitter() spatial.Emitter { return v.emitter }
func (v *Voice) State() State             { return State(v.state.Load()) }

// Category is the playing category, after any loop promotion.
func (v *Voice) Category() spatial.Category {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.category
}

// Done is closed once the voice has stopped.
func (v *Voice) Done() <-chan struct{} { return v.done }

// Result reports why the voice stopped. It is only meaningful after Done.
func (v *Voice) Result() (Reason, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reason, v.err
}

// Volume is the gain currently applied, 0 without a pipeline.
func (v *Voice) Volume() float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gain == nil {
		return 0
	}
	return v.gain.Volume()
}

// Pan is the stereo placement currently applied, 0 without a pipeline.
func (v *Voice) Pan() float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.panner == nil {
		return 0
	}
	return v.panner.Pan()
}

// SetVolume sets the listener-relative volume.
func (v *Voice) SetVolume(vol float32) {
	v.mu.Lock()
	v.base = vol
	v.applyLocked()
	v.mu.Unlock()
}

// SetPan sets the stereo placement in [-1, 1].
func (v *Voice) SetPan(pan float32) {
	v.mu.Lock()
	v.pan = pan
	v.applyLocked()
	v.mu.Unlock()
}

// SetSpatial updates volume and pan together. Values set before Play are
// used when the pipeline is built.
func (v *Voice) SetSpatial(vol, pan float32) {
	v.mu.Lock()
	v.base, v.pan = vol, pan
	v.applyLocked()
	v.mu.Unlock()
}

func (v *Voice) applyLocked() {
	if v.gain != nil {
		v.gain.SetVolume(v.base * v.fade)
	}
	if v.panner != nil {
		v.panner.SetPan(v.pan)
	}
}

// Levels is the level of the last block played.
func (v *Voice) Levels() audio.Levels {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.meter == nil {
		return audio.Levels{}
	}
	return v.meter.Levels()
}

// Frames is how many source frames have been played, counting every loop.
func (v *Voice) Frames() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.counter == nil {
		return 0
	}
	return v.counter.Frames()
}

// Loops is how many times a looping voice has wrapped.
func (v *Voice) Loops() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loop == nil {
		return 0
	}
	return v.loop.Loops()
}

// Looping reports whether the voice plays through a loop wrapper.
func (v *Voice) Looping() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loop != nil && v.loop.Looping()
}

// LoopEarly rewinds a looping voice now. Other voices ignore it.
func (v *Voice) LoopEarly() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loop != nil {
		v.loop.LoopEarly()
	}
}

// Stop ends playback. It is safe to call at any time and more than once.
func (v *Voice) Stop() { v.finish(ReasonStopped, nil) }

// StopWith ends playback recording reason.
func (v *Voice) StopWith(reason Reason) { v.finish(reason, nil) }

// Wait blocks until the voice's monitors have exited. Call it after Stop,
// never from OnStopped.
func (v *Voice) Wait() {
	v.mu.Lock()
	g := v.monitors
	v.mu.Unlock()
	if g != nil {
		_ = g.Wait()
	}
}

// finish moves the voice to Stopped and releases the pipeline. Only the
// first call has any effect.
func (v *Voice) finish(reason Reason, err error) {
	v.once.Do(func() {
		v.mu.Lock()
		v.invalidated.Store(true)
		if v.gain != nil {
			v.gain.SetVolume(0)
		}
		out, pipe := v.out, v.pipe
		v.out, v.pipe = nil, nil
		v.gain, v.panner, v.loop, v.meter = nil, nil, nil, nil
		v.reason, v.err = reason, err
		v.mu.Unlock()

		v.cancel()

		if out != nil {
			out.SetVolume(0)
			if serr := out.Stop(); serr != nil {
				v.log.Debug().Err(serr).Msg("backend stop failed")
			}
		}
		if pipe != nil {
			if cerr := pipe.Close(); cerr != nil {
				v.log.Debug().Err(cerr).Msg("pipeline close failed")
			}
		}

		v.state.Store(int32(Stopped))

		ev := v.log.Debug()
		if err != nil {
			ev = v.log.Warn().Err(err)
		}
		ev.Str("reason", string(reason)).Msg("voice stopped")

		close(v.done)
		if v.onStopped != nil {
			v.onStopped(v, reason, err)
		}
	})
}
