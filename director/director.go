// SPDX-License-Identifier: EPL-2.0

// Package director owns every voice of a listener's scene.
//
// Voices live in four collections keyed by emitter name, at most one per
// emitter in each. Entry points never block on playback and never return
// playback faults: those are published on the event bus as events.Error.
// Run keeps volume and pan of every voice in step with the listener's
// camera and the emitters' positions.
package director

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/backend"
	"github.com/ik5/spatialpbx/events"
	"github.com/ik5/spatialpbx/formats"
	"github.com/ik5/spatialpbx/spatial"
	"github.com/ik5/spatialpbx/stream"
	"github.com/ik5/spatialpbx/voice"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Collection groups voices by their source.
type Collection string

const (
	// Speech holds text to speech and NPC lines.
	Speech Collection = "speech"
	// VoicePack holds clips resolved from files.
	VoicePack Collection = "voice_pack"
	// Passthrough holds voices fed from caller supplied sources.
	Passthrough Collection = "passthrough"
	// LiveStream holds the single network stream.
	LiveStream Collection = "live_stream"
)

// Collections lists every collection.
var Collections = []Collection{Speech, VoicePack, Passthrough, LiveStream}

const (
	DefaultUpdateInterval = 100 * time.Millisecond
	defaultPreemptWait    = 20 * time.Second
)

// Options configures a Director. The zero value plays through the default
// device with unity buses.
type Options struct {
	Mode    backend.Mode
	Backend backend.Options
	Buses   *spatial.Buses

	UpdateInterval time.Duration
	// Metering publishes an events.Levels for every block played.
	Metering bool
	// Speed and Pitch are passed to every voice. 0 leaves playback
	// unchanged.
	Speed float64
	Pitch float64
	// NewBackend replaces backend.New.
	NewBackend backend.Factory

	// Registry decodes files. Defaults to formats.Default().
	Registry *audio.Registry
	// Stream is used for live streams; Registry, Frames and Logger are
	// filled in by the director.
	Stream stream.Options

	Logger zerolog.Logger
	// Bus receives events. A private bus is created when nil.
	Bus *events.Bus
}

// Director is the spatial audio director of one listener.
type Director struct {
	listener spatial.Listener
	log      zerolog.Logger
	bus      *events.Bus
	ownBus   bool
	registry *audio.Registry

	mode      backend.Mode
	bopts     backend.Options
	sopts     stream.Options
	metering  bool
	speed     float64
	pitch     float64
	factory   backend.Factory
	interval  time.Duration
	preempt   time.Duration
	buses     atomic.Pointer[spatial.Buses]
	frames    stream.FrameMailbox
	voices    map[Collection]*sync.Map
	flight    singleflight.Group
	emitterMu keyedMutex
	streamMu  sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// New returns a director for listener. Call Run to start the update loop
// and Close to release every voice.
func New(listener spatial.Listener, opts Options) *Director {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Director{
		listener: listener,
		log:      opts.Logger.With().Str("component", "director").Logger(),
		bus:      opts.Bus,
		registry: opts.Registry,
		mode:     opts.Mode,
		bopts:    opts.Backend,
		sopts:    opts.Stream,
		metering: opts.Metering,
		speed:    opts.Speed,
		pitch:    opts.Pitch,
		factory:  opts.NewBackend,
		interval: opts.UpdateInterval,
		preempt:  defaultPreemptWait,
		voices:   make(map[Collection]*sync.Map, len(Collections)),
		ctx:      ctx,
		cancel:   cancel,
	}
	if d.bus == nil {
		d.bus, d.ownBus = events.NewBus(), true
	}
	if d.registry == nil {
		d.registry = formats.Default()
	}
	if d.mode == "" {
		d.mode = backend.ModeDevice
	}
	if d.interval <= 0 {
		d.interval = DefaultUpdateInterval
	}

	buses := spatial.DefaultBuses()
	if opts.Buses != nil {
		buses = *opts.Buses
	}
	d.buses.Store(&buses)

	for _, c := range Collections {
		d.voices[c] = &sync.Map{}
	}
	return d
}

// Events is the bus the director publishes on.
func (d *Director) Events() *events.Bus { return d.bus }

// Run recomputes volume and pan of every voice each update interval until
// ctx is cancelled or the director is closed.
func (d *Director) Run(ctx context.Context) error {
	d.log.Info().Dur("interval", d.interval).Msg("spatial director started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("spatial director stopped")
			return ctx.Err()
		case <-d.ctx.Done():
			d.log.Info().Msg("spatial director closed")
			return nil
		case <-ticker.C:
			d.update()
		}
	}
}

func (d *Director) update() {
	for _, c := range Collections {
		d.voices[c].Range(func(_, value any) bool {
			v := value.(*voice.Voice)
			if v.State() == voice.Stopped || v.Emitter() == nil {
				return true
			}
			vol, pan := d.spatialize(v.Category(), v.Emitter())
			v.SetSpatial(vol, pan)
			return true
		})
	}
}

func (d *Director) spatialize(c spatial.Category, e spatial.Emitter) (vol, pan float32) {
	vol = float32(spatial.GetVolume(*d.buses.Load(), c, e, d.listener))
	if e != nil {
		pan = float32(spatial.Pan(d.listener.Camera(), e.Position()))
	}
	return vol, pan
}

// GetVolume is the bus volume of a category for emitter, before distance
// attenuation.
func (d *Director) GetVolume(c spatial.Category, e spatial.Emitter) float64 {
	return d.buses.Load().Bus(c, spatial.Focused(e, d.listener))
}

// Buses returns the bus volumes in use.
func (d *Director) Buses() spatial.Buses { return *d.buses.Load() }

// SetBuses replaces the bus volumes. Playing voices pick them up on the
// next update.
func (d *Director) SetBuses(b spatial.Buses) {
	d.buses.Store(&b)
	d.log.Debug().
		Float64("main", b.Main).
		Float64("other", b.Other).
		Float64("unfocused", b.Unfocused).
		Float64("sfx", b.SFX).
		Float64("livestream", b.LiveStream).
		Msg("volume buses updated")
}

// LastFrame is the latest JPEG frame of the live stream, or nil.
func (d *Director) LastFrame() []byte { return d.frames.Latest() }

// Voice returns the voice of emitter in collection, or nil.
func (d *Director) Voice(c Collection, emitter string) *voice.Voice {
	m, ok := d.voices[c]
	if !ok {
		return nil
	}
	v, ok := m.Load(emitter)
	if !ok {
		return nil
	}
	return v.(*voice.Voice)
}

// Count is the number of voices held in collection.
func (d *Director) Count(c Collection) int {
	m, ok := d.voices[c]
	if !ok {
		return 0
	}
	n := 0
	m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops every voice and the update loop. It is safe to call more
// than once.
func (d *Director) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.inflight.Wait()

	for _, c := range Collections {
		d.stopAll(c, voice.ReasonStopped)
	}
	d.frames.Clear()

	if d.ownBus {
		d.bus.Close()
	}
	d.log.Info().Msg("spatial director closed all voices")
	return nil
}

// dispatch runs fn on its own goroutine unless the director is closed.
func (d *Director) dispatch(fn func(ctx context.Context)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.log.Debug().Err(ErrClosed).Msg("request dropped")
		return false
	}
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		fn(d.ctx)
	}()
	return true
}

// stopAll stops and removes every voice of c, waiting for each to wind
// down.
func (d *Director) stopAll(c Collection, reason voice.Reason) {
	m := d.voices[c]
	m.Range(func(key, value any) bool {
		v := value.(*voice.Voice)
		m.CompareAndDelete(key, v)
		v.StopWith(reason)
		v.Wait()
		return true
	})
}

func (d *Director) reportError(emitter string, err error) {
	d.log.Warn().Err(err).Str("emitter", emitter).Msg("playback failed")
	d.bus.Publish(events.Error{Emitter: emitter, Cause: err})
}
