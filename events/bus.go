// SPDX-License-Identifier: EPL-2.0

// Package events is an in-process publish/subscribe bus for playback
// notifications.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/ik5/spatialpbx/spatial"
)

// Kind names an event type.
type Kind string

const (
	KindError           Kind = "error"
	KindPlaybackStopped Kind = "playback_stopped"
	KindLevels          Kind = "levels"
)

// Event is anything published on a Bus.
type Event interface {
	Kind() Kind
}

// Error reports a recoverable fault. Emitter is "" when the fault is not
// tied to an emitter.
type Error struct {
	Emitter string
	Cause   error
}

func (Error) Kind() Kind { return KindError }

// PlaybackStopped is published once per voice when it reaches Stopped.
type PlaybackStopped struct {
	Emitter    string
	Collection string
	Category   spatial.Category
	Reason     string
}

func (PlaybackStopped) Kind() Kind { return KindPlaybackStopped }

// Levels carries the signal level of one processed block.
type Levels struct {
	Emitter string
	RMS     float32
	Peak    float32
}

func (Levels) Kind() Kind { return KindLevels }

// Subscription receives the events of one kind.
type Subscription chan Event

const subscriptionBuffer = 64

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that falls behind loses events.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Kind]map[Subscription]struct{}
	closed  bool
	dropped atomic.Int64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind]map[Subscription]struct{})}
}

// Subscribe registers for events of kind. The channel is closed by
// Unsubscribe or Close.
func (b *Bus) Subscribe(kind Kind) Subscription {
	sub := make(Subscription, subscriptionBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub)
		return sub
	}
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[Subscription]struct{})
	}
	b.subs[kind][sub] = struct{}{}
	return sub
}

// Unsubscribe removes and closes sub. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(kind Kind, sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[kind][sub]; !ok {
		return
	}
	delete(b.subs[kind], sub)
	close(sub)
}

// Publish delivers e to every subscriber of its kind.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[e.Kind()] {
		select {
		case sub <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped is the number of deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Close closes every subscription. Later subscriptions are returned closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for kind, subs := range b.subs {
		for sub := range subs {
			close(sub)
		}
		delete(b.subs, kind)
	}
}
