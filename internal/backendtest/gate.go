// SPDX-License-Identifier: EPL-2.0

// Package backendtest provides backends for exercising slow device opens.
package backendtest

import (
	"sync"

	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/backend"
)

// Gate hands out null backends whose Init blocks until Open is called,
// like a device that takes a while to come up.
type Gate struct {
	entered   chan struct{}
	release   chan struct{}
	enterOnce sync.Once
	openOnce  sync.Once
}

func NewGate() *Gate {
	return &Gate{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

// Factory is a backend.Factory. The requested mode is ignored.
func (g *Gate) Factory(_ backend.Mode, opts backend.Options) (backend.Backend, error) {
	b, err := backend.New(backend.ModeNull, opts)
	if err != nil {
		return nil, err
	}
	return &gated{Backend: b, gate: g}, nil
}

// Entered is closed once a backend is waiting in Init.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Open lets every waiting and future Init through.
func (g *Gate) Open() { g.openOnce.Do(func() { close(g.release) }) }

type gated struct {
	backend.Backend
	gate *Gate
}

func (b *gated) Init(src audio.Source) error {
	b.gate.enterOnce.Do(func() { close(b.gate.entered) })
	<-b.gate.release
	return b.Backend.Init(src)
}
