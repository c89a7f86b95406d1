// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"sync"

	"github.com/ik5/spatialpbx/spatial"
)

// Emitter is a movable spatial.Emitter for tests.
type Emitter struct {
	mu      sync.Mutex
	name    string
	pos     spatial.Vec3
	focused string
}

// NewEmitter returns an emitter named name standing at pos.
func NewEmitter(name string, pos spatial.Vec3) *Emitter {
	return &Emitter{name: name, pos: pos}
}

func (e *Emitter) Name() string { return e.name }

func (e *Emitter) Position() spatial.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// MoveTo teleports the emitter.
func (e *Emitter) MoveTo(pos spatial.Vec3) {
	e.mu.Lock()
	e.pos = pos
	e.mu.Unlock()
}

func (e *Emitter) Forward() spatial.Vec3 { return spatial.Vec3{Z: 1} }
func (e *Emitter) Up() spatial.Vec3      { return spatial.Vec3{Y: 1} }
func (e *Emitter) Rotation() float64     { return 0 }

func (e *Emitter) FocusedName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focused
}

// Focus sets the emitter's focus target; "" clears it.
func (e *Emitter) Focus(name string) {
	e.mu.Lock()
	e.focused = name
	e.mu.Unlock()
}

// Listener is a spatial.Listener with a camera at the origin looking down +Z
// with +Y up, so +X is to the right.
type Listener struct {
	mu   sync.Mutex
	cam  spatial.Camera
	self spatial.Emitter
}

// NewListener returns a listener owning self, which may be nil.
func NewListener(self spatial.Emitter) *Listener {
	return &Listener{
		cam: spatial.Camera{
			Forward: spatial.Vec3{Z: 1},
			Up:      spatial.Vec3{Y: 1},
		},
		self: self,
	}
}

func (l *Listener) Camera() spatial.Camera {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cam
}

// SetCamera replaces the camera.
func (l *Listener) SetCamera(cam spatial.Camera) {
	l.mu.Lock()
	l.cam = cam
	l.mu.Unlock()
}

func (l *Listener) Self() spatial.Emitter { return l.self }
