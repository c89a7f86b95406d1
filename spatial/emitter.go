// SPDX-License-Identifier: EPL-2.0

package spatial

// Emitter is an entity that can be a sound source. Implementations are owned
// by the caller; the engine only reads them, possibly from several goroutines.
type Emitter interface {
	// Name identifies the emitter and must be stable for the session.
	Name() string
	Position() Vec3
	Forward() Vec3
	Up() Vec3
	Rotation() float64
	// FocusedName is the name of the emitter this one is focused on, or ""
	// when there is no focus target.
	FocusedName() string
}

// Listener is the reference point distances and directions are measured from.
type Listener interface {
	Camera() Camera
	// Self is the listener's own emitter (the local player). It may be nil.
	Self() Emitter
}
