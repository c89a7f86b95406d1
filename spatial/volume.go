// SPDX-License-Identifier: EPL-2.0

package spatial

import "github.com/ik5/spatialpbx/utils"

const (
	// NearMaxDistance applies to the listener's own emitter and live streams.
	NearMaxDistance = 100.0
	// FarMaxDistance applies to everything else.
	FarMaxDistance = 20.0

	panSpread = 3.0
)

// Buses holds the volume of each named bus, each in [0, 1].
type Buses struct {
	Main       float64
	Other      float64
	Unfocused  float64
	SFX        float64
	LiveStream float64
}

// DefaultBuses has every bus at full volume.
func DefaultBuses() Buses {
	return Buses{Main: 1, Other: 1, Unfocused: 1, SFX: 1, LiveStream: 1}
}

// Bus returns the bus volume for a category. Categories without a bus for
// the given focus state play at 1.
func (b Buses) Bus(c Category, focused bool) float64 {
	switch c {
	case CombatSelf, CombatOther, AmbientLoop, AmbientLoopWhileMoving, LoopUntilStopped:
		return b.SFX
	case LiveStream:
		return b.LiveStream
	case MainVoice, MainTts:
		if focused {
			return b.Main
		}
		return b.Unfocused
	case OtherVoice, OtherTts, NpcLine, Emote:
		if focused {
			return b.Other
		}
		return b.Unfocused
	}
	return 1
}

// Focused reports whether the emitter should use the focused bus mapping
// for the listener.
func Focused(emitter Emitter, listener Listener) bool {
	self := listener.Self()
	if self == nil {
		return true
	}
	focus := self.FocusedName()
	if focus == "" || emitter == nil {
		return true
	}
	name := emitter.Name()
	return name == self.Name() || name == focus
}

// MaxDistance is the distance at which a voice of the category falls silent.
func MaxDistance(c Category, emitter Emitter, listener Listener) float64 {
	if c == LiveStream {
		return NearMaxDistance
	}
	if self := listener.Self(); self != nil && emitter != nil && self.Name() == emitter.Name() {
		return NearMaxDistance
	}
	return FarMaxDistance
}

// Attenuate scales volume linearly from 1 at distance 0 down to 0 at maxDist.
func Attenuate(distance, maxDist float64) float64 {
	if maxDist <= 0 {
		return 0
	}
	return utils.Clamp((maxDist-distance)/maxDist, 0, 1)
}

// GetVolume returns the listener-relative volume of an emitter.
func GetVolume(b Buses, c Category, emitter Emitter, listener Listener) float64 {
	bus := b.Bus(c, Focused(emitter, listener))
	if emitter == nil {
		return bus
	}
	d := listener.Camera().Position.Dist(emitter.Position())
	return bus * Attenuate(d, MaxDistance(c, emitter, listener))
}

// Pan returns the stereo placement in [-1, 1] of a point seen from cam.
// Positive values are to the right.
func Pan(cam Camera, pos Vec3) float64 {
	side := cam.Forward.Cross(pos.Sub(cam.Position)).Dot(cam.Up)
	return utils.Clamp(side/panSpread, -1, 1)
}
