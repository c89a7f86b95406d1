// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Gain scales every sample by a volume factor that can be changed while the
// stage is being read. A factor of 0 mutes, 1 leaves samples untouched.
type Gain struct {
	src    Source
	volume atomic.Uint32 // math.Float32bits
}

func NewGain(src Source, volume float32) *Gain {
	g := &Gain{src: src}
	g.SetVolume(volume)
	return g
}

func (g *Gain) SampleRate() int { return g.src.SampleRate() }
func (g *Gain) Channels() int   { return g.src.Channels() }
func (g *Gain) BufSize() int    { return g.src.BufSize() }

func (g *Gain) Close() error {
	if err := g.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// SetVolume stores the new factor; negative values are treated as 0.
func (g *Gain) SetVolume(v float32) {
	if v < 0 || math.IsNaN(float64(v)) {
		v = 0
	}
	g.volume.Store(math.Float32bits(v))
}

func (g *Gain) Volume() float32 {
	return math.Float32frombits(g.volume.Load())
}

func (g *Gain) ReadSamples(dst []float32) (int, error) {
	n, err := g.src.ReadSamples(dst)
	v := g.Volume()
	if v != 1 {
		for i := range dst[:n] {
			dst[i] *= v
		}
	}
	return n, err
}
