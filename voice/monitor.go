// SPDX-License-Identifier: EPL-2.0

package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/backend"
	"github.com/ik5/spatialpbx/spatial"
	"github.com/ik5/spatialpbx/utils"
)

const (
	stallPoll   = 250 * time.Millisecond
	stallGrace  = 1200 * time.Millisecond
	stallWindow = 500 * time.Millisecond

	movePoll = 200 * time.Millisecond
	// An ambient loop ends once its emitter strays this far from where the
	// loop started.
	ambientMoveThreshold = 0.1
	// A loop-while-moving ends on the first tick its emitter moved less.
	movingThreshold = 0.01

	fadeStep = 0.2
	fadeMax  = 0.8
)

// watchBackend ends the voice when the backend runs out of samples.
func (v *Voice) watchBackend(ctx context.Context, out backend.Backend) error {
	select {
	case <-ctx.Done():
		return nil
	case <-out.Done():
	}

	if err := out.Err(); err != nil {
		v.finish(ReasonFailed, fmt.Errorf("%w: %w", ErrDecode, err))
		return nil
	}
	v.finish(ReasonFinished, nil)
	return nil
}

// watchStall stops a voice whose source has not advanced for stallWindow,
// once past the start up grace period.
func (v *Voice) watchStall(ctx context.Context, counter *audio.Counter) error {
	ticker := time.NewTicker(stallPoll)
	defer ticker.Stop()

	start := time.Now()
	last := counter.Frames()
	lastChange := start

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			frames := counter.Frames()
			if frames != last {
				last, lastChange = frames, now
				continue
			}
			if now.Sub(start) < stallGrace || now.Sub(lastChange) <= stallWindow {
				continue
			}
			v.log.Debug().Int64("frames", frames).Msg("source stalled")
			v.finish(ReasonStall, nil)
			return nil
		}
	}
}

// watchLoopBreak ends movement bound loops. AmbientLoop stops once the
// emitter moved away; AmbientLoopWhileMoving stops once it stands still.
func (v *Voice) watchLoopBreak(ctx context.Context, category spatial.Category) error {
	ticker := time.NewTicker(movePoll)
	defer ticker.Stop()

	origin := v.emitter.Position()
	last := origin

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pos := v.emitter.Position()
		var stop bool
		switch category {
		case spatial.AmbientLoop:
			stop = pos.Dist(origin) > ambientMoveThreshold
		case spatial.AmbientLoopWhileMoving:
			stop = pos.Dist(last) < movingThreshold
		}
		last = pos

		if stop {
			v.finish(ReasonMoved, nil)
			return nil
		}
	}
}

// watchFade raises a LoopUntilStopped voice while its emitter moves and
// lowers it while it stands still.
func (v *Voice) watchFade(ctx context.Context) error {
	ticker := time.NewTicker(movePoll)
	defer ticker.Stop()

	last := v.emitter.Position()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pos := v.emitter.Position()
		step := float32(-fadeStep)
		if pos.Dist(last) >= movingThreshold {
			step = fadeStep
		}
		last = pos

		v.mu.Lock()
		v.fade = utils.Clamp(v.fade+step, 0, fadeMax)
		v.applyLocked()
		v.mu.Unlock()
	}
}
