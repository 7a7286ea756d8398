// SPDX-License-Identifier: MIT
package fade

import (
	"context"
	"time"
)

// Clock abstracts the wall clock for the stepping task.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

var stepMicros = StepInterval.Microseconds()

// pacer keeps the long-run average step interval at StepInterval despite
// scheduler jitter. After every sleep it carries the overshoot (or
// undershoot) into the next target; while it is behind schedule the target is
// zero and the caller steps without sleeping until it has caught up.
type pacer struct {
	clock     Clock
	target    int64 // microseconds to sleep next
	remaining int64 // carried schedule balance in microseconds
}

func newPacer(clock Clock) *pacer {
	return &pacer{clock: clock, target: stepMicros}
}

// wait sleeps for the current target and computes the next one. It returns
// early with ctx.Err() once ctx is done.
func (p *pacer) wait(ctx context.Context) error {
	start := p.clock.Now()
	if p.target > 0 {
		if err := p.clock.Sleep(ctx, time.Duration(p.target)*time.Microsecond); err != nil {
			return err
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	p.adjust(p.clock.Now().Sub(start).Microseconds())
	return nil
}

// adjust updates the target from the measured length of the last sleep.
// diff > 0 means we slept too long, diff < 0 too short.
func (p *pacer) adjust(elapsed int64) {
	diff := elapsed - p.target
	p.remaining = stepMicros - diff + min(p.remaining, 0)
	p.target = max(p.remaining, 0)
}
