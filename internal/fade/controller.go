// SPDX-License-Identifier: MIT
package fade

import (
	"context"
	"sync"

	applog "fadeout/internal/log"

	"golang.org/x/sync/errgroup"
)

const (
	// ConfigSection and ConfigKeyDuration locate the fade duration in the
	// host's settings.
	ConfigSection     = "fadeout_plugin"
	ConfigKeyDuration = "duration"

	// maxStepTasks bounds stepping goroutines that have not returned yet.
	// Superseded tasks are woken on cancellation and exit at once, so the
	// bound is only reached when tasks are stuck.
	maxStepTasks = 64
)

// Controller owns the fade lifecycle: it claims the shared State for a new
// fade, runs the stepping task and concludes the fade by asking the host to
// stop playback.
type Controller struct {
	state *State
	host  Host
	clock Clock

	// mu serializes control operations. The audio path never takes it.
	mu sync.Mutex
	// generation identifies the current fade. Every start, forced stop and
	// completion bumps it so that a superseded task can never touch the
	// state again.
	generation uint64
	// cancel wakes the stepping task of the current fade.
	cancel context.CancelFunc

	tasks errgroup.Group
}

// NewController returns a controller driving state. A nil clock selects the
// system clock.
func NewController(state *State, host Host, clock Clock) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	c := &Controller{
		state: state,
		host:  host,
		clock: clock,
	}
	c.tasks.SetLimit(maxStepTasks)
	return c
}

// State returns the shared fade state.
func (c *Controller) State() *State {
	return c.state
}

// Duration returns the configured fade duration in seconds, clamped to the
// supported range.
func (c *Controller) Duration() float64 {
	if c.host.Settings == nil {
		return DefaultDuration
	}
	return ClampDuration(c.host.Settings.GetDouble(ConfigSection, ConfigKeyDuration))
}

// RequestFadeOut starts a fade if a stream is playing and no fade is in
// progress; otherwise it does nothing. It never blocks and reports whether a
// fade was started.
func (c *Controller) RequestFadeOut() bool {
	if !c.state.StreamActive() {
		applog.Debugf("FadeController: Fade requested without an active stream, ignoring")
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		applog.Debugf("FadeController: Fade already in progress (attenuation %.3f)", c.state.Attenuation())
		return false
	}

	duration := c.Duration()
	rate := StepGrowthRate(duration)

	c.supersede()
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.state.setAttenuation(Identity * rate)

	started := c.tasks.TryGo(func() error {
		c.run(ctx, gen, rate)
		return nil
	})
	if !started {
		cancel()
		c.state.reset()
		applog.Warnf("FadeController: Could not create the task for fading out: %v", ErrTaskLimit)
		return false
	}

	c.cancel = cancel
	applog.Infof("FadeController: Fading out over %.1fs (rate %.6f per %s)", duration, rate, StepInterval)
	return true
}

// ForceStop ends any fade immediately without stopping playback. A sleeping
// stepping task is woken and exits. Reports whether a fade was active.
func (c *Controller) ForceStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersede()
	wasActive := c.state.Active()
	c.state.reset()
	if wasActive {
		applog.Debugf("FadeController: Fade cancelled")
	}
	return wasActive
}

// StopWithPlayback ends an active fade and asks the host to stop playback.
// It is a no-op when no fade is running, so the host is asked at most once
// per fade.
func (c *Controller) StopWithPlayback() bool {
	c.mu.Lock()
	if !c.state.Active() {
		c.mu.Unlock()
		return false
	}
	c.supersede()
	c.state.reset()
	c.mu.Unlock()

	c.requestStop()
	return true
}

// Wait blocks until every stepping task has returned. Teardown does not need
// it; it exists for orderly shutdown and tests.
func (c *Controller) Wait() {
	_ = c.tasks.Wait()
}

// supersede ends the current generation and wakes its task. Callers hold mu.
func (c *Controller) supersede() {
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// run is the stepping loop of fade gen. The first step was already applied
// when the fade was claimed.
func (c *Controller) run(ctx context.Context, gen uint64, rate float64) {
	p := newPacer(c.clock)

	for c.state.Attenuation() < MaxVolReduction {
		if err := p.wait(ctx); err != nil {
			applog.Debugf("FadeController: Stepping task %d cancelled", gen)
			return
		}

		// If the attenuation was set back outside this task the plugin has
		// shut down or the stream is over.
		if !c.advance(gen, rate) {
			applog.Debugf("FadeController: Stepping task %d exiting after reset", gen)
			return
		}
	}

	c.complete(gen)
}

func (c *Controller) advance(gen uint64, rate float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || !c.state.Active() {
		return false
	}
	c.state.setAttenuation(c.state.Attenuation() * rate)
	return true
}

// complete concludes fade gen once the silence threshold is reached.
func (c *Controller) complete(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || !c.state.Active() {
		c.mu.Unlock()
		return
	}
	applog.Infof("FadeController: Silence reached (attenuation %.2f), stopping playback", c.state.Attenuation())
	c.supersede()
	c.state.reset()
	c.mu.Unlock()

	c.requestStop()
}

// requestStop hands the stop request to the host's control context. Called
// without mu held so a synchronous host may call back into the controller.
func (c *Controller) requestStop() {
	player := c.host.Player
	if player == nil {
		return
	}
	if c.host.Dispatcher == nil {
		player.StopPlayback()
		return
	}
	c.host.Dispatcher.Post(player.StopPlayback)
}
