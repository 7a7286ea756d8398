// SPDX-License-Identifier: MIT
package fade

import (
	"bytes"
	"math"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	applog "fadeout/internal/log"
)

const gateTimeout = 2 * time.Second

func newTestController(t *testing.T, clock Clock, duration float64) (*Controller, *countingPlayer, *queueDispatcher) {
	t.Helper()
	settings := newMapSettings()
	if err := settings.SetDouble(ConfigSection, ConfigKeyDuration, duration); err != nil {
		t.Fatalf("SetDouble: %v", err)
	}
	player := &countingPlayer{}
	player.playing.Store(true)
	dispatcher := &queueDispatcher{}

	c := NewController(NewState(), Host{
		Player:     player,
		Dispatcher: dispatcher,
		Settings:   settings,
	}, clock)
	c.state.setStreamActive(true)
	return c, player, dispatcher
}

func TestRequestFadeOutWithoutStream(t *testing.T) {
	c, _, _ := newTestController(t, newVirtualClock(), 4)
	c.state.setStreamActive(false)

	if c.RequestFadeOut() {
		t.Fatal("fade must not start without an active stream")
	}
	if c.state.Attenuation() != Identity {
		t.Errorf("attenuation = %v, want %v", c.state.Attenuation(), Identity)
	}
}

func TestRequestFadeOutIdempotent(t *testing.T) {
	clock := newGateClock()
	c, _, _ := newTestController(t, clock, 4)
	t.Cleanup(func() {
		c.ForceStop()
		clock.releaseAll()
		c.Wait()
	})

	if !c.RequestFadeOut() {
		t.Fatal("first request should start a fade")
	}
	if !clock.waitEntered(0, gateTimeout) {
		t.Fatal("stepping task never slept")
	}

	rate := StepGrowthRate(4)
	for range 5 {
		if c.RequestFadeOut() {
			t.Fatal("second request must not start another fade")
		}
	}
	if got := c.state.Attenuation(); got != rate {
		t.Errorf("attenuation = %v, want first step %v", got, rate)
	}

	// Exactly one task is stepping: after one release the attenuation grows
	// by one step only.
	clock.open(0)
	if !clock.waitEntered(1, gateTimeout) {
		t.Fatal("stepping task did not continue")
	}
	if got, want := c.state.Attenuation(), rate*rate; got != want {
		t.Errorf("attenuation = %v, want %v", got, want)
	}
}

func TestFadeRunsToSilenceAndStops(t *testing.T) {
	clock := newVirtualClock()
	c, player, dispatcher := newTestController(t, clock, 2)

	var (
		mu       sync.Mutex
		observed []float64
	)
	clock.onSleep = func() {
		mu.Lock()
		observed = append(observed, c.state.Attenuation())
		mu.Unlock()
	}

	if !c.RequestFadeOut() {
		t.Fatal("fade did not start")
	}
	c.Wait()

	if c.state.Active() {
		t.Errorf("fade should be inactive after completion, attenuation %v", c.state.Attenuation())
	}
	if player.stops.Load() != 0 {
		t.Error("stop must be marshaled through the dispatcher, not called directly")
	}
	if n := dispatcher.drain(); n != 1 {
		t.Fatalf("dispatcher received %d posts, want 1", n)
	}
	if player.stops.Load() != 1 {
		t.Errorf("StopPlayback called %d times, want 1", player.stops.Load())
	}

	mu.Lock()
	defer mu.Unlock()

	steps := Steps(2)
	if len(observed) < steps-2 || len(observed) > steps {
		t.Errorf("observed %d sleeps, want about %d", len(observed), steps)
	}
	for i := 1; i < len(observed); i++ {
		if observed[i] < observed[i-1] {
			t.Fatalf("attenuation decreased at step %d: %v -> %v", i, observed[i-1], observed[i])
		}
	}
	last := observed[len(observed)-1]
	if final := last * StepGrowthRate(2); final < MaxVolReduction*(1-1e-9) {
		t.Errorf("fade stopped at %v, below the silence threshold", final)
	}
	if elapsed := clock.elapsed(); elapsed < 1900*time.Millisecond || elapsed > 2100*time.Millisecond {
		t.Errorf("fade took %s of clock time, want about 2s", elapsed)
	}
}

func TestForceStopCancelsTask(t *testing.T) {
	clock := newGateClock()
	c, player, dispatcher := newTestController(t, clock, 4)
	t.Cleanup(clock.releaseAll)

	if !c.RequestFadeOut() {
		t.Fatal("fade did not start")
	}
	if !clock.waitEntered(0, gateTimeout) {
		t.Fatal("stepping task never slept")
	}

	if !c.ForceStop() {
		t.Error("ForceStop should report an active fade")
	}
	if c.state.Attenuation() != Identity {
		t.Fatalf("attenuation = %v after ForceStop", c.state.Attenuation())
	}

	clock.open(0)
	c.Wait()

	if c.state.Attenuation() != Identity {
		t.Errorf("cancelled task modified attenuation: %v", c.state.Attenuation())
	}
	if dispatcher.drain() != 0 || player.stops.Load() != 0 {
		t.Error("a cancelled fade must not stop playback")
	}
	if c.ForceStop() {
		t.Error("ForceStop on an inactive controller should report false")
	}
}

func TestRequestAfterForceStopSucceedsImmediately(t *testing.T) {
	clock := newGateClock()
	c, _, _ := newTestController(t, clock, 4)
	t.Cleanup(func() {
		c.ForceStop()
		clock.releaseAll()
		c.Wait()
	})

	if !c.RequestFadeOut() {
		t.Fatal("first fade did not start")
	}
	if !clock.waitEntered(0, gateTimeout) {
		t.Fatal("first task never slept")
	}
	c.ForceStop()

	// The first task is still asleep, the new fade must start anyway.
	if !c.RequestFadeOut() {
		t.Fatal("fade after ForceStop did not start")
	}
	if !clock.waitEntered(1, gateTimeout) {
		t.Fatal("second task never slept")
	}

	rate := StepGrowthRate(4)

	// Waking the superseded task must not advance the new fade.
	clock.open(0)
	clock.open(1)
	if !clock.waitEntered(2, gateTimeout) {
		t.Fatal("second task did not continue")
	}
	if got, want := c.state.Attenuation(), rate*rate; got != want {
		t.Errorf("attenuation = %v, want %v (one step of the new fade)", got, want)
	}
	if clock.waitEntered(3, 50*time.Millisecond) {
		t.Error("superseded task is still stepping")
	}
}

func TestRequestFadeOutSpawnFailure(t *testing.T) {
	var logs bytes.Buffer
	applog.SetOutput(&logs)
	t.Cleanup(func() { applog.SetOutput(os.Stderr) })

	// Stuck tasks ignore cancellation and keep their slot.
	clock := newGateClock()
	clock.stuck = true
	c, _, _ := newTestController(t, clock, 4)
	t.Cleanup(func() {
		c.ForceStop()
		clock.releaseAll()
		c.Wait()
	})

	for i := range maxStepTasks {
		if !c.RequestFadeOut() {
			t.Fatalf("fade %d did not start", i)
		}
		if !clock.waitEntered(i, gateTimeout) {
			t.Fatalf("task %d never slept", i)
		}
		c.ForceStop()
	}

	if c.RequestFadeOut() {
		t.Fatal("fade must not start without a free task slot")
	}
	if c.state.Attenuation() != Identity {
		t.Errorf("attenuation = %v after failed start, want %v", c.state.Attenuation(), Identity)
	}
	if !strings.Contains(logs.String(), "Could not create the task for fading out") {
		t.Errorf("spawn failure not logged, got:\n%s", logs.String())
	}
}

func TestRapidRequestForceStopCycles(t *testing.T) {
	c, _, _ := newTestController(t, SystemClock, 4)

	for i := range 10 {
		if !c.RequestFadeOut() {
			t.Fatalf("request %d after ForceStop failed", i)
		}
		if !c.ForceStop() {
			t.Fatalf("ForceStop %d found no active fade", i)
		}
	}

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(gateTimeout):
		t.Fatal("cancelled stepping tasks did not exit")
	}
	if c.state.Attenuation() != Identity {
		t.Errorf("attenuation = %v, want %v", c.state.Attenuation(), Identity)
	}
}

func TestForceStopWakesSleepingTask(t *testing.T) {
	clock := newGateClock()
	c, _, _ := newTestController(t, clock, 4)
	t.Cleanup(clock.releaseAll)

	if !c.RequestFadeOut() {
		t.Fatal("fade did not start")
	}
	if !clock.waitEntered(0, gateTimeout) {
		t.Fatal("stepping task never slept")
	}
	c.ForceStop()

	// The gate stays closed: only the cancellation can end the sleep.
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(gateTimeout):
		t.Fatal("ForceStop did not wake the stepping task")
	}
}

func TestStopWithPlaybackOnce(t *testing.T) {
	clock := newGateClock()
	c, player, dispatcher := newTestController(t, clock, 4)
	t.Cleanup(func() {
		clock.releaseAll()
		c.Wait()
	})

	if c.StopWithPlayback() {
		t.Error("StopWithPlayback without a fade should report false")
	}

	c.RequestFadeOut()
	if !c.StopWithPlayback() {
		t.Fatal("StopWithPlayback should conclude the active fade")
	}
	if c.StopWithPlayback() {
		t.Error("second StopWithPlayback should be a no-op")
	}
	dispatcher.drain()
	if player.stops.Load() != 1 {
		t.Errorf("StopPlayback called %d times, want 1", player.stops.Load())
	}
	if c.state.Attenuation() != Identity {
		t.Errorf("attenuation = %v, want %v", c.state.Attenuation(), Identity)
	}
}

func TestControllerDuration(t *testing.T) {
	tests := []struct {
		name   string
		stored float64
		want   float64
	}{
		{"In range", 6.5, 6.5},
		{"Too short", 0.1, MinDuration},
		{"Too long", 30, MaxDuration},
		{"NaN", math.NaN(), DefaultDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestController(t, newVirtualClock(), tt.stored)
			if got := c.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}

	c := NewController(NewState(), Host{}, nil)
	if c.Duration() != DefaultDuration {
		t.Errorf("Duration() without settings = %v, want %v", c.Duration(), DefaultDuration)
	}
}

func TestStopWithoutDispatcherCallsPlayerDirectly(t *testing.T) {
	player := &countingPlayer{}
	c := NewController(NewState(), Host{Player: player}, newVirtualClock())
	c.state.setStreamActive(true)

	if !c.RequestFadeOut() {
		t.Fatal("fade did not start")
	}
	c.Wait()

	if player.stops.Load() != 1 {
		t.Errorf("StopPlayback called %d times, want 1", player.stops.Load())
	}
}
