// SPDX-License-Identifier: MIT
package fade

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacerAdjust(t *testing.T) {
	tests := []struct {
		desc          string
		elapsed       []int64 // measured sleep per iteration (µs)
		wantTarget    int64
		wantRemaining int64
	}{
		{"Exact sleeps keep the nominal target", []int64{10000, 10000, 10000}, 10000, 10000},
		{"Overshoot shortens the next sleep", []int64{12000}, 8000, 8000},
		{"Recovered after one short sleep", []int64{12000, 8000}, 10000, 10000},
		{"Undershoot lengthens the next sleep", []int64{9000}, 11000, 11000},
		{"Large overshoot busy-steps", []int64{25000}, 0, -5000},
		{"Deficit carried while busy-stepping", []int64{25000, 0}, 5000, 5000},
		{"Deficit accumulates", []int64{25000, 15000}, 0, -10000},
		{"Deficit repaid", []int64{25000, 15000, 0}, 0, 0},
		{"Back on schedule", []int64{25000, 15000, 0, 0}, 10000, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			p := newPacer(newVirtualClock())
			for _, e := range tt.elapsed {
				p.adjust(e)
			}
			if p.target != tt.wantTarget || p.remaining != tt.wantRemaining {
				t.Errorf("target=%d remaining=%d, want target=%d remaining=%d",
					p.target, p.remaining, tt.wantTarget, tt.wantRemaining)
			}
		})
	}
}

func TestPacerKeepsAverageInterval(t *testing.T) {
	tests := []struct {
		desc  string
		extra func(call int) time.Duration
	}{
		{"No jitter", nil},
		{"Constant oversleep", func(int) time.Duration { return 1500 * time.Microsecond }},
		{"Periodic stalls", func(call int) time.Duration {
			if call%25 == 0 {
				return 30 * time.Millisecond
			}
			return 200 * time.Microsecond
		}},
	}

	const steps = 400

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			clock := newVirtualClock()
			clock.extra = tt.extra
			p := newPacer(clock)

			for range steps {
				p.wait(context.Background())
			}

			want := steps * StepInterval
			got := clock.elapsed()
			// Drift is bounded by the last uncorrected iteration.
			if got < want-StepInterval || got > want+40*time.Millisecond {
				t.Errorf("%d steps took %s, want about %s", steps, got, want)
			}
		})
	}
}

func TestPacerSkipsSleepWhenBehind(t *testing.T) {
	clock := newVirtualClock()
	p := newPacer(clock)
	p.adjust(35000) // 25ms behind

	before := clock.sleeps
	p.wait(context.Background())
	if clock.sleeps != before {
		t.Error("pacer should not sleep while behind schedule")
	}
}

func TestPacerWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := newVirtualClock()
	p := newPacer(clock)
	if err := p.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("wait error = %v, want %v", err, context.Canceled)
	}
	if clock.elapsed() != 0 {
		t.Error("cancelled wait advanced the clock")
	}

	p.adjust(35000) // behind schedule, no sleep
	if err := p.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("wait while behind error = %v, want %v", err, context.Canceled)
	}
}

func TestSystemClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(5*time.Millisecond, cancel)

	start := time.Now()
	err := SystemClock.Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep error = %v, want %v", err, context.Canceled)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancelled Sleep returned after %s", elapsed)
	}
}
