// SPDX-License-Identifier: MIT
package fade

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// countingPlayer records StopPlayback calls.
type countingPlayer struct {
	playing atomic.Bool
	stops   atomic.Int32
}

func (p *countingPlayer) IsPlaying() bool { return p.playing.Load() }
func (p *countingPlayer) StopPlayback() {
	p.stops.Add(1)
	p.playing.Store(false)
}

// queueDispatcher holds posted functions until drain is called, like an idle
// callback waiting for the main loop.
type queueDispatcher struct {
	mu      sync.Mutex
	pending []func()
}

func (d *queueDispatcher) Post(fn func()) {
	d.mu.Lock()
	d.pending = append(d.pending, fn)
	d.mu.Unlock()
}

func (d *queueDispatcher) drain() int {
	d.mu.Lock()
	fns := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// mapSettings is an in-memory Settings.
type mapSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newMapSettings() *mapSettings {
	return &mapSettings{values: make(map[string]string)}
}

func (s *mapSettings) SetDefaults(section string, defaults map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range defaults {
		if _, ok := s.values[section+"."+k]; !ok {
			s.values[section+"."+k] = v
		}
	}
}

func (s *mapSettings) GetDouble(section, key string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := strconv.ParseFloat(s.values[section+"."+key], 64)
	return v
}

func (s *mapSettings) SetDouble(section, key string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[section+"."+key] = strconv.FormatFloat(value, 'g', -1, 64)
	return nil
}

// menuRecorder is an in-memory Menu.
type menuRecorder struct {
	mu      sync.Mutex
	actions map[string]func()
}

func newMenuRecorder() *menuRecorder {
	return &menuRecorder{actions: make(map[string]func())}
}

func (m *menuRecorder) AddAction(label string, action func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[label] = action
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.actions, label)
	}
}

func (m *menuRecorder) action(label string) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actions[label]
}

// virtualClock advances instantly. Each Sleep moves time forward by the
// requested duration plus whatever extra returns.
type virtualClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  int
	extra   func(call int) time.Duration
	onSleep func()
}

func newVirtualClock() *virtualClock {
	return &virtualClock{now: time.Unix(0, 0)}
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	call := c.sleeps
	c.sleeps++
	if c.extra != nil {
		d += c.extra(call)
	}
	c.now = c.now.Add(d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (c *virtualClock) elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(time.Unix(0, 0))
}

// gateClock blocks the n-th Sleep call until gate n is opened or the sleep
// is cancelled. A stuck gateClock ignores cancellation, like a task wedged in
// a system call.
type gateClock struct {
	entered chan int
	release chan struct{}
	stuck   bool

	mu    sync.Mutex
	calls int
	gates map[int]chan struct{}
}

func newGateClock() *gateClock {
	return &gateClock{
		entered: make(chan int, 64),
		release: make(chan struct{}),
		gates:   make(map[int]chan struct{}),
	}
}

func (c *gateClock) gate(n int) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.gates[n]
	if !ok {
		g = make(chan struct{})
		c.gates[n] = g
	}
	return g
}

func (c *gateClock) Now() time.Time { return time.Unix(0, 0) }

func (c *gateClock) Sleep(ctx context.Context, _ time.Duration) error {
	c.mu.Lock()
	n := c.calls
	c.calls++
	c.mu.Unlock()

	g := c.gate(n)
	c.entered <- n

	cancelled := ctx.Done()
	if c.stuck {
		cancelled = nil
	}
	select {
	case <-g:
	case <-c.release:
	case <-cancelled:
		return ctx.Err()
	}
	return nil
}

// open lets sleep call n return.
func (c *gateClock) open(n int) { close(c.gate(n)) }

// releaseAll lets every current and future sleep return.
func (c *gateClock) releaseAll() { close(c.release) }

func (c *gateClock) waitEntered(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case got := <-c.entered:
			if got == n {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
