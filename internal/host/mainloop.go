// SPDX-License-Identifier: MIT
package host

import (
	"context"
	"errors"
	"sync"

	applog "fadeout/internal/log"
)

// DefaultQueueSize is the number of posted functions a MainLoop buffers.
const DefaultQueueSize = 64

// ErrLoopClosed is returned by Run after Quit.
var ErrLoopClosed = errors.New("host: main loop closed")

// MainLoop is the host's control context. Functions posted from any
// goroutine run one after another on the goroutine that calls Run, so control
// operations such as stopping playback never race with each other.
type MainLoop struct {
	queue chan func()
	quit  chan struct{}
	once  sync.Once

	mu       sync.Mutex
	overflow []func() // posts that did not fit into queue
}

// NewMainLoop creates a loop with a queue of the given size. Non-positive
// sizes select DefaultQueueSize.
func NewMainLoop(size int) *MainLoop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &MainLoop{
		queue: make(chan func(), size),
		quit:  make(chan struct{}),
	}
}

// Post schedules fn to run on the loop. It never blocks: when the queue is
// full fn is parked and runs on the loop's next iteration. Posts after Quit are
// dropped.
func (l *MainLoop) Post(fn func()) {
	if fn == nil {
		return
	}
	select {
	case <-l.quit:
		applog.Debugf("MainLoop: Dropping post after quit")
		return
	default:
	}

	select {
	case l.queue <- fn:
	default:
		l.mu.Lock()
		l.overflow = append(l.overflow, fn)
		l.mu.Unlock()
		applog.Warnf("MainLoop: Queue full (%d), parking posted function", cap(l.queue))
	}
}

// Run executes posted functions until ctx is done or Quit is called.
func (l *MainLoop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.queue:
			l.dispatch(fn)
			l.drainOverflow()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return ErrLoopClosed
		}
	}
}

// RunPending executes everything currently queued and returns how many
// functions ran. Hosts without a dedicated loop goroutine call it from their
// own event loop.
func (l *MainLoop) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-l.queue:
			l.dispatch(fn)
			n++
		default:
			n += l.drainOverflow()
			return n
		}
	}
}

// Quit stops Run. Safe to call more than once.
func (l *MainLoop) Quit() {
	l.once.Do(func() { close(l.quit) })
}

func (l *MainLoop) drainOverflow() int {
	l.mu.Lock()
	fns := l.overflow
	l.overflow = nil
	l.mu.Unlock()

	for _, fn := range fns {
		l.dispatch(fn)
	}
	return len(fns)
}

func (l *MainLoop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			applog.Errorf("MainLoop: Posted function panicked: %v", r)
		}
	}()
	fn()
}
