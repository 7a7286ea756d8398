// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	applog "fadeout/internal/log"
)

// DefaultInterval is used when a non-positive interval is configured.
const DefaultInterval = 33 * time.Millisecond

// Publisher periodically snapshots a StatusProvider and sends the result to
// every transport. It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	provider   StatusProvider
	transports []Transport
	interval   time.Duration
	now        func() time.Time

	ticker   *time.Ticker   // Ticker that triggers publishing.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32 // Monotonically increasing sequence number.
}

// NewPublisher creates a publisher. If the interval is invalid (<= 0), it
// defaults to DefaultInterval.
func NewPublisher(interval time.Duration, provider StatusProvider, transports ...Transport) (*Publisher, error) {
	if provider == nil {
		return nil, fmt.Errorf("Publisher: status provider cannot be nil")
	}
	if len(transports) == 0 {
		return nil, fmt.Errorf("Publisher: at least one transport is required")
	}

	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("Publisher: Initializing (Interval: %s, Transports: %d)", interval, len(transports))

	return &Publisher{
		provider:   provider,
		transports: transports,
		interval:   interval,
		now:        time.Now,
	}, nil
}

// Start begins the periodic publishing process. Subsequent calls are no-ops
// while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("Publisher: goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				applog.Debugf("Publisher: goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. It is safe to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// publish sends one snapshot. Transport errors are logged and do not stop
// the publisher.
func (p *Publisher) publish() {
	st := p.provider.Status()
	p.sequenceNum++
	st.Sequence = p.sequenceNum
	st.Timestamp = p.now().UnixNano()

	for _, t := range p.transports {
		if err := t.Send(st); err != nil {
			applog.Debugf("Publisher: Error sending status %d: %v", st.Sequence, err)
		}
	}
}

// Close stops the publisher and closes every transport.
func (p *Publisher) Close() error {
	errs := []error{p.Stop()}
	for _, t := range p.transports {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

var _ interface{ Close() error } = (*Publisher)(nil)
