package playback

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is the tick period used when none is configured.
const DefaultTickInterval = 500 * time.Millisecond

// Scheduler drives the controller's tick callback.
// Stop must not wait for an in-flight tick: it is called with the controller lock held.
type Scheduler interface {
	Start()
	Stop()
	Running() bool
}

// Ticker is a Scheduler backed by time.Ticker.
type Ticker struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewTicker creates a stopped ticker that calls fn every interval.
func NewTicker(interval time.Duration, fn func()) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		interval: interval,
		fn:       fn,
	}
}

// Start begins ticking. Starting a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go t.run(ctx)
}

// Stop halts ticking without waiting for the goroutine to exit.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Running reports whether the ticker is started.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Wait blocks until every goroutine started by Start has exited.
func (t *Ticker) Wait() {
	t.wg.Wait()
}

// Interval returns the tick period.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

func (t *Ticker) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A stop may race with the tick; prefer the stop.
			if ctx.Err() != nil {
				return
			}
			t.fn()
		}
	}
}
