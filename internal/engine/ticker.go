// Package engine - ticker.go
// Countdown is the per-bomb clock. It only measures time; the session applies ticks.
package engine

import (
	"context"
	"sync"
	"time"
)

// TickInterval is the default countdown cadence: one bomb second per real second.
const TickInterval = 1 * time.Second

// TickSource delivers ticks until stopped.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tick sources. Tests swap in a ManualClock.
type Clock interface {
	NewTicker(d time.Duration) TickSource
}

// SystemClock ticks on wall time.
type SystemClock struct{}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func (SystemClock) NewTicker(d time.Duration) TickSource {
	return systemTicker{t: time.NewTicker(d)}
}

// Countdown drives one armed bomb. Each tick is handed to onTick together
// with the generation the countdown was started for, so the receiver can
// discard ticks that raced with a stop.
// It does NOT touch the bomb itself - only time progression.
type Countdown struct {
	generation uint64
	interval   time.Duration
	clock      Clock
	onTick     func(generation uint64)

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewCountdown creates a countdown for one generation.
func NewCountdown(generation uint64, interval time.Duration, clock Clock, onTick func(uint64)) *Countdown {
	if interval <= 0 {
		interval = TickInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Countdown{
		generation: generation,
		interval:   interval,
		clock:      clock,
		onTick:     onTick,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the ticking loop.
func (c *Countdown) Start(ctx context.Context) {
	ticker := c.clock.NewTicker(c.interval)
	go c.run(ctx, ticker)
}

func (c *Countdown) run(ctx context.Context, ticker TickSource) {
	defer close(c.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C():
			// A stop that lands while the tick is pending wins.
			select {
			case <-c.stopChan:
				return
			default:
			}
			c.onTick(c.generation)
		}
	}
}

// Stop signals the loop to exit. It never blocks, so it is safe to call
// while holding the lock the tick callback needs.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// Done is closed once the loop has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

// Generation returns the generation this countdown serves.
func (c *Countdown) Generation() uint64 {
	return c.generation
}
