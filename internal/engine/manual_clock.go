package engine

import (
	"sync"
	"time"
)

// ManualClock hands out tickers that only fire when Advance is called.
// Scenario runs and tests use it to drive countdowns deterministically.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManualClock starts the clock at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

type manualTicker struct {
	ch       chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

func (t *manualTicker) live() bool {
	select {
	case <-t.stopped:
		return false
	default:
		return true
	}
}

// NewTicker registers a ticker. The interval is ignored.
func (m *ManualClock) NewTicker(time.Duration) TickSource {
	t := &manualTicker{
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
	}
	m.mu.Lock()
	m.tickers = append(m.tickers, t)
	m.mu.Unlock()
	return t
}

// Advance moves the clock by d and delivers one tick to every live ticker.
// It blocks until each receiver has taken its tick or stopped, and returns
// how many ticks were delivered.
func (m *ManualClock) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	live := m.tickers[:0]
	for _, t := range m.tickers {
		if t.live() {
			live = append(live, t)
		}
	}
	m.tickers = live
	targets := append([]*manualTicker(nil), live...)
	m.mu.Unlock()

	delivered := 0
	for _, t := range targets {
		select {
		case t.ch <- now:
			delivered++
		case <-t.stopped:
		}
	}
	return delivered
}

// Now returns the clock's current time.
func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Live returns the number of tickers that have not been stopped.
func (m *ManualClock) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if t.live() {
			n++
		}
	}
	return n
}
