package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownDeliversGeneration(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	got := make(chan uint64, 4)
	c := NewCountdown(7, time.Second, clock, func(gen uint64) { got <- gen })
	c.Start(context.Background())

	require.Equal(t, 1, clock.Advance(time.Second))
	assert.Equal(t, uint64(7), <-got)
	assert.Equal(t, time.Unix(1, 0), clock.Now())

	c.Stop()
	c.Stop()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown did not exit after Stop")
	}
	assert.Equal(t, 0, clock.Advance(time.Second))
	assert.Empty(t, got)
}

func TestCountdownStopsWithContext(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCountdown(1, 0, clock, func(uint64) {})
	c.Start(ctx)

	cancel()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown did not exit on cancel")
	}
	assert.Equal(t, 0, clock.Live())
}
