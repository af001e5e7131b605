// Package storage - journal.go
// Journal is the event log sink that writes session events to the repository.
package storage

import (
	"context"
	"sync"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/logger"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/metrics"
)

// Journal copies events into a JournalRepository. A SESSION_CLOSED event
// deletes the session's rows instead of being stored.
//
// Events reach the journal through Enqueue, which never blocks and never
// drops; Run writes them in order.
type Journal struct {
	repo    JournalRepository
	logger  *logger.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	pending []events.GameEvent
	wake    chan struct{}
}

// NewJournal creates a journal writer.
func NewJournal(repo JournalRepository, log *logger.Logger, m *metrics.Collector) *Journal {
	if log == nil {
		log = logger.NewNop()
	}
	return &Journal{
		repo:    repo,
		logger:  log,
		metrics: m,
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue queues an event for Run. It is safe to call from an EventLog sink.
func (j *Journal) Enqueue(e events.GameEvent) {
	j.mu.Lock()
	j.pending = append(j.pending, e)
	j.mu.Unlock()

	select {
	case j.wake <- struct{}{}:
	default:
	}
}

// Run writes queued events until ctx is done, then flushes whatever is
// still queued before returning.
func (j *Journal) Run(ctx context.Context) error {
	// Writes outlive ctx so the final flush can still reach the database.
	writeCtx := context.WithoutCancel(ctx)
	for {
		j.flush(writeCtx)
		select {
		case <-ctx.Done():
			j.flush(writeCtx)
			return nil
		case <-j.wake:
		}
	}
}

func (j *Journal) flush(ctx context.Context) {
	for {
		j.mu.Lock()
		batch := j.pending
		j.pending = nil
		j.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			j.Record(ctx, e)
		}
	}
}

// Record writes one event. Failures are logged and counted, never returned:
// the journal must not stall the game.
func (j *Journal) Record(ctx context.Context, e events.GameEvent) {
	if e.Type == events.EventTypeSessionClosed {
		n, err := j.repo.DeleteSession(ctx, e.SessionID)
		if err != nil {
			j.logger.Error("journal purge failed", "session", e.SessionID, "error", err)
			return
		}
		j.logger.Debug("journal purged", "session", e.SessionID, "rows", n)
		return
	}

	entry, err := EntryFromEvent(e)
	if err == nil {
		err = j.repo.Append(ctx, entry)
	}
	j.metrics.RecordJournalWrite(err)
	if err != nil {
		j.logger.Error("journal write failed", "session", e.SessionID, "event", e.Type, "error", err)
	}
}
