// Package storage provides the session journal: a SQL copy of every event a
// session emits, kept only for the session's lifetime.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
)

// JournalEntry mirrors events.GameEvent for persistence. Payload is kept as
// raw JSON and decoded into the typed payload by readers.
type JournalEntry struct {
	ID        string          `json:"id" db:"id"`
	SessionID string          `json:"session_id" db:"session_id"`
	Sequence  int64           `json:"sequence" db:"sequence"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	EventType string          `json:"event_type" db:"event_type"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
}

// EntryFromEvent encodes a game event for the journal.
func EntryFromEvent(e events.GameEvent) (JournalEntry, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return JournalEntry{
		ID:        e.ID,
		SessionID: e.SessionID,
		Sequence:  e.Sequence,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		Payload:   payload,
	}, nil
}

// Decode unmarshals the payload into v.
func (e JournalEntry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// JournalRepository defines the interface for journal persistence.
type JournalRepository interface {
	// Append adds one entry.
	Append(ctx context.Context, entry JournalEntry) error

	// BySession retrieves a session's entries in emission order.
	BySession(ctx context.Context, sessionID string) ([]JournalEntry, error)

	// ByType retrieves a session's entries of one event type.
	ByType(ctx context.Context, sessionID, eventType string) ([]JournalEntry, error)

	// DeleteSession removes every entry of a session and reports how many went.
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}
