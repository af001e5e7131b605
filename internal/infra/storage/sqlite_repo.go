package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteJournalRepository implements JournalRepository for SQLite.
type SQLiteJournalRepository struct {
	db *sql.DB
}

func NewSQLiteJournalRepository(db *sql.DB) *SQLiteJournalRepository {
	return &SQLiteJournalRepository{db: db}
}

func (r *SQLiteJournalRepository) Append(ctx context.Context, entry JournalEntry) error {
	query := `
		INSERT INTO journal (id, session_id, sequence, timestamp, event_type, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.SessionID, entry.Sequence, entry.Timestamp.UnixNano(),
		entry.EventType, string(entry.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

func (r *SQLiteJournalRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var nanos int64
		var payload string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Sequence, &nanos, &e.EventType, &payload); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, nanos)
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteJournalRepository) BySession(ctx context.Context, sessionID string) ([]JournalEntry, error) {
	query := `SELECT id, session_id, sequence, timestamp, event_type, payload FROM journal WHERE session_id = ? ORDER BY sequence ASC`
	return r.getMany(ctx, query, sessionID)
}

func (r *SQLiteJournalRepository) ByType(ctx context.Context, sessionID, eventType string) ([]JournalEntry, error) {
	query := `SELECT id, session_id, sequence, timestamp, event_type, payload FROM journal WHERE session_id = ? AND event_type = ? ORDER BY sequence ASC`
	return r.getMany(ctx, query, sessionID, eventType)
}

func (r *SQLiteJournalRepository) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM journal WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session journal: %w", err)
	}
	return res.RowsAffected()
}
