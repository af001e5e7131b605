// Package storage - reconstructor.go
// Recap rebuilds a session's state from its journal: state = f(events).
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
)

// Reconstructor rebuilds session state from the journal.
// This is used for:
// 1. The recap screen after a round ends
// 2. Checking that the journal agrees with the live session
type Reconstructor struct {
	repo JournalRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(repo JournalRepository) *Reconstructor {
	return &Reconstructor{repo: repo}
}

// RecapEvent is a simplified event for the recap timeline.
type RecapEvent struct {
	Sequence  int64  `json:"sequence"`
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"` // Human-readable description
	Impact    string `json:"impact"`  // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// Recap is the state of the latest round as the journal tells it.
type Recap struct {
	SessionID string                   `json:"session_id"`
	Config    events.ConfiguredPayload `json:"config"`
	Contents  map[string]int           `json:"contents"`
	MoveCount int                      `json:"move_count"`
	Remaining int                      `json:"remaining"`
	BombState string                   `json:"bomb_state"`
	Status    string                   `json:"status"`
	Reason    string                   `json:"reason,omitempty"`
	Rounds    int                      `json:"rounds"`
	Timeline  []RecapEvent             `json:"timeline"`
}

// Rebuild replays a session's journal into a Recap. The timeline covers
// every round; the state fields describe the latest one.
func (r *Reconstructor) Rebuild(ctx context.Context, sessionID string) (*Recap, error) {
	entries, err := r.repo.BySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session journal: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	recap := &Recap{SessionID: sessionID, Contents: map[string]int{}}
	for _, e := range entries {
		summary, err := r.apply(recap, e)
		if err != nil {
			return nil, err
		}
		if summary == "" {
			continue
		}
		recap.Timeline = append(recap.Timeline, RecapEvent{
			Sequence:  e.Sequence,
			Timestamp: e.Timestamp.Format("15:04:05.000"),
			EventType: e.EventType,
			Summary:   summary,
			Impact:    r.determineImpact(e, recap),
		})
	}
	return recap, nil
}

// apply folds one entry into the recap and returns its timeline summary,
// or "" for entries that only update state.
func (r *Reconstructor) apply(recap *Recap, e JournalEntry) (string, error) {
	switch events.EventType(e.EventType) {
	case events.EventTypeSessionConfigured:
		var p events.ConfiguredPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		recap.Config = p
		recap.Contents = map[string]int{"A": 0, "B": 0}
		recap.MoveCount = 0
		recap.Remaining = p.TimeLimit
		recap.BombState = "IDLE"
		recap.Reason = ""
		recap.Rounds++
		return fmt.Sprintf("Round %d: buckets of %d and %d, measure %d in %ds",
			recap.Rounds, p.CapacityA, p.CapacityB, p.Target, p.TimeLimit), nil

	case events.EventTypeBucketContentChange:
		var p events.BucketContentPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		recap.Contents[p.Bucket] = p.Content
		return "", nil

	case events.EventTypeBucketAction:
		var p events.BucketActionPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		recap.MoveCount = p.MoveCount
		return r.summarizeAction(p), nil

	case events.EventTypeTimeElapsed:
		var p events.ElapsedPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		recap.Remaining = p.Remaining
		return "", nil

	case events.EventTypeBombStateChanged:
		var p events.BombStatePayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		recap.BombState = p.State
		if p.Cause != "" {
			return fmt.Sprintf("Bomb %s (%s)", strings.ToLower(p.State), strings.ToLower(p.Cause)), nil
		}
		return "Bomb " + strings.ToLower(p.State), nil

	case events.EventTypeStatusChanged:
		var p events.StatusPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		recap.Status = p.Status
		recap.Reason = p.Reason
		if p.Status == "READY" {
			return "", nil
		}
		return fmt.Sprintf("Round %s after %d moves: %s", strings.ToLower(p.Status), p.MoveCount, p.Reason), nil
	}
	return "", nil
}

// summarizeAction creates a human-readable summary.
func (r *Reconstructor) summarizeAction(p events.BucketActionPayload) string {
	switch p.Action {
	case "FILL":
		return fmt.Sprintf("Filled %s (+%d)", p.Bucket, p.Amount)
	case "DUMP":
		return fmt.Sprintf("Dumped %s (%d)", p.Bucket, p.Amount)
	case "TRANSFER":
		return fmt.Sprintf("Poured %d from %s into %s", p.Amount, p.Bucket, p.To)
	default:
		return fmt.Sprintf("Loaded %+d into %s", p.Amount, p.Bucket)
	}
}

// determineImpact classifies the event impact.
func (r *Reconstructor) determineImpact(e JournalEntry, recap *Recap) string {
	switch events.EventType(e.EventType) {
	case events.EventTypeStatusChanged:
		if recap.Status == "SOLVED" {
			return "POSITIVE"
		}
		return "NEGATIVE"
	case events.EventTypeBombStateChanged:
		switch recap.BombState {
		case "EXPLODED":
			return "NEGATIVE"
		case "DEFUSED":
			return "POSITIVE"
		}
	}
	return "NEUTRAL"
}
