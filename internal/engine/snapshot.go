package engine

import (
	"fmt"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/domain/bomb"
)

// BucketView is a read-only copy of one bucket.
type BucketView struct {
	ID       BucketID `json:"id"`
	Capacity int      `json:"capacity"`
	Content  int      `json:"content"`
	Room     int      `json:"room"`
	Empty    bool     `json:"empty"`
	Full     bool     `json:"full"`
}

// BombView is a read-only copy of the bomb.
type BombView struct {
	State     bomb.State `json:"state"`
	Cause     bomb.Cause `json:"cause,omitempty"`
	Trigger   int        `json:"trigger"`
	Remaining int        `json:"remaining"`
}

// Snapshot is everything a front end needs to draw a session.
type Snapshot struct {
	ID        string       `json:"id"`
	Status    Status       `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	MoveCount int          `json:"move_count"`
	MoveLabel string       `json:"move_label"`
	Config    Config       `json:"config"`
	Buckets   []BucketView `json:"buckets"`
	Bomb      BombView     `json:"bomb"`
	Closed    bool         `json:"closed,omitempty"`
}

// MoveLabel renders the move counter caption: "Begin" before the first move.
func MoveLabel(moves int) string {
	if moves == 0 {
		return "Begin"
	}
	return fmt.Sprintf("%d Moves", moves)
}

// Snapshot copies the session state.
func (s *GameSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *GameSession) snapshotLocked() Snapshot {
	ids := [2]BucketID{BucketA, BucketB}
	views := make([]BucketView, 0, len(s.buckets))
	for i, b := range s.buckets {
		views = append(views, BucketView{
			ID:       ids[i],
			Capacity: b.Capacity(),
			Content:  b.Content(),
			Room:     b.Room(),
			Empty:    b.IsEmpty(),
			Full:     b.IsFull(),
		})
	}
	return Snapshot{
		ID:        s.id,
		Status:    s.status,
		Reason:    s.reason,
		MoveCount: s.moveCount,
		MoveLabel: MoveLabel(s.moveCount),
		Config:    s.cfg,
		Buckets:   views,
		Bomb: BombView{
			State:     s.bomb.State(),
			Cause:     s.bomb.Cause(),
			Trigger:   s.bomb.DiffuseTrigger(),
			Remaining: s.bomb.TimeLimit(),
		},
		Closed: s.closed,
	}
}

// Bucket returns the view of one bucket.
func (sn Snapshot) Bucket(id BucketID) (BucketView, bool) {
	for _, b := range sn.Buckets {
		if b.ID == id {
			return b, true
		}
	}
	return BucketView{}, false
}
