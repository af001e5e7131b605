package events

// ConfiguredPayload describes the puzzle a session was reset to.
type ConfiguredPayload struct {
	CapacityA int  `json:"capacity_a"`
	CapacityB int  `json:"capacity_b"`
	Target    int  `json:"target"`
	TimeLimit int  `json:"time_limit"`
	StrictWin bool `json:"strict_win"`
}

// BucketContentPayload is the contentChanged notification of one bucket.
type BucketContentPayload struct {
	Bucket   string `json:"bucket"`
	Content  int    `json:"content"`
	Capacity int    `json:"capacity"`
}

// BucketActionPayload records an accepted player move.
type BucketActionPayload struct {
	Action    string `json:"action"` // "FILL", "DUMP", "LOAD", "TRANSFER"
	Bucket    string `json:"bucket"`
	To        string `json:"to,omitempty"`
	Amount    int    `json:"amount"`
	MoveCount int    `json:"move_count"`
}

// ElapsedPayload is one countdown step.
type ElapsedPayload struct {
	Remaining int `json:"remaining"`
}

// BombStatePayload is a bomb lifecycle transition.
type BombStatePayload struct {
	State string `json:"state"`
	Cause string `json:"cause,omitempty"`
}

// StatusPayload is a session status transition.
type StatusPayload struct {
	Status    string `json:"status"`
	MoveCount int    `json:"move_count"`
	Reason    string `json:"reason,omitempty"`
}
