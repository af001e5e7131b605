// Package bomb defines the timed device that must receive an exact pressure
// before its countdown runs out.
// This package is PURE and must NOT import any infrastructure packages.
// The countdown step is Tick; whoever owns the bomb drives it.
package bomb

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTime is returned when arming a bomb without a time limit.
	ErrNoTime = errors.New("bomb: no time limit")
	// ErrNoDiffuser is returned when arming a bomb without a diffuse trigger.
	ErrNoDiffuser = errors.New("bomb: no diffuse trigger")
	// ErrWrongPressure is returned when a disarm attempt misses the trigger. The bomb explodes.
	ErrWrongPressure = errors.New("bomb: wrong pressure")
	// ErrInvalidState is returned for an operation the current state does not allow.
	ErrInvalidState = errors.New("bomb: invalid state")
	// ErrInvalidSetting is returned by New for negative trigger or time values.
	ErrInvalidSetting = errors.New("bomb: trigger and time limit must be non-negative")
)

// State is the bomb lifecycle position.
type State string

const (
	StateIdle     State = "IDLE"
	StateArmed    State = "ARMED"
	StateDefused  State = "DEFUSED"
	StateExploded State = "EXPLODED"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDefused || s == StateExploded
}

// Cause records why a bomb left the armed state.
type Cause string

const (
	CauseNone          Cause = ""
	CauseDefused       Cause = "DEFUSED"
	CauseTimeout       Cause = "TIMEOUT"
	CauseWrongPressure Cause = "WRONG_PRESSURE"
	CauseManual        Cause = "MANUAL"
)

// Observer receives countdown and state notifications.
type Observer interface {
	Elapsed(remaining int)
	StateChanged(state State)
}

// Bomb is a timed arm/disarm state machine with an exact-match pressure trigger.
type Bomb struct {
	diffuseTrigger int
	timeLimit      int
	state          State
	cause          Cause
	observer       Observer
}

// New creates an idle bomb.
func New(trigger, timeLimit int) (*Bomb, error) {
	if trigger < 0 || timeLimit < 0 {
		return nil, fmt.Errorf("new bomb (trigger %d, time %d): %w", trigger, timeLimit, ErrInvalidSetting)
	}
	return &Bomb{
		diffuseTrigger: trigger,
		timeLimit:      timeLimit,
		state:          StateIdle,
	}, nil
}

// SetObserver replaces the registered observer. Nil disables notifications.
func (b *Bomb) SetObserver(o Observer) {
	b.observer = o
}

// DiffuseTrigger returns the exact pressure needed to disarm.
func (b *Bomb) DiffuseTrigger() int { return b.diffuseTrigger }

// TimeLimit returns the seconds remaining.
func (b *Bomb) TimeLimit() int { return b.timeLimit }

// State returns the current lifecycle state.
func (b *Bomb) State() State { return b.state }

// IsArmed reports whether the countdown is running.
func (b *Bomb) IsArmed() bool { return b.state == StateArmed }

// Cause returns why the bomb left the armed state, if it has.
func (b *Bomb) Cause() Cause { return b.cause }

// Arm starts the countdown. Both a time limit and a trigger are required.
func (b *Bomb) Arm() error {
	if b.state != StateIdle {
		return fmt.Errorf("arm bomb in state %s: %w", b.state, ErrInvalidState)
	}
	if b.timeLimit <= 0 {
		return ErrNoTime
	}
	if b.diffuseTrigger <= 0 {
		return ErrNoDiffuser
	}
	b.transition(StateArmed, CauseNone)
	return nil
}

// Tick consumes one second of the countdown. Reaching zero explodes the bomb.
func (b *Bomb) Tick() error {
	if b.state != StateArmed {
		return fmt.Errorf("tick bomb in state %s: %w", b.state, ErrInvalidState)
	}
	b.timeLimit--
	if b.observer != nil {
		b.observer.Elapsed(b.timeLimit)
	}
	if b.timeLimit == 0 {
		b.transition(StateExploded, CauseTimeout)
	}
	return nil
}

// Disarm applies pressure. Only the exact trigger value defuses the bomb;
// anything else detonates it and returns ErrWrongPressure.
func (b *Bomb) Disarm(pressure int) error {
	if b.state != StateArmed {
		return fmt.Errorf("disarm bomb in state %s: %w", b.state, ErrInvalidState)
	}
	if pressure != b.diffuseTrigger {
		b.transition(StateExploded, CauseWrongPressure)
		return fmt.Errorf("pressure %d, trigger %d: %w", pressure, b.diffuseTrigger, ErrWrongPressure)
	}
	b.transition(StateDefused, CauseDefused)
	return nil
}

// Explode detonates a bomb that has not already reached a terminal state.
func (b *Bomb) Explode() error {
	if b.state.IsTerminal() {
		return fmt.Errorf("explode bomb in state %s: %w", b.state, ErrInvalidState)
	}
	b.transition(StateExploded, CauseManual)
	return nil
}

func (b *Bomb) transition(to State, cause Cause) {
	b.state = to
	b.cause = cause
	if b.observer != nil {
		b.observer.StateChanged(to)
	}
}
