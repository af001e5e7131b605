package engine

import (
	"errors"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/domain/bomb"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/domain/bucket"
)

var (
	// ErrConfigurationRejected is returned by Configure for an unsolvable or out-of-range puzzle.
	ErrConfigurationRejected = errors.New("configuration rejected")
	// ErrSessionOver is returned for moves after the round is Solved or Failed.
	ErrSessionOver = errors.New("round is over, reconfigure to play again")
	// ErrSessionClosed is returned for any command on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrUnknownBucket is returned for a bucket id other than A or B.
	ErrUnknownBucket = errors.New("unknown bucket")
	// ErrSameBucket is returned for a transfer from a bucket into itself.
	ErrSameBucket = errors.New("transfer needs two different buckets")
	// ErrSessionNotFound is returned by the registry for an unknown id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the registry is full.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrUnknownCommand is returned by Execute for an unrecognized command type.
	ErrUnknownCommand = errors.New("unknown command")
)

// Kind is the error taxonomy name reported to clients.
type Kind string

const (
	KindNone                  Kind = ""
	KindNoOp                  Kind = "NO_OP"
	KindNegativeAmount        Kind = "NEGATIVE_AMOUNT"
	KindOverflow              Kind = "OVERFLOW"
	KindNoTime                Kind = "NO_TIME"
	KindNoDiffuser            Kind = "NO_DIFFUSER"
	KindWrongPressure         Kind = "WRONG_PRESSURE"
	KindInvalidState          Kind = "INVALID_STATE"
	KindConfigurationRejected Kind = "CONFIGURATION_REJECTED"
	KindInvalidCommand        Kind = "INVALID_COMMAND"
	KindNotFound              Kind = "NOT_FOUND"
	KindTooManySessions       Kind = "TOO_MANY_SESSIONS"
	KindInternal              Kind = "INTERNAL"
)

// ErrorKind classifies err. Wrapped errors are unwrapped with errors.Is.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, bucket.ErrNoOp):
		return KindNoOp
	case errors.Is(err, bucket.ErrNegativeAmount):
		return KindNegativeAmount
	case errors.Is(err, bucket.ErrOverflow):
		return KindOverflow
	case errors.Is(err, bomb.ErrNoTime):
		return KindNoTime
	case errors.Is(err, bomb.ErrNoDiffuser):
		return KindNoDiffuser
	case errors.Is(err, bomb.ErrWrongPressure):
		return KindWrongPressure
	case errors.Is(err, bomb.ErrInvalidState),
		errors.Is(err, ErrSessionOver),
		errors.Is(err, ErrSessionClosed):
		return KindInvalidState
	case errors.Is(err, ErrConfigurationRejected),
		errors.Is(err, bucket.ErrInvalidCapacity),
		errors.Is(err, bomb.ErrInvalidSetting):
		return KindConfigurationRejected
	case errors.Is(err, ErrUnknownBucket),
		errors.Is(err, ErrSameBucket),
		errors.Is(err, ErrUnknownCommand):
		return KindInvalidCommand
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrTooManySessions):
		return KindTooManySessions
	default:
		return KindInternal
	}
}
