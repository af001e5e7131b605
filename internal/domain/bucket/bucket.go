// Package bucket defines the capacity-bounded water container.
// This package is PURE and must NOT import any infrastructure packages.
package bucket

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOp is returned for a zero amount or a redundant fill/dump.
	ErrNoOp = errors.New("bucket: no-op")
	// ErrNegativeAmount is returned when a load would leave the bucket below empty.
	ErrNegativeAmount = errors.New("bucket: content would drop below zero")
	// ErrOverflow is returned when a load would exceed the capacity.
	ErrOverflow = errors.New("bucket: capacity exceeded")
	// ErrInvalidCapacity is returned by New for a negative capacity.
	ErrInvalidCapacity = errors.New("bucket: capacity must be non-negative")
)

// LoadError carries the bucket state that caused a rejected load.
type LoadError struct {
	Amount   int
	Content  int
	Capacity int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %+d into %d/%d: %v", e.Amount, e.Content, e.Capacity, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Observer receives content updates after every successful mutation.
type Observer interface {
	ContentChanged(content int)
}

// Bucket holds an integer volume in [0, capacity].
type Bucket struct {
	capacity int
	content  int
	observer Observer
}

// New creates an empty bucket. Zero capacity is allowed.
func New(capacity int) (*Bucket, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("new bucket with capacity %d: %w", capacity, ErrInvalidCapacity)
	}
	return &Bucket{capacity: capacity}, nil
}

// SetObserver replaces the registered observer. Nil disables notifications.
func (b *Bucket) SetObserver(o Observer) {
	b.observer = o
}

// Capacity returns the fixed maximum volume.
func (b *Bucket) Capacity() int { return b.capacity }

// Content returns the current volume.
func (b *Bucket) Content() int { return b.content }

// Room returns how much more water fits.
func (b *Bucket) Room() int { return b.capacity - b.content }

// IsEmpty reports whether the bucket holds nothing.
func (b *Bucket) IsEmpty() bool { return b.content == 0 }

// IsFull reports whether the bucket is at capacity.
func (b *Bucket) IsFull() bool { return b.content == b.capacity }

// Check validates a load without applying it.
func (b *Bucket) Check(amount int) error {
	var cause error
	// Compared against bounds rather than content+amount so extreme amounts cannot wrap.
	switch {
	case amount == 0:
		cause = ErrNoOp
	case amount < -b.content:
		cause = ErrNegativeAmount
	case amount > b.Room():
		cause = ErrOverflow
	default:
		return nil
	}
	return &LoadError{Amount: amount, Content: b.content, Capacity: b.capacity, Err: cause}
}

// Load adds amount (positive or negative) to the content.
// The value is never clamped: any boundary violation is returned as an error
// and the bucket is left untouched.
func (b *Bucket) Load(amount int) error {
	if err := b.Check(amount); err != nil {
		return err
	}
	b.content += amount
	if b.observer != nil {
		b.observer.ContentChanged(b.content)
	}
	return nil
}

// Fill tops the bucket up to capacity. A full bucket yields ErrNoOp.
func (b *Bucket) Fill() error {
	return b.Load(b.Room())
}

// Dump empties the bucket. An empty bucket yields ErrNoOp.
func (b *Bucket) Dump() error {
	return b.Load(-b.content)
}
