// Package engine - session.go
// GameSession owns two buckets and a bomb and decides the round outcome.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/domain/bomb"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/domain/bucket"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/domain/rules"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/logger"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/metrics"
)

// BucketID names one of the two buckets of a session.
type BucketID string

const (
	BucketA BucketID = "A"
	BucketB BucketID = "B"
)

// Other returns the opposite bucket.
func (id BucketID) Other() BucketID {
	if id == BucketA {
		return BucketB
	}
	return BucketA
}

// Status is the round outcome.
type Status string

const (
	StatusReady  Status = "READY"
	StatusSolved Status = "SOLVED"
	StatusFailed Status = "FAILED"
)

// IsTerminal reports whether the round is over.
func (s Status) IsTerminal() bool {
	return s == StatusSolved || s == StatusFailed
}

// Action names recorded in BUCKET_ACTION events.
const (
	ActionFill     = "FILL"
	ActionDump     = "DUMP"
	ActionLoad     = "LOAD"
	ActionTransfer = "TRANSFER"
)

// StatusObserver is notified of every status transition.
// It is called with the session lock held and must not call back into the session.
type StatusObserver interface {
	StatusChanged(status Status)
}

// Config is one puzzle: two capacities, the target volume and the bomb timer.
type Config struct {
	CapacityA         int  `json:"capacity_a"`
	CapacityB         int  `json:"capacity_b"`
	Target            int  `json:"target"`
	TimeLimit         int  `json:"time_limit"`
	StrictWin         bool `json:"strict_win"`
	StrictSolvability bool `json:"strict_solvability"`
}

// DefaultConfig is the classic 3/5/4 puzzle with thirty seconds on the clock.
func DefaultConfig() Config {
	return Config{
		CapacityA:         3,
		CapacityB:         5,
		Target:            4,
		TimeLimit:         30,
		StrictSolvability: true,
	}
}

// Validate rejects out-of-range values and unsolvable puzzles.
// The even/odd and equal-capacity checks always apply; the gcd test applies
// when StrictSolvability is set.
func (c Config) Validate() error {
	if c.CapacityA < 0 || c.CapacityB < 0 {
		return fmt.Errorf("%w: capacities %d and %d must be non-negative", ErrConfigurationRejected, c.CapacityA, c.CapacityB)
	}
	if c.Target <= 0 {
		return fmt.Errorf("%w: target %d must be positive", ErrConfigurationRejected, c.Target)
	}
	if c.TimeLimit < 0 {
		return fmt.Errorf("%w: time limit %d must be non-negative", ErrConfigurationRejected, c.TimeLimit)
	}
	if !rules.IsSolvable(c.CapacityA, c.CapacityB, c.Target) {
		return fmt.Errorf("%w: buckets of %d and %d cannot measure %d", ErrConfigurationRejected, c.CapacityA, c.CapacityB, c.Target)
	}
	if c.StrictSolvability && !rules.IsReachable(c.CapacityA, c.CapacityB, c.Target) {
		return fmt.Errorf("%w: %d is not a multiple of gcd(%d, %d) = %d within the larger bucket",
			ErrConfigurationRejected, c.Target, c.CapacityA, c.CapacityB, rules.GCD(c.CapacityA, c.CapacityB))
	}
	return nil
}

// SessionOptions carries the collaborators a session publishes to.
type SessionOptions struct {
	Events   *events.EventLog
	Logger   *logger.Logger
	Metrics  *metrics.Collector
	Clock    Clock
	Interval time.Duration
	// Manual disables the countdown goroutine; time only moves through Tick.
	Manual bool
	Now    func() time.Time
}

// GameSession is one player's puzzle. All state is guarded by mu, and every
// notification (bucket, bomb, status) is emitted while it is held.
type GameSession struct {
	mu     sync.Mutex
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	opts   SessionOptions
	log    *logger.Logger

	cfg       Config
	buckets   [2]*bucket.Bucket
	bomb      *bomb.Bomb
	status    Status
	reason    string
	moveCount int

	generation uint64
	countdown  *Countdown
	observers  []StatusObserver

	lastActivity time.Time
	closed       bool
}

// NewGameSession creates a session configured with cfg.
func NewGameSession(ctx context.Context, id string, cfg Config, opts SessionOptions) (*GameSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Events == nil {
		opts.Events = events.NewEventLog()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &GameSession{
		id:     id,
		ctx:    sctx,
		cancel: cancel,
		opts:   opts,
		log:    opts.Logger.With("session", id),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.resetLocked(cfg); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// ID returns the session identifier.
func (s *GameSession) ID() string { return s.id }

// AddObserver registers a status observer.
func (s *GameSession) AddObserver(o StatusObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Configure starts a new round. A rejected configuration leaves the current
// round untouched.
func (s *GameSession) Configure(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	if err := cfg.Validate(); err != nil {
		s.log.Warn("configuration rejected", "error", err)
		return err
	}
	return s.resetLocked(cfg)
}

// Fill tops a bucket up to its capacity.
func (s *GameSession) Fill(id BucketID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.playableBucketLocked(id)
	if err != nil {
		return err
	}
	amount := b.Room()
	if err := b.Fill(); err != nil {
		return fmt.Errorf("fill %s: %w", id, err)
	}
	s.recordActionLocked(ActionFill, id, "", amount)
	return nil
}

// Dump empties a bucket.
func (s *GameSession) Dump(id BucketID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.playableBucketLocked(id)
	if err != nil {
		return err
	}
	amount := -b.Content()
	if err := b.Dump(); err != nil {
		return fmt.Errorf("dump %s: %w", id, err)
	}
	s.recordActionLocked(ActionDump, id, "", amount)
	return nil
}

// Load adds a signed amount to a bucket.
func (s *GameSession) Load(id BucketID, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.playableBucketLocked(id)
	if err != nil {
		return err
	}
	if err := b.Load(amount); err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	s.recordActionLocked(ActionLoad, id, "", amount)
	return nil
}

// Transfer pours min(sender content, recipient room) from one bucket into
// the other. When overlapping is false the drop missed the recipient and
// nothing happens. The two loads apply together or not at all.
func (s *GameSession) Transfer(from, to BucketID, overlapping bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender, err := s.playableBucketLocked(from)
	if err != nil {
		return 0, err
	}
	recipient, err := s.bucketLocked(to)
	if err != nil {
		return 0, err
	}
	if from == to {
		return 0, fmt.Errorf("transfer %s->%s: %w", from, to, ErrSameBucket)
	}
	if !overlapping {
		return 0, nil
	}

	amount := min(sender.Content(), recipient.Room())
	if err := recipient.Check(amount); err != nil {
		return 0, fmt.Errorf("transfer %s->%s: %w", from, to, err)
	}
	if err := sender.Check(-amount); err != nil {
		return 0, fmt.Errorf("transfer %s->%s: %w", from, to, err)
	}

	if err := recipient.Load(amount); err != nil {
		return 0, fmt.Errorf("transfer %s->%s: %w", from, to, err)
	}
	if err := sender.Load(-amount); err != nil {
		if undoErr := recipient.Load(-amount); undoErr != nil {
			s.log.Error("transfer rollback failed", "from", from, "to", to, "amount", amount, "error", undoErr)
		}
		return 0, fmt.Errorf("transfer %s->%s: %w", from, to, err)
	}

	s.recordActionLocked(ActionTransfer, from, to, amount)
	return amount, nil
}

// ArmBomb starts the countdown.
func (s *GameSession) ArmBomb() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.playableLocked(); err != nil {
		return err
	}
	if err := s.bomb.Arm(); err != nil {
		return fmt.Errorf("arm: %w", err)
	}
	s.startCountdownLocked()
	return nil
}

// Disarm applies pressure to the bomb. A mismatch explodes it and fails the round.
func (s *GameSession) Disarm(pressure int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.playableLocked(); err != nil {
		return err
	}
	return s.disarmLocked(pressure)
}

// Deliver drops a bucket on the bomb: its content is the applied pressure.
func (s *GameSession) Deliver(id BucketID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.playableBucketLocked(id)
	if err != nil {
		return err
	}
	if b.IsEmpty() {
		return fmt.Errorf("deliver %s: empty bucket: %w", id, bucket.ErrNoOp)
	}
	if err := s.disarmLocked(b.Content()); err != nil {
		return fmt.Errorf("deliver %s: %w", id, err)
	}
	return nil
}

// Explode detonates the bomb and fails the round.
func (s *GameSession) Explode() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.playableLocked(); err != nil {
		return err
	}
	if err := s.bomb.Explode(); err != nil {
		return fmt.Errorf("explode: %w", err)
	}
	s.stopCountdownLocked()
	s.evaluateLocked()
	return nil
}

// Tick advances an armed bomb by one second. Only manual sessions accept it;
// a clocked session is driven by its countdown goroutine alone.
func (s *GameSession) Tick() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.playableLocked(); err != nil {
		return err
	}
	if !s.opts.Manual {
		return fmt.Errorf("tick: countdown is automatic: %w", bomb.ErrInvalidState)
	}
	return s.tickLocked()
}

// Close ends the session. Later commands fail with ErrSessionClosed.
func (s *GameSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopCountdownLocked()
	s.closed = true
	s.publishLocked(events.EventTypeSessionClosed, events.StatusPayload{
		Status:    string(s.status),
		MoveCount: s.moveCount,
		Reason:    "closed",
	})
	s.cancel()
}

// Status returns the round outcome so far.
func (s *GameSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// MoveCount returns the accepted bucket moves of this round.
func (s *GameSession) MoveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveCount
}

// Config returns the active configuration.
func (s *GameSession) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// LastActivity returns when the session last received a command.
func (s *GameSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Closed reports whether Close has run.
func (s *GameSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *GameSession) resetLocked(cfg Config) error {
	a, err := bucket.New(cfg.CapacityA)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigurationRejected, err)
	}
	b, err := bucket.New(cfg.CapacityB)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigurationRejected, err)
	}
	bm, err := bomb.New(cfg.Target, cfg.TimeLimit)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigurationRejected, err)
	}
	a.SetObserver(bucketObserver{s: s, id: BucketA, capacity: cfg.CapacityA})
	b.SetObserver(bucketObserver{s: s, id: BucketB, capacity: cfg.CapacityB})
	bm.SetObserver(bombObserver{s: s, bomb: bm})

	s.stopCountdownLocked()
	s.cfg = cfg
	s.buckets = [2]*bucket.Bucket{a, b}
	s.bomb = bm
	s.moveCount = 0
	s.touchLocked()

	s.publishLocked(events.EventTypeSessionConfigured, events.ConfiguredPayload{
		CapacityA: cfg.CapacityA,
		CapacityB: cfg.CapacityB,
		Target:    cfg.Target,
		TimeLimit: cfg.TimeLimit,
		StrictWin: cfg.StrictWin,
	})
	s.setStatusLocked(StatusReady, "configured")
	return nil
}

func (s *GameSession) touchLocked() {
	s.lastActivity = s.opts.Now()
}

// playableLocked gates every move: the session must be open and the round live.
func (s *GameSession) playableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	if s.status.IsTerminal() {
		return fmt.Errorf("%w (status %s)", ErrSessionOver, s.status)
	}
	return nil
}

func (s *GameSession) playableBucketLocked(id BucketID) (*bucket.Bucket, error) {
	if err := s.playableLocked(); err != nil {
		return nil, err
	}
	return s.bucketLocked(id)
}

func (s *GameSession) bucketLocked(id BucketID) (*bucket.Bucket, error) {
	switch id {
	case BucketA:
		return s.buckets[0], nil
	case BucketB:
		return s.buckets[1], nil
	default:
		return nil, fmt.Errorf("bucket %q: %w", id, ErrUnknownBucket)
	}
}

func (s *GameSession) disarmLocked(pressure int) error {
	err := s.bomb.Disarm(pressure)
	if s.bomb.State().IsTerminal() {
		s.stopCountdownLocked()
		s.evaluateLocked()
	}
	if err != nil {
		return fmt.Errorf("disarm: %w", err)
	}
	return nil
}

func (s *GameSession) tickLocked() error {
	if err := s.bomb.Tick(); err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	s.opts.Metrics.RecordTick()
	if s.bomb.State().IsTerminal() {
		s.stopCountdownLocked()
	}
	s.evaluateLocked()
	return nil
}

// recordActionLocked counts an accepted bucket move and re-evaluates the round.
func (s *GameSession) recordActionLocked(action string, from, to BucketID, amount int) {
	s.moveCount++
	s.publishLocked(events.EventTypeBucketAction, events.BucketActionPayload{
		Action:    action,
		Bucket:    string(from),
		To:        string(to),
		Amount:    amount,
		MoveCount: s.moveCount,
	})
	s.evaluateLocked()
}

func (s *GameSession) evaluateLocked() {
	if s.status.IsTerminal() {
		return
	}
	switch s.bomb.State() {
	case bomb.StateExploded:
		s.finishLocked(StatusFailed, "bomb exploded: "+strings.ToLower(string(s.bomb.Cause())))
		return
	case bomb.StateDefused:
		s.finishLocked(StatusSolved, "bomb defused")
		return
	}
	if s.targetReachedLocked() {
		s.finishLocked(StatusSolved, "target reached")
	}
}

func (s *GameSession) targetReachedLocked() bool {
	for i, b := range s.buckets {
		other := s.buckets[1-i]
		if b.Content() == s.cfg.Target && (!s.cfg.StrictWin || other.IsEmpty()) {
			return true
		}
	}
	return false
}

func (s *GameSession) finishLocked(status Status, reason string) {
	s.stopCountdownLocked()
	s.setStatusLocked(status, reason)
	s.opts.Metrics.RecordOutcome(string(status))
	s.log.Info("round finished", "status", status, "reason", reason, "moves", s.moveCount)
}

func (s *GameSession) setStatusLocked(status Status, reason string) {
	s.status = status
	s.reason = reason
	s.publishLocked(events.EventTypeStatusChanged, events.StatusPayload{
		Status:    string(status),
		MoveCount: s.moveCount,
		Reason:    reason,
	})
	for _, o := range s.observers {
		o.StatusChanged(status)
	}
}

func (s *GameSession) startCountdownLocked() {
	if s.opts.Manual {
		return
	}
	s.stopCountdownLocked()
	c := NewCountdown(s.generation, s.opts.Interval, s.opts.Clock, s.onCountdownTick)
	s.countdown = c
	c.Start(s.ctx)
}

// stopCountdownLocked retires the current generation so an in-flight tick
// is discarded even if it already left the ticker.
func (s *GameSession) stopCountdownLocked() {
	s.generation++
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
}

func (s *GameSession) onCountdownTick(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || generation != s.generation || s.status.IsTerminal() || !s.bomb.IsArmed() {
		return
	}
	if err := s.tickLocked(); err != nil {
		s.log.Warn("countdown tick rejected", "error", err)
	}
}

func (s *GameSession) publishLocked(eventType events.EventType, payload any) {
	e := s.opts.Events.Append(events.GameEvent{
		SessionID: s.id,
		Type:      eventType,
		Payload:   payload,
	})
	s.opts.Logger.Event(string(eventType), s.id, "sequence", e.Sequence)
}

type bucketObserver struct {
	s        *GameSession
	id       BucketID
	capacity int
}

func (o bucketObserver) ContentChanged(content int) {
	o.s.publishLocked(events.EventTypeBucketContentChange, events.BucketContentPayload{
		Bucket:   string(o.id),
		Content:  content,
		Capacity: o.capacity,
	})
}

type bombObserver struct {
	s    *GameSession
	bomb *bomb.Bomb
}

func (o bombObserver) Elapsed(remaining int) {
	o.s.publishLocked(events.EventTypeTimeElapsed, events.ElapsedPayload{Remaining: remaining})
}

func (o bombObserver) StateChanged(state bomb.State) {
	o.s.publishLocked(events.EventTypeBombStateChanged, events.BombStatePayload{
		State: string(state),
		Cause: string(o.bomb.Cause()),
	})
}
