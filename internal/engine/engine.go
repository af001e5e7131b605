package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/config"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/logger"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/metrics"
)

// Settings are the registry-wide knobs. They can be replaced at runtime.
type Settings struct {
	Defaults     Config
	Interval     time.Duration
	Manual       bool
	Clock        Clock
	MaxSessions  int
	IdleTTL      time.Duration
	ReapInterval time.Duration
}

// SettingsFromConfig maps the YAML configuration onto engine settings.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		Defaults: Config{
			CapacityA:         cfg.Game.CapacityA,
			CapacityB:         cfg.Game.CapacityB,
			Target:            cfg.Game.Target,
			TimeLimit:         cfg.Game.TimeLimit,
			StrictWin:         cfg.Game.StrictWin,
			StrictSolvability: cfg.Game.StrictSolvability,
		},
		Interval:     cfg.Countdown.Interval,
		Manual:       cfg.Countdown.Manual,
		MaxSessions:  cfg.Tuning.MaxSessions,
		IdleTTL:      cfg.Tuning.IdleSessionTTL,
		ReapInterval: cfg.Tuning.ReapInterval,
	}
}

// Engine is the session registry. It wires every session to the shared
// event log, logger and metrics.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession
	settings Settings

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	// reapReset wakes Run when ReapInterval changes.
	reapReset chan struct{}
}

// NewEngine creates an empty registry.
func NewEngine(eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector, settings Settings) *Engine {
	if eventLog == nil {
		eventLog = events.NewEventLog()
	}
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		sessions: make(map[string]*GameSession),
		settings: settings,
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,

		reapReset: make(chan struct{}, 1),
	}
}

// Create opens a session. A nil cfg uses the current defaults.
func (e *Engine) Create(cfg *Config) (*GameSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settings.MaxSessions > 0 && len(e.sessions) >= e.settings.MaxSessions {
		return nil, fmt.Errorf("%d open: %w", len(e.sessions), ErrTooManySessions)
	}

	c := e.settings.Defaults
	if cfg != nil {
		c = *cfg
	}
	id := uuid.NewString()
	s, err := NewGameSession(e.ctx, id, c, SessionOptions{
		Events:   e.eventLog,
		Logger:   e.logger,
		Metrics:  e.metrics,
		Clock:    e.settings.Clock,
		Interval: e.settings.Interval,
		Manual:   e.settings.Manual,
		Now:      e.now,
	})
	if err != nil {
		return nil, err
	}

	e.sessions[id] = s
	e.metrics.RecordSessions(len(e.sessions))
	e.logger.Info("session created", "session", id, "capacity_a", c.CapacityA, "capacity_b", c.CapacityB, "target", c.Target)
	return s, nil
}

// Get looks up an open session.
func (e *Engine) Get(id string) (*GameSession, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// Close ends a session and drops it from the registry.
func (e *Engine) Close(id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	n := len(e.sessions)
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	s.Close()
	e.eventLog.Forget(id)
	e.metrics.RecordSessions(n)
	e.logger.Info("session closed", "session", id)
	return nil
}

// List returns a snapshot of every open session, ordered by id.
func (e *Engine) List() []Snapshot {
	e.mu.RLock()
	sessions := make([]*GameSession, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of open sessions.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Reap closes sessions idle since before now minus the idle TTL.
func (e *Engine) Reap(now time.Time) int {
	e.mu.RLock()
	ttl := e.settings.IdleTTL
	var idle []string
	if ttl > 0 {
		for id, s := range e.sessions {
			if now.Sub(s.LastActivity()) > ttl {
				idle = append(idle, id)
			}
		}
	}
	e.mu.RUnlock()

	reaped := 0
	for _, id := range idle {
		if err := e.Close(id); err == nil {
			reaped++
		}
	}
	if reaped > 0 {
		e.logger.Info("reaped idle sessions", "count", reaped)
	}
	return reaped
}

// Run reaps idle sessions until ctx is done, then closes every session.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting session engine...")

	reaper := time.NewTicker(e.reapInterval())
	defer reaper.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Shutdown()
			e.logger.Info("Session engine stopped.")
			return nil
		case <-reaper.C:
			e.mu.RLock()
			now := e.now
			e.mu.RUnlock()
			e.Reap(now())
		case <-e.reapReset:
			reaper.Reset(e.reapInterval())
		}
	}
}

func (e *Engine) reapInterval() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.settings.ReapInterval <= 0 {
		return time.Minute
	}
	return e.settings.ReapInterval
}

// Shutdown closes every session.
func (e *Engine) Shutdown() {
	e.mu.RLock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, id := range ids {
		_ = e.Close(id)
	}
	e.cancel()
}

// Defaults returns the configuration new sessions start with.
func (e *Engine) Defaults() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.Defaults
}

// ApplySettings swaps the registry settings. Open sessions keep their
// countdown mode and puzzle; the new values apply to sessions created later.
// A changed ReapInterval restarts the reaper. Invalid default puzzles are
// rejected.
func (e *Engine) ApplySettings(settings Settings) error {
	if err := settings.Defaults.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if settings.Clock == nil {
		settings.Clock = e.settings.Clock
	}
	if settings.ReapInterval != e.settings.ReapInterval {
		select {
		case e.reapReset <- struct{}{}:
		default:
		}
	}
	e.settings = settings
	e.logger.Info("engine settings applied", "max_sessions", settings.MaxSessions, "idle_ttl", settings.IdleTTL)
	return nil
}

// EventLog exposes the shared event log for subscribers.
func (e *Engine) EventLog() *events.EventLog {
	return e.eventLog
}

// SetNow replaces the clock used for idle tracking.
func (e *Engine) SetNow(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}
