// Package events provides the notification log for game sessions.
// Every state change a session makes is appended here and fanned out to
// subscribers (websocket clients, the journal) as typed GameEvents.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeSessionConfigured   EventType = "SESSION_CONFIGURED"
	EventTypeBucketContentChange EventType = "BUCKET_CONTENT_CHANGED"
	EventTypeBucketAction        EventType = "BUCKET_ACTION"
	EventTypeTimeElapsed         EventType = "TIME_ELAPSED"
	EventTypeBombStateChanged    EventType = "BOMB_STATE_CHANGED"
	EventTypeStatusChanged       EventType = "STATUS_CHANGED"
	EventTypeSessionClosed       EventType = "SESSION_CLOSED"
)

// GameEvent represents an immutable record of a session notification.
type GameEvent struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Sequence  int64       `json:"sequence"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
}

type subscriber struct {
	ch        chan GameEvent
	sessionID string
}

// EventLog is the in-memory append-only log of game events.
type EventLog struct {
	mu          sync.RWMutex
	events      []GameEvent
	sequence    int64
	subscribers map[int]subscriber
	nextSubID   int
	onDrop      func(GameEvent)
	sinks       []func(GameEvent)
	closed      bool
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{
		events:      make([]GameEvent, 0),
		subscribers: make(map[int]subscriber),
	}
}

// OnDrop registers a hook invoked when a subscriber's buffer is full.
func (el *EventLog) OnDrop(fn func(GameEvent)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onDrop = fn
}

// AddSink registers fn to receive every appended event, in sequence order.
// Unlike subscribers, sinks never miss an event. fn runs under the log's lock
// and must not block or call back into the log.
func (el *EventLog) AddSink(fn func(GameEvent)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.sinks = append(el.sinks, fn)
}

// Append adds a new event to the log and returns it with ID, sequence and
// timestamp filled in. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) GameEvent {
	el.mu.Lock()
	defer el.mu.Unlock()

	el.sequence++
	event.Sequence = el.sequence
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	el.events = append(el.events, event)

	for _, sink := range el.sinks {
		sink(event)
	}
	for _, sub := range el.subscribers {
		if sub.sessionID != "" && sub.sessionID != event.SessionID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			if el.onDrop != nil {
				el.onDrop(event)
			}
		}
	}
	return event
}

// Subscribe registers an observer channel. An empty sessionID receives every
// session's events. The returned function unsubscribes and closes the channel.
func (el *EventLog) Subscribe(buffer int, sessionID string) (<-chan GameEvent, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan GameEvent, buffer)

	el.mu.Lock()
	if el.closed {
		el.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := el.nextSubID
	el.nextSubID++
	el.subscribers[id] = subscriber{ch: ch, sessionID: sessionID}
	el.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			el.mu.Lock()
			defer el.mu.Unlock()
			if sub, ok := el.subscribers[id]; ok {
				delete(el.subscribers, id)
				close(sub.ch)
			}
		})
	}
}

// Close closes every subscriber channel. Later appends are kept in memory only.
func (el *EventLog) Close() {
	el.mu.Lock()
	defer el.mu.Unlock()
	for id, sub := range el.subscribers {
		close(sub.ch)
		delete(el.subscribers, id)
	}
	el.closed = true
}

// BySession returns all events for one session.
func (el *EventLog) BySession(sessionID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.SessionID == sessionID {
			result = append(result, e)
		}
	}
	return result
}

// ByType returns all events of one type for a session.
func (el *EventLog) ByType(sessionID string, eventType EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.SessionID == sessionID && e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// Forget drops a closed session's events from memory.
func (el *EventLog) Forget(sessionID string) {
	el.mu.Lock()
	defer el.mu.Unlock()

	kept := el.events[:0]
	for _, e := range el.events {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(el.events); i++ {
		el.events[i] = GameEvent{}
	}
	el.events = kept
}

// Replay returns a copy of the full history.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
