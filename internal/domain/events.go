package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is something that happened to a level, published after the state
// change has been persisted.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
}

// BaseEvent carries the fields every event serializes.
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"occurred_at"`
}

// NewBaseEvent stamps a new event of the given type with an id and time.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{ID: uuid.New(), Type: eventType, Timestamp: time.Now().UTC()}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// EventHandler processes domain events
type EventHandler func(event Event)

type subscription struct {
	eventType string // empty matches every type
	handle    EventHandler
}

// EventDispatcher fans events out to subscribers synchronously, in
// subscription order. Handlers run without the dispatcher lock held, so a
// handler may publish or subscribe.
type EventDispatcher struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewEventDispatcher creates an empty dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{}
}

// Subscribe registers handler for one event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.add(subscription{eventType: eventType, handle: handler})
}

// SubscribeAll registers handler for every event type
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.add(subscription{handle: handler})
}

func (d *EventDispatcher) add(s subscription) {
	d.mu.Lock()
	d.subs = append(d.subs, s)
	d.mu.Unlock()
}

// Publish calls every handler subscribed to event's type or to all types.
func (d *EventDispatcher) Publish(event Event) {
	d.mu.RLock()
	var matched []EventHandler
	for _, s := range d.subs {
		if s.eventType == "" || s.eventType == event.EventType() {
			matched = append(matched, s.handle)
		}
	}
	d.mu.RUnlock()

	for _, h := range matched {
		h(event)
	}
}

// Event types
const (
	EventExerciseCompleted = "exercise.completed"
	EventLevelCompleted    = "level.completed"
	EventLevelReset        = "level.reset"
)

// ExerciseCompletedEvent is published when a check passes for the first time
type ExerciseCompletedEvent struct {
	BaseEvent
	Level      int `json:"level"`
	ExerciseID int `json:"exercise_id"`
}

// NewExerciseCompletedEvent creates a new exercise completed event
func NewExerciseCompletedEvent(level, exerciseID int) ExerciseCompletedEvent {
	return ExerciseCompletedEvent{
		BaseEvent:  NewBaseEvent(EventExerciseCompleted),
		Level:      level,
		ExerciseID: exerciseID,
	}
}

// LevelCompletedEvent is published when a level is completed
type LevelCompletedEvent struct {
	BaseEvent
	Level           int   `json:"level"`
	CompletedLevels []int `json:"completed_levels"`
	TotalProgress   int   `json:"total_progress"`
}

// NewLevelCompletedEvent creates a new level completed event
func NewLevelCompletedEvent(level int, completed []int, total int) LevelCompletedEvent {
	return LevelCompletedEvent{
		BaseEvent:       NewBaseEvent(EventLevelCompleted),
		Level:           level,
		CompletedLevels: completed,
		TotalProgress:   total,
	}
}

// LevelResetEvent is published when a level is reset to defaults
type LevelResetEvent struct {
	BaseEvent
	Level int `json:"level"`
}

// NewLevelResetEvent creates a new level reset event
func NewLevelResetEvent(level int) LevelResetEvent {
	return LevelResetEvent{
		BaseEvent: NewBaseEvent(EventLevelReset),
		Level:     level,
	}
}
