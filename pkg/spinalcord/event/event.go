package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is the contract for anything published on the Bus.
// Events are not mutated after construction.
type Event interface {
	// Name identifies the kind of event (e.g. "module.started").
	Name() string

	// Data returns the payload for capability-checked downcasting.
	Data() any
}

// BaseEvent is a generic event carrying a typed payload.
type BaseEvent[T any] struct {
	ID        string    `json:"id"`
	EventName string    `json:"name"`
	Timestamp time.Time `json:"ts"`
	Payload   T         `json:"data"`
}

// New creates an event with a fresh ID and the current time.
func New[T any](name string, payload T) *BaseEvent[T] {
	return &BaseEvent[T]{
		ID:        uuid.New().String(),
		EventName: name,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Name returns the event name.
func (e *BaseEvent[T]) Name() string {
	return e.EventName
}

// Data returns the payload.
func (e *BaseEvent[T]) Data() any {
	return e.Payload
}

// TypedData returns the strongly-typed payload.
func (e *BaseEvent[T]) TypedData() T {
	return e.Payload
}

// Named is a payload-free event identified only by its name.
type Named string

// Name returns the event name.
func (n Named) Name() string { return string(n) }

// Data returns nil.
func (n Named) Data() any { return nil }

// As recovers a concrete value from evt.
// It first checks whether evt itself is a T, then whether its payload is.
// The boolean is false when neither matches.
func As[T any](evt Event) (T, bool) {
	if evt == nil {
		var zero T
		return zero, false
	}
	if v, ok := evt.(T); ok {
		return v, true
	}
	v, ok := evt.Data().(T)
	return v, ok
}
