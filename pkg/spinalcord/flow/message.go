// Package flow carries messages between cells over a bounded channel.
//
// Senders block while the channel is full (backpressure) until space frees,
// their context ends, or the channel closes. Nothing is ever dropped silently:
// a send either succeeds or returns an error.
package flow

// Kind discriminates Message variants.
type Kind string

// Message kinds.
const (
	KindEvent   Kind = "event"
	KindTask    Kind = "task"
	KindData    Kind = "data"
	KindControl Kind = "control"
)

// Message is the unit carried by the flow channel.
//
// The set of variants is open: new ones implement Message, and consumers
// type-switch with a default branch for kinds they do not understand.
type Message interface {
	Kind() Kind
}

// EventMessage announces that an event with the given name was published.
type EventMessage struct {
	Name string `json:"name"`
}

// Kind implements Message.
func (EventMessage) Kind() Kind { return KindEvent }

// TaskMessage asks the consumer to schedule a task.
type TaskMessage struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Risky       bool   `json:"risky,omitempty"`
}

// Kind implements Message.
func (TaskMessage) Kind() Kind { return KindTask }

// DataMessage carries an opaque named payload.
type DataMessage struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Kind implements Message.
func (DataMessage) Kind() Kind { return KindData }

// ControlSignal is an instruction to the consumer loop itself.
type ControlSignal string

// Control signals.
const (
	// ControlShutdown asks the consumer to stop after this message.
	ControlShutdown ControlSignal = "shutdown"

	// ControlFlush asks the consumer to process everything it holds.
	ControlFlush ControlSignal = "flush"
)

// ControlMessage carries a ControlSignal.
type ControlMessage struct {
	Signal ControlSignal `json:"signal"`
}

// Kind implements Message.
func (ControlMessage) Kind() Kind { return KindControl }
