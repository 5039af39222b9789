package event

import (
	"fmt"
)

// DeliveryError describes a single subscriber failure during delivery.
type DeliveryError struct {
	EventName  string // Name of the event being delivered
	Subscriber int    // Registration index of the failing subscriber
	Err        error  // Error returned (or recovered from a panic)
	Panic      bool   // True if the subscriber panicked
}

// Error implements error interface.
func (e *DeliveryError) Error() string {
	if e.Panic {
		return fmt.Sprintf("event %s: subscriber %d panicked: %v", e.EventName, e.Subscriber, e.Err)
	}
	return fmt.Sprintf("event %s: subscriber %d: %v", e.EventName, e.Subscriber, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking subscriber.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
