// Package event provides the in-process publish/subscribe bus.
//
// # Events
//
// An Event is an immutable value with a Name and an opaque payload. Use
// BaseEvent[T] for typed payloads:
//
//	evt := event.New("module.started", StartedPayload{Module: "heart"})
//
// Subscribers recover the concrete payload with As:
//
//	if p, ok := event.As[StartedPayload](evt); ok {
//	    ...
//	}
//
// # Delivery
//
// Bus.PublishLocal delivers synchronously, on the publisher's goroutine, to
// every subscriber registered at the moment delivery starts, in registration
// order. A subscriber that returns an error or panics is logged and counted;
// the remaining subscribers still receive the event and the publisher never
// sees the failure.
//
// Bus.Publish additionally appends the event to the attached event log.
//
// Subscribing from inside a subscriber is allowed. The new subscriber starts
// receiving with the next publish.
package event
