package event

import "context"

// Subscriber receives every event published on a Bus it is registered with.
//
// OnEvent runs on the publisher's goroutine; implementations should return
// quickly and must be safe for concurrent use when several goroutines publish.
// A returned error is logged and counted by the Bus but never reaches the
// publisher.
type Subscriber interface {
	OnEvent(ctx context.Context, evt Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, evt Event) error

// OnEvent implements Subscriber.
func (f SubscriberFunc) OnEvent(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}
