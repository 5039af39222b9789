package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/event"
)

// DefaultSendTimeout bounds how long a Forwarder waits for buffer space.
const DefaultSendTimeout = 5 * time.Second

// Forwarder is an event.Subscriber that puts an EventMessage on the flow
// channel for every event it receives.
type Forwarder struct {
	sender  *Sender
	timeout time.Duration
}

var _ event.Subscriber = (*Forwarder)(nil)

// SubscriberOption configures a Forwarder.
type SubscriberOption func(*Forwarder)

// WithSendTimeout sets the longest a forward may wait while the channel is
// full. Non-positive values keep DefaultSendTimeout.
func WithSendTimeout(d time.Duration) SubscriberOption {
	return func(f *Forwarder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewSubscriber returns a Forwarder sending on sender. The caller keeps
// ownership of the handle.
func NewSubscriber(sender *Sender, opts ...SubscriberOption) *Forwarder {
	f := &Forwarder{sender: sender, timeout: DefaultSendTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnEvent implements event.Subscriber. It waits while the channel is full,
// for at most the send timeout, and returns the failure to the bus.
func (f *Forwarder) OnEvent(ctx context.Context, evt event.Event) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.sender.Send(ctx, EventMessage{Name: evt.Name()}); err != nil {
		return fmt.Errorf("forward %s: %w", evt.Name(), err)
	}
	return nil
}
