package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

// Bus fans events out to registered subscribers.
// It is safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber

	logger   *slog.Logger
	recorder observability.Recorder
	spans    observability.SpanManager
	log      eventlog.Appender
	onError  func(*DeliveryError)

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger:   slog.Default(),
		recorder: observability.NoopRecorder{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = observability.OrDefault(logger)
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r observability.Recorder) BusOption {
	return func(b *Bus) {
		b.recorder = observability.OrNoop(r)
	}
}

// WithSpans sets the span manager used to trace deliveries.
func WithSpans(s observability.SpanManager) BusOption {
	return func(b *Bus) {
		if s != nil {
			b.spans = s
		}
	}
}

// WithLog attaches an event log that Publish appends to.
func WithLog(log eventlog.Appender) BusOption {
	return func(b *Bus) {
		b.log = log
	}
}

// WithOnError sets a callback invoked for each subscriber failure.
// The callback runs on the publisher's goroutine.
func WithOnError(fn func(*DeliveryError)) BusOption {
	return func(b *Bus) {
		b.onError = fn
	}
}

// Subscribe registers s for every subsequent publish.
// Registrations last for the lifetime of the bus.
func (b *Bus) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, s)
	b.mu.Unlock()
}

// Len returns the number of registered subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// PublishLocal delivers evt to every subscriber registered when the call
// starts, in registration order, on the calling goroutine.
//
// Subscriber errors and panics are contained: each is logged, counted and
// passed to the OnError callback, then delivery continues with the next
// subscriber. It returns the number of subscribers that failed.
func (b *Bus) PublishLocal(ctx context.Context, evt Event) int {
	if evt == nil {
		return 0
	}

	// The slice header is captured under the read lock. Subscribe only
	// appends, so the first len(subs) elements never change.
	b.mu.RLock()
	subs := b.subscribers[:len(b.subscribers):len(b.subscribers)]
	b.mu.RUnlock()

	name := evt.Name()
	ctx, span := b.spans.StartPublishSpan(ctx, name, len(subs))

	failures := 0
	var firstErr error
	for i, s := range subs {
		panicked, err := b.deliver(ctx, s, evt)
		if err == nil {
			b.delivered.Add(1)
			continue
		}

		failures++
		if firstErr == nil {
			firstErr = err
		}
		b.failed.Add(1)

		derr := &DeliveryError{EventName: name, Subscriber: i, Err: err, Panic: panicked}
		observability.LogSubscriberFailure(b.logger, name, i, derr)
		b.recorder.RecordDeliveryFailure(ctx, name, panicked)
		if b.onError != nil {
			b.onError(derr)
		}
	}

	b.published.Add(1)
	b.recorder.RecordPublish(ctx, name, len(subs))
	b.spans.EndSpanWithError(span, firstErr)
	return failures
}

// Publish delivers evt locally and then appends it to the event log, if one
// is attached. A log failure is logged and counted; it does not undo the
// delivery and is not returned to the publisher.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt == nil {
		return
	}

	b.PublishLocal(ctx, evt)

	if b.log == nil {
		return
	}
	_, err := b.log.Append(ctx, eventlog.NewEntry(eventlog.KindEvent, evt.Name(), evt.Data()))
	b.recorder.RecordEventLogAppend(ctx, err)
	if err != nil {
		b.logger.Error("failed to append event to log",
			slog.String("event", evt.Name()),
			slog.String("error", err.Error()),
		)
	}
}

// deliver invokes one subscriber, converting a panic into an error.
func (b *Bus) deliver(ctx context.Context, s Subscriber, evt Event) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = &PanicError{Value: r}
		}
	}()
	return false, s.OnEvent(ctx, evt)
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Delivered   int64 `json:"delivered"`
	Failed      int64 `json:"failed"`
}

// Stats returns current delivery counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Subscribers: b.Len(),
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Failed:      b.failed.Load(),
	}
}
