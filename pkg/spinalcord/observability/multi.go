package observability

import (
	"context"
	"time"
)

// Multi fans every signal out to several recorders, e.g. OTel and
// Prometheus at the same time.
type Multi []Recorder

var _ Recorder = Multi(nil)

func (m Multi) RecordPublish(ctx context.Context, eventName string, subscribers int) {
	for _, r := range m {
		r.RecordPublish(ctx, eventName, subscribers)
	}
}

func (m Multi) RecordDeliveryFailure(ctx context.Context, eventName string, panicked bool) {
	for _, r := range m {
		r.RecordDeliveryFailure(ctx, eventName, panicked)
	}
}

func (m Multi) RecordFlowSend(ctx context.Context, kind string, err error) {
	for _, r := range m {
		r.RecordFlowSend(ctx, kind, err)
	}
}

func (m Multi) RecordQuarantine(ctx context.Context, module string, notified bool) {
	for _, r := range m {
		r.RecordQuarantine(ctx, module, notified)
	}
}

func (m Multi) RecordSafeMode(ctx context.Context, entered bool) {
	for _, r := range m {
		r.RecordSafeMode(ctx, entered)
	}
}

func (m Multi) RecordReset(ctx context.Context, granted bool) {
	for _, r := range m {
		r.RecordReset(ctx, granted)
	}
}

func (m Multi) RecordTaskEnqueued(ctx context.Context, priority int) {
	for _, r := range m {
		r.RecordTaskEnqueued(ctx, priority)
	}
}

func (m Multi) RecordTaskDequeued(ctx context.Context, priority int, wait time.Duration) {
	for _, r := range m {
		r.RecordTaskDequeued(ctx, priority, wait)
	}
}

func (m Multi) RecordTaskDeferred(ctx context.Context, taskID string) {
	for _, r := range m {
		r.RecordTaskDeferred(ctx, taskID)
	}
}

func (m Multi) RecordIntegrityCheck(ctx context.Context, ok bool) {
	for _, r := range m {
		r.RecordIntegrityCheck(ctx, ok)
	}
}

func (m Multi) RecordEventLogAppend(ctx context.Context, err error) {
	for _, r := range m {
		r.RecordEventLogAppend(ctx, err)
	}
}
