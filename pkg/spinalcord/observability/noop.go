package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

var _ Recorder = NoopRecorder{}

func (NoopRecorder) RecordPublish(context.Context, string, int)             {}
func (NoopRecorder) RecordDeliveryFailure(context.Context, string, bool)    {}
func (NoopRecorder) RecordFlowSend(context.Context, string, error)          {}
func (NoopRecorder) RecordQuarantine(context.Context, string, bool)         {}
func (NoopRecorder) RecordSafeMode(context.Context, bool)                   {}
func (NoopRecorder) RecordReset(context.Context, bool)                      {}
func (NoopRecorder) RecordTaskEnqueued(context.Context, int)                {}
func (NoopRecorder) RecordTaskDequeued(context.Context, int, time.Duration) {}
func (NoopRecorder) RecordTaskDeferred(context.Context, string)             {}
func (NoopRecorder) RecordIntegrityCheck(context.Context, bool)             {}
func (NoopRecorder) RecordEventLogAppend(context.Context, error)            {}

// OrNoop returns r, or NoopRecorder{} when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartPublishSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartPublishSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartQuarantineSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartQuarantineSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
