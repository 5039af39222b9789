package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("spinalcord")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tracer = otel.Tracer("spinalcord")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func TestSpanManager_PublishSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartPublishSpan(context.Background(), "DummyEvent", 2)
	sm.AddSpanEvent(ctx, "subscriber.failed", attribute.Int("subscriber", 1))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "spinalcord.publish", s.Name)
	assert.Equal(t, codes.Ok, s.Status.Code)
	require.Len(t, s.Events, 1)
	assert.Equal(t, "subscriber.failed", s.Events[0].Name)

	var name string
	for _, attr := range s.Attributes {
		if attr.Key == "event.name" {
			name = attr.Value.AsString()
		}
	}
	assert.Equal(t, "DummyEvent", name)
}

func TestSpanManager_QuarantineSpanError(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	_, span := sm.StartQuarantineSpan(context.Background(), "critical_module")
	sm.EndSpanWithError(span, errors.New("notify failed"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "spinalcord.quarantine", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "notify failed", spans[0].Status.Description)
}

func TestSpanManager_EndNilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		NewSpanManager().EndSpanWithError(nil, nil)
	})
}

func TestNoopSpanManager(t *testing.T) {
	exporter := setupTracingTest(t)
	var sm SpanManager = NoopSpanManager{}

	ctx := context.Background()
	got, span := sm.StartPublishSpan(ctx, "e", 1)
	assert.Equal(t, ctx, got)
	sm.AddSpanEvent(got, "x")
	sm.EndSpanWithError(span, errors.New("ignored"))

	_, span = sm.StartQuarantineSpan(ctx, "m")
	sm.EndSpanWithError(span, nil)

	assert.Empty(t, exporter.GetSpans())
}
