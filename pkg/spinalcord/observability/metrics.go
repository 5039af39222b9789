// Package observability provides logging, metrics, and tracing for the
// spinalcord coordination core.
//
// Every state transition worth operational visibility (publish, delivery
// failure, quarantine report, safe-mode entry, task dequeue) is reported
// through a Recorder exactly once per logical event. Recorders never batch
// or sample.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features have no-op implementations for when they are disabled.
package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder receives one signal per logical core event.
// Use NewMetricsRecorder() for OTel, NewPrometheusRecorder for Prometheus,
// or NoopRecorder{} when disabled.
type Recorder interface {
	// RecordPublish records one publish call and how many subscribers it reached.
	RecordPublish(ctx context.Context, eventName string, subscribers int)

	// RecordDeliveryFailure records a subscriber that failed or panicked.
	RecordDeliveryFailure(ctx context.Context, eventName string, panicked bool)

	// RecordFlowSend records a flow message send attempt.
	RecordFlowSend(ctx context.Context, kind string, err error)

	// RecordQuarantine records a processed fault report.
	RecordQuarantine(ctx context.Context, module string, notified bool)

	// RecordSafeMode records a trip. entered is true only for the Normal to
	// SafeMode transition; repeated trips report false.
	RecordSafeMode(ctx context.Context, entered bool)

	// RecordReset records an administrative reset attempt.
	RecordReset(ctx context.Context, granted bool)

	// RecordTaskEnqueued records a task entering the scheduler.
	RecordTaskEnqueued(ctx context.Context, priority int)

	// RecordTaskDequeued records a task taken from the shared queue.
	RecordTaskDequeued(ctx context.Context, priority int, wait time.Duration)

	// RecordTaskDeferred records a risky task held back by safe mode.
	RecordTaskDeferred(ctx context.Context, taskID string)

	// RecordIntegrityCheck records one file verification.
	RecordIntegrityCheck(ctx context.Context, ok bool)

	// RecordEventLogAppend records an event log write.
	RecordEventLogAppend(ctx context.Context, err error)
}

// otelMetrics implements Recorder using OpenTelemetry.
type otelMetrics struct {
	publishes        metric.Int64Counter
	deliveryFailures metric.Int64Counter
	flowSends        metric.Int64Counter
	flowErrors       metric.Int64Counter
	quarantines      metric.Int64Counter
	notifyFailures   metric.Int64Counter
	safeModeTrips    metric.Int64Counter
	safeModeActive   metric.Int64Gauge
	resets           metric.Int64Counter
	tasksEnqueued    metric.Int64Counter
	tasksDequeued    metric.Int64Counter
	taskWait         metric.Float64Histogram
	tasksDeferred    metric.Int64Counter
	integrityChecks  metric.Int64Counter
	logAppends       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

type counterSpec struct {
	dst  *metric.Int64Counter
	name string
	desc string
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("spinalcord")
	m := &otelMetrics{}

	counters := []counterSpec{
		{&m.publishes, "spinalcord.bus.publishes", "Number of bus publish calls"},
		{&m.deliveryFailures, "spinalcord.bus.delivery_failures", "Number of subscriber failures"},
		{&m.flowSends, "spinalcord.flow.sends", "Number of flow messages sent"},
		{&m.flowErrors, "spinalcord.flow.send_errors", "Number of failed flow sends"},
		{&m.quarantines, "spinalcord.quarantine.reports", "Number of processed fault reports"},
		{&m.notifyFailures, "spinalcord.quarantine.notify_failures", "Number of undelivered developer notifications"},
		{&m.safeModeTrips, "spinalcord.safe_mode.trips", "Number of safe-mode trips"},
		{&m.resets, "spinalcord.safe_mode.resets", "Number of safe-mode reset attempts"},
		{&m.tasksEnqueued, "spinalcord.scheduler.enqueued", "Number of tasks enqueued"},
		{&m.tasksDequeued, "spinalcord.scheduler.dequeued", "Number of tasks dequeued"},
		{&m.tasksDeferred, "spinalcord.scheduler.deferred", "Number of risky tasks deferred by safe mode"},
		{&m.integrityChecks, "spinalcord.integrity.checks", "Number of file integrity checks"},
		{&m.logAppends, "spinalcord.eventlog.appends", "Number of event log appends"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	active, err := meter.Int64Gauge("spinalcord.safe_mode.active",
		metric.WithDescription("1 while safe mode is active"),
	)
	if err != nil {
		return nil, err
	}
	m.safeModeActive = active

	wait, err := meter.Float64Histogram("spinalcord.scheduler.wait_ms",
		metric.WithDescription("Time tasks spent queued in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	m.taskWait = wait

	return m, nil
}

// NewMetricsRecorder returns a Recorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() Recorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopRecorder{}
	}
	return m
}

func (m *otelMetrics) RecordPublish(ctx context.Context, eventName string, subscribers int) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventName),
		attribute.Int("subscribers", subscribers),
	))
}

func (m *otelMetrics) RecordDeliveryFailure(ctx context.Context, eventName string, panicked bool) {
	m.deliveryFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventName),
		attribute.Bool("panic", panicked),
	))
}

func (m *otelMetrics) RecordFlowSend(ctx context.Context, kind string, err error) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.flowSends.Add(ctx, 1, attrs)
	if err != nil {
		m.flowErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordQuarantine(ctx context.Context, module string, notified bool) {
	attrs := metric.WithAttributes(attribute.String("module", module))
	m.quarantines.Add(ctx, 1, attrs)
	if !notified {
		m.notifyFailures.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordSafeMode(ctx context.Context, entered bool) {
	m.safeModeTrips.Add(ctx, 1, metric.WithAttributes(attribute.Bool("entered", entered)))
	if entered {
		m.safeModeActive.Record(ctx, 1)
	}
}

func (m *otelMetrics) RecordReset(ctx context.Context, granted bool) {
	m.resets.Add(ctx, 1, metric.WithAttributes(attribute.Bool("granted", granted)))
	if granted {
		m.safeModeActive.Record(ctx, 0)
	}
}

func (m *otelMetrics) RecordTaskEnqueued(ctx context.Context, priority int) {
	m.tasksEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.Int("priority", priority)))
}

func (m *otelMetrics) RecordTaskDequeued(ctx context.Context, priority int, wait time.Duration) {
	attrs := metric.WithAttributes(attribute.Int("priority", priority))
	m.tasksDequeued.Add(ctx, 1, attrs)
	m.taskWait.Record(ctx, float64(wait.Milliseconds()), attrs)
}

// RecordTaskDeferred omits the task ID as an attribute to keep cardinality bounded.
func (m *otelMetrics) RecordTaskDeferred(ctx context.Context, _ string) {
	m.tasksDeferred.Add(ctx, 1)
}

func (m *otelMetrics) RecordIntegrityCheck(ctx context.Context, ok bool) {
	m.integrityChecks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

func (m *otelMetrics) RecordEventLogAppend(ctx context.Context, err error) {
	m.logAppends.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
}
