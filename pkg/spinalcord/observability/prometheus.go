package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	publishes        *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	flowSends        *prometheus.CounterVec
	quarantines      *prometheus.CounterVec
	safeModeTrips    *prometheus.CounterVec
	safeModeActive   prometheus.Gauge
	resets           *prometheus.CounterVec
	tasksEnqueued    prometheus.Counter
	tasksDequeued    prometheus.Counter
	taskWait         prometheus.Histogram
	tasksDeferred    prometheus.Counter
	integrityChecks  *prometheus.CounterVec
	logAppends       *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates the spinalcord collectors and registers them
// with reg. Registration fails if another recorder already used reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	const ns = "spinalcord"
	r := &PrometheusRecorder{
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "bus", Name: "publishes_total",
			Help: "Number of bus publish calls.",
		}, []string{"event"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "bus", Name: "delivery_failures_total",
			Help: "Number of subscriber failures.",
		}, []string{"event", "panic"}),
		flowSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "flow", Name: "sends_total",
			Help: "Number of flow message sends by outcome.",
		}, []string{"kind", "outcome"}),
		quarantines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "quarantine", Name: "reports_total",
			Help: "Number of processed fault reports.",
		}, []string{"notified"}),
		safeModeTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "safe_mode", Name: "trips_total",
			Help: "Number of safe-mode trips.",
		}, []string{"entered"}),
		safeModeActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "safe_mode", Name: "active",
			Help: "1 while safe mode is active.",
		}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "safe_mode", Name: "resets_total",
			Help: "Number of safe-mode reset attempts.",
		}, []string{"granted"}),
		tasksEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "scheduler", Name: "enqueued_total",
			Help: "Number of tasks enqueued.",
		}),
		tasksDequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "scheduler", Name: "dequeued_total",
			Help: "Number of tasks dequeued.",
		}),
		taskWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "scheduler", Name: "wait_seconds",
			Help:    "Time tasks spent queued.",
			Buckets: prometheus.DefBuckets,
		}),
		tasksDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "scheduler", Name: "deferred_total",
			Help: "Number of risky tasks deferred by safe mode.",
		}),
		integrityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "integrity", Name: "checks_total",
			Help: "Number of file integrity checks.",
		}, []string{"ok"}),
		logAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "eventlog", Name: "appends_total",
			Help: "Number of event log appends.",
		}, []string{"success"}),
	}

	collectors := []prometheus.Collector{
		r.publishes, r.deliveryFailures, r.flowSends, r.quarantines,
		r.safeModeTrips, r.safeModeActive, r.resets, r.tasksEnqueued,
		r.tasksDequeued, r.taskWait, r.tasksDeferred, r.integrityChecks,
		r.logAppends,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register prometheus collector: %w", err)
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) RecordPublish(_ context.Context, eventName string, _ int) {
	r.publishes.WithLabelValues(eventName).Inc()
}

func (r *PrometheusRecorder) RecordDeliveryFailure(_ context.Context, eventName string, panicked bool) {
	r.deliveryFailures.WithLabelValues(eventName, strconv.FormatBool(panicked)).Inc()
}

func (r *PrometheusRecorder) RecordFlowSend(_ context.Context, kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.flowSends.WithLabelValues(kind, outcome).Inc()
}

// RecordQuarantine drops the module label; fault identifiers are unbounded.
func (r *PrometheusRecorder) RecordQuarantine(_ context.Context, _ string, notified bool) {
	r.quarantines.WithLabelValues(strconv.FormatBool(notified)).Inc()
}

func (r *PrometheusRecorder) RecordSafeMode(_ context.Context, entered bool) {
	r.safeModeTrips.WithLabelValues(strconv.FormatBool(entered)).Inc()
	if entered {
		r.safeModeActive.Set(1)
	}
}

func (r *PrometheusRecorder) RecordReset(_ context.Context, granted bool) {
	r.resets.WithLabelValues(strconv.FormatBool(granted)).Inc()
	if granted {
		r.safeModeActive.Set(0)
	}
}

func (r *PrometheusRecorder) RecordTaskEnqueued(_ context.Context, _ int) {
	r.tasksEnqueued.Inc()
}

func (r *PrometheusRecorder) RecordTaskDequeued(_ context.Context, _ int, wait time.Duration) {
	r.tasksDequeued.Inc()
	r.taskWait.Observe(wait.Seconds())
}

func (r *PrometheusRecorder) RecordTaskDeferred(_ context.Context, _ string) {
	r.tasksDeferred.Inc()
}

func (r *PrometheusRecorder) RecordIntegrityCheck(_ context.Context, ok bool) {
	r.integrityChecks.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (r *PrometheusRecorder) RecordEventLogAppend(_ context.Context, err error) {
	r.logAppends.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
}
