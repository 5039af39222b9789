package spinalcord

import (
	"log/slog"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/scheduler"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/security"
)

type runtimeOptions struct {
	logger     *slog.Logger
	recorder   observability.Recorder
	spans      observability.SpanManager
	store      eventlog.Store
	authorizer security.Authorizer
	taskFunc   scheduler.TaskFunc
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) {
		o.logger = logger
	}
}

// WithRecorder sets the metrics recorder.
// Default: the OpenTelemetry recorder on the global meter provider.
func WithRecorder(r observability.Recorder) Option {
	return func(o *runtimeOptions) {
		o.recorder = r
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(o *runtimeOptions) {
		o.spans = s
	}
}

// WithStore sets the event log store, overriding Settings.EventLogPath.
// The runtime closes it on Close.
func WithStore(s eventlog.Store) Option {
	return func(o *runtimeOptions) {
		o.store = s
	}
}

// WithAuthorizer sets the safe-mode reset authorizer, overriding
// Settings.ResetToken.
func WithAuthorizer(a security.Authorizer) Option {
	return func(o *runtimeOptions) {
		o.authorizer = a
	}
}

// WithTaskFunc sets the function that executes scheduled tasks.
func WithTaskFunc(fn scheduler.TaskFunc) Option {
	return func(o *runtimeOptions) {
		o.taskFunc = fn
	}
}
