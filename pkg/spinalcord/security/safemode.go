package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

// ErrSafeModeActive is returned by Allow for risky operations in safe mode.
var ErrSafeModeActive = errors.New("operation not permitted in safe mode")

// Risk classifies an operation for Allow.
type Risk int

const (
	// RiskSafe operations are always permitted.
	RiskSafe Risk = iota
	// RiskRisky operations are refused while in safe mode.
	RiskRisky
)

// Status is a snapshot of the controller state.
type Status struct {
	Active bool      `json:"active"`
	Reason string    `json:"reason,omitempty"`
	Since  time.Time `json:"since,omitempty"`
}

// Controller holds the process-wide safe-mode flag.
//
// IsSafeMode is a single atomic load and may be called from any goroutine.
// The flag is only set by the quarantine Cell and only cleared by Reset.
type Controller struct {
	active atomic.Bool

	mu     sync.Mutex
	reason string
	since  time.Time

	authorizer Authorizer
	audit      eventlog.Appender
	logger     *slog.Logger
	recorder   observability.Recorder
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// NewController creates a controller in normal mode.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		authorizer: DenyAll{},
		logger:     slog.Default(),
		recorder:   observability.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithAuthorizer sets the reset authorizer. Nil keeps DenyAll.
func WithAuthorizer(a Authorizer) ControllerOption {
	return func(c *Controller) {
		if a != nil {
			c.authorizer = a
		}
	}
}

// WithAuditLog records every reset attempt to log.
func WithAuditLog(log eventlog.Appender) ControllerOption {
	return func(c *Controller) {
		c.audit = log
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = observability.OrDefault(logger)
	}
}

// WithControllerRecorder sets the metrics recorder.
func WithControllerRecorder(r observability.Recorder) ControllerOption {
	return func(c *Controller) {
		c.recorder = observability.OrNoop(r)
	}
}

// IsSafeMode reports whether safe mode is active.
func (c *Controller) IsSafeMode() bool {
	return c.active.Load()
}

// Status returns the current state along with the reason and time of the
// trip that set it.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{Active: c.active.Load()}
	if s.Active {
		s.Reason = c.reason
		s.Since = c.since
	}
	return s
}

// Allow reports whether an operation of the given risk may run.
func (c *Controller) Allow(risk Risk) error {
	if risk >= RiskRisky && c.active.Load() {
		return ErrSafeModeActive
	}
	return nil
}

// trip sets safe mode. It reports whether this call performed the
// transition; repeated trips leave the state unchanged.
func (c *Controller) trip(ctx context.Context, reason string) bool {
	c.mu.Lock()
	entered := c.active.CompareAndSwap(false, true)
	if entered {
		c.reason = reason
		c.since = time.Now().UTC()
	}
	c.mu.Unlock()

	if entered {
		observability.LogSafeModeEntered(c.logger, reason)
	} else {
		c.logger.Debug("safe mode already active", slog.String("reason", reason))
	}
	c.recorder.RecordSafeMode(ctx, entered)
	return entered
}

// Reset returns the controller to normal mode if the authorizer grants req.
// Every attempt is logged, counted, and appended to the audit log.
// Resetting while already normal succeeds without effect.
func (c *Controller) Reset(ctx context.Context, req ResetRequest) error {
	err := c.authorizer.Authorize(ctx, req)
	if err != nil && !errors.Is(err, ErrResetDenied) {
		err = fmt.Errorf("%w: %w", ErrResetDenied, err)
	}

	if err == nil {
		c.mu.Lock()
		c.active.Store(false)
		c.reason = ""
		c.since = time.Time{}
		c.mu.Unlock()
	}

	observability.LogResetAttempt(c.logger, req.Operator, req.Reason, err)
	c.recorder.RecordReset(ctx, err == nil)
	c.appendAudit(ctx, req, err)
	return err
}

type auditRecord struct {
	Operator string `json:"operator"`
	Reason   string `json:"reason"`
	Granted  bool   `json:"granted"`
	Error    string `json:"error,omitempty"`
}

func (c *Controller) appendAudit(ctx context.Context, req ResetRequest, err error) {
	if c.audit == nil {
		return
	}
	rec := auditRecord{Operator: req.Operator, Reason: req.Reason, Granted: err == nil}
	if err != nil {
		rec.Error = err.Error()
	}
	_, aerr := c.audit.Append(ctx, eventlog.NewEntry(eventlog.KindAudit, "safe_mode.reset", rec))
	c.recorder.RecordEventLogAppend(ctx, aerr)
	if aerr != nil {
		c.logger.Error("failed to append reset audit entry", slog.String("error", aerr.Error()))
	}
}
