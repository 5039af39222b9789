package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds a slog logger writing to w.
// format is "json" or "text"; level is "debug", "info", "warn" or "error".
func NewLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	if level == "" {
		level = "info"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

// OrDefault returns logger, or slog.Default() when logger is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LogSubscriberFailure logs a subscriber that failed during delivery.
func LogSubscriberFailure(logger *slog.Logger, eventName string, subscriber int, err error) {
	if logger == nil {
		return
	}
	logger.Error("subscriber failed",
		slog.String("event", eventName),
		slog.Int("subscriber", subscriber),
		slog.String("error", err.Error()),
	)
}

// LogQuarantine logs a processed fault report.
func LogQuarantine(logger *slog.Logger, module string, tripped bool) {
	if logger == nil {
		return
	}
	logger.Warn("quarantine activated, disabling module",
		slog.String("module", module),
		slog.Bool("tripped", tripped),
	)
}

// LogNotifyFailure logs a developer notification that could not be queued.
func LogNotifyFailure(logger *slog.Logger, module string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("failed to notify developer",
		slog.String("module", module),
		slog.String("error", err.Error()),
	)
}

// LogSafeModeEntered logs the Normal to SafeMode transition.
func LogSafeModeEntered(logger *slog.Logger, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("entering safe mode: disabling non-essential cells",
		slog.String("reason", reason),
	)
}

// LogResetAttempt logs an administrative reset, granted or not.
func LogResetAttempt(logger *slog.Logger, operator, reason string, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("safe mode reset denied",
			slog.String("operator", operator),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Warn("safe mode reset granted",
		slog.String("operator", operator),
		slog.String("reason", reason),
	)
}

// LogTaskDeferred logs a risky task held back while in safe mode.
func LogTaskDeferred(logger *slog.Logger, taskID string, priority int) {
	if logger == nil {
		return
	}
	logger.Info("task deferred by safe mode",
		slog.String("task_id", taskID),
		slog.Int("priority", priority),
	)
}
