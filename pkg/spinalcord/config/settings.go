package config

import (
	"errors"
	"fmt"
	"time"
)

// Settings is the typed runtime configuration.
type Settings struct {
	// FlowCapacity bounds the flow channel.
	FlowCapacity int `json:"flow_capacity" yaml:"flow_capacity"`

	// FlowSendTimeout bounds how long a bus delivery waits on a full flow
	// channel.
	FlowSendTimeout time.Duration `json:"flow_send_timeout" yaml:"flow_send_timeout"`

	// IntakeCapacity bounds pending quarantine reports.
	IntakeCapacity int `json:"intake_capacity" yaml:"intake_capacity"`

	// NotifyCapacity bounds pending developer notifications.
	NotifyCapacity int `json:"notify_capacity" yaml:"notify_capacity"`

	// EventLogPath is the SQLite event log file. Empty keeps the log in memory.
	EventLogPath string `json:"eventlog_path" yaml:"eventlog_path"`

	// IntegrityManifest enables the integrity checker when set.
	IntegrityManifest string        `json:"integrity_manifest" yaml:"integrity_manifest"`
	IntegrityBaseDir  string        `json:"integrity_base_dir" yaml:"integrity_base_dir"`
	IntegrityInterval time.Duration `json:"integrity_interval" yaml:"integrity_interval"`

	// SchemaDir holds one JSON Schema per event name.
	SchemaDir string `json:"schema_dir" yaml:"schema_dir"`

	// MetricsAddr serves Prometheus metrics when set (e.g. ":9090").
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`

	// ResetToken authorizes safe-mode resets. Empty denies every reset.
	ResetToken string `json:"-" yaml:"-"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// DefaultSettings provides reasonable defaults.
var DefaultSettings = Settings{
	FlowCapacity:      256,
	FlowSendTimeout:   5 * time.Second,
	IntakeCapacity:    64,
	NotifyCapacity:    64,
	IntegrityInterval: 60 * time.Second,
	LogLevel:          "info",
	LogFormat:         "text",
}

// Configuration keys read by Settings.
const (
	KeyFlowCapacity      = "flow.capacity"
	KeyFlowSendTimeout   = "flow.send_timeout"
	KeyIntakeCapacity    = "quarantine.intake_capacity"
	KeyNotifyCapacity    = "quarantine.notify_capacity"
	KeyEventLogPath      = "eventlog.path"
	KeyIntegrityManifest = "integrity.manifest"
	KeyIntegrityBaseDir  = "integrity.base_dir"
	KeyIntegrityInterval = "integrity.interval"
	KeySchemaDir         = "schema.dir"
	KeyMetricsAddr       = "metrics.addr"
	KeyResetToken        = "safe_mode.reset_token"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
)

// Settings extracts typed settings, falling back to DefaultSettings.
func (c Config) Settings() Settings {
	d := DefaultSettings
	return Settings{
		FlowCapacity:      c.Int(KeyFlowCapacity, d.FlowCapacity),
		FlowSendTimeout:   c.Duration(KeyFlowSendTimeout, d.FlowSendTimeout),
		IntakeCapacity:    c.Int(KeyIntakeCapacity, d.IntakeCapacity),
		NotifyCapacity:    c.Int(KeyNotifyCapacity, d.NotifyCapacity),
		EventLogPath:      c.String(KeyEventLogPath, d.EventLogPath),
		IntegrityManifest: c.String(KeyIntegrityManifest, d.IntegrityManifest),
		IntegrityBaseDir:  c.String(KeyIntegrityBaseDir, d.IntegrityBaseDir),
		IntegrityInterval: c.Duration(KeyIntegrityInterval, d.IntegrityInterval),
		SchemaDir:         c.String(KeySchemaDir, d.SchemaDir),
		MetricsAddr:       c.String(KeyMetricsAddr, d.MetricsAddr),
		ResetToken:        c.String(KeyResetToken, d.ResetToken),
		LogLevel:          c.String(KeyLogLevel, d.LogLevel),
		LogFormat:         c.String(KeyLogFormat, d.LogFormat),
	}
}

// Load reads settings from a YAML or JSON file. An empty path returns the
// defaults.
func Load(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings, nil
	}
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	s := cfg.Settings()
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return s, nil
}

// Validate reports settings that cannot be used.
func (s Settings) Validate() error {
	var errs []error
	if s.FlowCapacity <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyFlowCapacity, s.FlowCapacity))
	}
	if s.FlowSendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyFlowSendTimeout))
	}
	if s.IntakeCapacity <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyIntakeCapacity, s.IntakeCapacity))
	}
	if s.NotifyCapacity <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyNotifyCapacity, s.NotifyCapacity))
	}
	if s.IntegrityManifest != "" && s.IntegrityInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyIntegrityInterval))
	}
	switch s.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, s.LogFormat))
	}
	return errors.Join(errs...)
}
