package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

// Manifest maps file paths to their expected hex-encoded SHA-256 digests.
// Relative paths are resolved against the checker's base directory.
type Manifest map[string]string

// LoadManifest reads a manifest from a .json, .yaml or .yml file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m := Manifest{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Mismatch describes a file that failed verification.
type Mismatch struct {
	Path     string
	Expected string
	Actual   string // empty when the file could not be read
	Err      error  // read error, if any
}

// IntegrityConfig configures an IntegrityChecker.
type IntegrityConfig struct {
	// ManifestPath is the manifest file. Required.
	ManifestPath string

	// BaseDir resolves relative manifest entries.
	// Default: the manifest's directory
	BaseDir string

	// Interval between periodic checks in Watch.
	// Default: 60s
	Interval time.Duration

	// RecheckLimit throttles checks triggered by file system events.
	// Default: one check per second, burst 1
	RecheckLimit rate.Limit

	Logger   *slog.Logger
	Recorder observability.Recorder
}

// DefaultIntegrityConfig provides reasonable defaults.
var DefaultIntegrityConfig = IntegrityConfig{
	Interval:     60 * time.Second,
	RecheckLimit: rate.Limit(1),
}

// IntegrityChecker verifies file digests and reports mismatching files to the
// quarantine intake.
type IntegrityChecker struct {
	config  IntegrityConfig
	intake  *IntakeSender
	limiter *rate.Limiter
}

// NewIntegrityChecker creates a checker reporting to intake. The checker
// does not take ownership of the intake handle.
func NewIntegrityChecker(intake *IntakeSender, config IntegrityConfig) (*IntegrityChecker, error) {
	if config.ManifestPath == "" {
		return nil, errors.New("integrity manifest path is required")
	}
	if config.BaseDir == "" {
		config.BaseDir = filepath.Dir(config.ManifestPath)
	}
	if config.Interval <= 0 {
		config.Interval = DefaultIntegrityConfig.Interval
	}
	if config.RecheckLimit <= 0 {
		config.RecheckLimit = DefaultIntegrityConfig.RecheckLimit
	}
	config.Logger = observability.OrDefault(config.Logger)
	config.Recorder = observability.OrNoop(config.Recorder)

	return &IntegrityChecker{
		config:  config,
		intake:  intake,
		limiter: rate.NewLimiter(config.RecheckLimit, 1),
	}, nil
}

func (c *IntegrityChecker) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.config.BaseDir, path)
}

// CheckOnce verifies every manifest entry, reporting each mismatching or
// unreadable file to the intake. It returns the mismatches found. An error
// is returned when the manifest cannot be loaded or the intake is closed.
func (c *IntegrityChecker) CheckOnce(ctx context.Context) ([]Mismatch, error) {
	manifest, err := LoadManifest(c.config.ManifestPath)
	if err != nil {
		c.config.Recorder.RecordIntegrityCheck(ctx, false)
		return nil, err
	}

	var mismatches []Mismatch
	for _, rel := range slices.Sorted(maps.Keys(manifest)) {
		expected := strings.ToLower(strings.TrimSpace(manifest[rel]))
		path := c.resolve(rel)

		actual, err := hashFile(path)
		if err == nil && actual == expected {
			c.config.Logger.Debug("integrity ok", slog.String("file", path))
			continue
		}

		mm := Mismatch{Path: path, Expected: expected, Actual: actual, Err: err}
		mismatches = append(mismatches, mm)
		c.config.Logger.Warn("integrity mismatch",
			slog.String("file", path),
			slog.String("expected", expected),
			slog.String("actual", actual),
		)

		if err := c.intake.Report(ctx, path); err != nil {
			c.config.Recorder.RecordIntegrityCheck(ctx, false)
			return mismatches, fmt.Errorf("report %s: %w", path, err)
		}
	}

	c.config.Recorder.RecordIntegrityCheck(ctx, len(mismatches) == 0)
	return mismatches, nil
}

// Watch runs CheckOnce immediately, then on every interval tick and whenever
// a watched file changes (throttled by RecheckLimit). It returns ctx.Err()
// when ctx ends, or the error that stopped checking.
func (c *IntegrityChecker) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watched := c.watchSet()
	dirs := make(map[string]struct{})
	for path := range watched {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			c.config.Logger.Warn("cannot watch directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := c.check(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := c.check(ctx); err != nil {
				return err
			}

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, hit := watched[filepath.Clean(evt.Name)]; !hit {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) &&
				!evt.Has(fsnotify.Remove) && !evt.Has(fsnotify.Rename) {
				continue
			}
			if err := c.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			if err := c.check(ctx); err != nil {
				return err
			}

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.config.Logger.Warn("integrity watcher error", slog.String("error", werr.Error()))
		}
	}
}

// check runs CheckOnce, treating a bad manifest as transient.
func (c *IntegrityChecker) check(ctx context.Context) error {
	_, err := c.CheckOnce(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrClosed) || ctx.Err() != nil {
		return err
	}
	c.config.Logger.Error("integrity check failed", slog.String("error", err.Error()))
	return nil
}

// watchSet returns the manifest file and every file it lists.
func (c *IntegrityChecker) watchSet() map[string]struct{} {
	set := map[string]struct{}{filepath.Clean(c.config.ManifestPath): {}}
	manifest, err := LoadManifest(c.config.ManifestPath)
	if err != nil {
		return set
	}
	for rel := range manifest {
		set[c.resolve(rel)] = struct{}{}
	}
	return set
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
