// Package schema validates event payloads against JSON Schemas before they
// reach the bus.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/event"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

var (
	// ErrInvalidPayload indicates an event payload failed schema validation.
	ErrInvalidPayload = errors.New("invalid event payload")

	// ErrNilEvent indicates a nil event was given for validation.
	ErrNilEvent = errors.New("nil event")
)

// ValidationError lists every schema violation for one event.
type ValidationError struct {
	EventName string
	Problems  []string
}

// Error implements error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidPayload, e.EventName, strings.Join(e.Problems, "; "))
}

// Unwrap returns ErrInvalidPayload.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidPayload
}

// Registry maps event names to compiled schemas.
// Events without a registered schema pass validation.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*gojsonschema.Schema)}
}

// Register compiles schema and binds it to eventName, replacing any earlier
// schema for that name.
func (r *Registry) Register(eventName string, schema []byte) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", eventName, err)
	}

	r.mu.Lock()
	r.schemas[eventName] = compiled
	r.mu.Unlock()
	return nil
}

// LoadDir registers every *.json file in dir, using the file name without
// its extension as the event name. It returns the number of schemas loaded.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read schema dir: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		if err := r.Register(strings.TrimSuffix(e.Name(), ".json"), data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Has reports whether a schema is registered for eventName.
func (r *Registry) Has(eventName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[eventName]
	return ok
}

// Validate checks evt's payload against its schema.
func (r *Registry) Validate(evt event.Event) error {
	if evt == nil {
		return ErrNilEvent
	}
	r.mu.RLock()
	compiled, ok := r.schemas[evt.Name()]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(evt.Data()))
	if err != nil {
		return &ValidationError{EventName: evt.Name(), Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &ValidationError{EventName: evt.Name(), Problems: problems}
}

// Publisher is the part of event.Bus the Gate needs.
type Publisher interface {
	Publish(ctx context.Context, evt event.Event)
}

// Gate validates events before handing them to a Publisher.
type Gate struct {
	next     Publisher
	registry *Registry
	logger   *slog.Logger
}

// NewGate creates a gate in front of next.
func NewGate(next Publisher, registry *Registry, logger *slog.Logger) *Gate {
	return &Gate{next: next, registry: registry, logger: observability.OrDefault(logger)}
}

// Publish validates evt and publishes it. Invalid events are rejected with a
// *ValidationError and never reach subscribers. A nil event returns
// ErrNilEvent.
func (g *Gate) Publish(ctx context.Context, evt event.Event) error {
	if evt == nil {
		return ErrNilEvent
	}
	if err := g.registry.Validate(evt); err != nil {
		g.logger.Warn("rejected event payload",
			slog.String("event", evt.Name()),
			slog.String("error", err.Error()),
		)
		return err
	}
	g.next.Publish(ctx, evt)
	return nil
}
