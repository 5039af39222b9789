package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

// TaskFunc runs one task.
type TaskFunc func(ctx context.Context, t Task) error

// Gate decides whether a task may run now. A non-nil error defers the task.
type Gate interface {
	AllowTask(t Task) error
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(t Task) error

// AllowTask implements Gate.
func (f GateFunc) AllowTask(t Task) error { return f(t) }

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// Gate is consulted before each task. Nil allows everything.
	Gate Gate

	// OnError is called when a task returns an error.
	OnError func(t Task, err error)

	Logger   *slog.Logger
	Recorder observability.Recorder
}

// Executor pulls tasks from a Synchronized scheduler and runs them one at a
// time. Tasks refused by the Gate are set aside and can be requeued later.
type Executor struct {
	queue  *Synchronized
	run    TaskFunc
	config ExecutorConfig

	// runMu serializes RunOnce across goroutines.
	runMu sync.Mutex

	mu       sync.Mutex
	deferred []Task
}

// NewExecutor creates an executor draining queue through run.
func NewExecutor(queue *Synchronized, run TaskFunc, config ExecutorConfig) *Executor {
	config.Logger = observability.OrDefault(config.Logger)
	config.Recorder = observability.OrNoop(config.Recorder)
	return &Executor{queue: queue, run: run, config: config}
}

// RunOnce executes the highest-priority task, if any. It reports whether a
// task was taken from the queue (run or deferred). Concurrent calls run one
// task at a time.
func (e *Executor) RunOnce(ctx context.Context) bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	t, ok := e.queue.Next()
	if !ok {
		return false
	}

	if e.config.Gate != nil {
		if err := e.config.Gate.AllowTask(t); err != nil {
			e.mu.Lock()
			e.deferred = append(e.deferred, t)
			e.mu.Unlock()
			observability.LogTaskDeferred(e.config.Logger, t.ID, t.Priority)
			e.config.Recorder.RecordTaskDeferred(ctx, t.ID)
			return true
		}
	}

	if err := e.run(ctx, t); err != nil {
		e.config.Logger.Error("task failed",
			slog.String("task_id", t.ID),
			slog.Int("priority", t.Priority),
			slog.String("error", err.Error()),
		)
		if e.config.OnError != nil {
			e.config.OnError(t, err)
		}
	}
	return true
}

// Run drains the queue until ctx ends, waiting for new tasks when it is
// empty. It returns ctx.Err().
func (e *Executor) Run(ctx context.Context) error {
	for {
		for e.RunOnce(ctx) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.queue.Ready():
		}
	}
}

// Deferred returns the tasks held back by the gate, in the order they were
// deferred.
func (e *Executor) Deferred() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Task, len(e.deferred))
	copy(out, e.deferred)
	return out
}

// Requeue moves every deferred task back onto the queue and returns how many
// were moved. Call it after safe mode is reset.
func (e *Executor) Requeue() int {
	e.mu.Lock()
	tasks := e.deferred
	e.deferred = nil
	e.mu.Unlock()

	for _, t := range tasks {
		e.queue.EnqueueTask(t)
	}
	return len(tasks)
}
