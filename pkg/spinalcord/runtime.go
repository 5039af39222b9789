package spinalcord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/config"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/event"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/flow"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/scheduler"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/schema"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/security"
)

// Sentinel errors for the runtime lifecycle.
var (
	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("runtime already running")

	// ErrRuntimeClosed indicates the runtime was closed.
	ErrRuntimeClosed = errors.New("runtime closed")
)

// Runtime wires the coordination primitives together.
type Runtime struct {
	settings config.Settings
	logger   *slog.Logger
	recorder observability.Recorder

	bus      *event.Bus
	gate     *schema.Gate
	schemas  *schema.Registry
	store    eventlog.Store
	safety   *security.Controller
	cell     *security.Cell
	intake   *security.IntakeSender
	notes    *security.NotificationReceiver
	flowTx   *flow.Sender
	flowRx   *flow.Receiver
	queue    *scheduler.Synchronized
	executor *scheduler.Executor
	checker  *security.IntegrityChecker

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// New builds a runtime from settings. It does not start any goroutines.
func New(settings config.Settings, opts ...Option) (*Runtime, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	o := &runtimeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	logger := observability.OrDefault(o.logger)
	recorder := o.recorder
	if recorder == nil {
		recorder = observability.NewMetricsRecorder()
	}
	spans := o.spans
	if spans == nil {
		spans = observability.NewSpanManager()
	}

	store := o.store
	if store == nil {
		var err error
		store, err = openStore(settings.EventLogPath)
		if err != nil {
			return nil, err
		}
	}

	authorizer := o.authorizer
	if authorizer == nil && settings.ResetToken != "" {
		authorizer = security.NewTokenAuthorizer(settings.ResetToken)
	}

	r := &Runtime{
		settings: settings,
		logger:   logger,
		recorder: recorder,
		store:    store,
		schemas:  schema.NewRegistry(),
	}

	if settings.SchemaDir != "" {
		n, err := r.schemas.LoadDir(settings.SchemaDir)
		if err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("loaded event schemas", slog.Int("count", n))
	}

	r.bus = event.NewBus(
		event.WithLogger(logger),
		event.WithRecorder(recorder),
		event.WithSpans(spans),
		event.WithLog(store),
	)
	r.gate = schema.NewGate(r.bus, r.schemas, logger)

	r.safety = security.NewController(
		security.WithAuthorizer(authorizer),
		security.WithAuditLog(store),
		security.WithControllerLogger(logger),
		security.WithControllerRecorder(recorder),
	)
	r.cell, r.intake, r.notes = security.NewCell(r.safety, security.CellConfig{
		IntakeCapacity: settings.IntakeCapacity,
		NotifyCapacity: settings.NotifyCapacity,
		Logger:         logger,
		Recorder:       recorder,
		Spans:          spans,
		Journal:        store,
	})

	r.flowTx, r.flowRx = flow.New(settings.FlowCapacity,
		flow.WithLogger(logger),
		flow.WithRecorder(recorder),
	)
	r.bus.Subscribe(flow.NewSubscriber(r.flowTx, flow.WithSendTimeout(settings.FlowSendTimeout)))

	run := o.taskFunc
	if run == nil {
		run = func(_ context.Context, t scheduler.Task) error {
			logger.Info("task executed", slog.String("task_id", t.ID), slog.Int("priority", t.Priority))
			return nil
		}
	}
	r.queue = scheduler.NewSynchronized(recorder)
	r.executor = scheduler.NewExecutor(r.queue, run, scheduler.ExecutorConfig{
		Gate:     scheduler.GateFunc(r.allowTask),
		Logger:   logger,
		Recorder: recorder,
	})

	if settings.IntegrityManifest != "" {
		checker, err := security.NewIntegrityChecker(r.intake, security.IntegrityConfig{
			ManifestPath: settings.IntegrityManifest,
			BaseDir:      settings.IntegrityBaseDir,
			Interval:     settings.IntegrityInterval,
			Logger:       logger,
			Recorder:     recorder,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		r.checker = checker
	}

	return r, nil
}

func openStore(path string) (eventlog.Store, error) {
	if path == "" {
		return eventlog.NewMemoryStore(), nil
	}
	store, err := eventlog.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return store, nil
}

func (r *Runtime) allowTask(t scheduler.Task) error {
	if !t.Risky {
		return r.safety.Allow(security.RiskSafe)
	}
	return r.safety.Allow(security.RiskRisky)
}

// Bus returns the event bus.
func (r *Runtime) Bus() *event.Bus { return r.bus }

// Schemas returns the payload schema registry used by Publish.
func (r *Runtime) Schemas() *schema.Registry { return r.schemas }

// Safety returns the safe-mode controller.
func (r *Runtime) Safety() *security.Controller { return r.safety }

// Notifications returns the developer notification channel.
func (r *Runtime) Notifications() *security.NotificationReceiver { return r.notes }

// Scheduler returns the shared task queue.
func (r *Runtime) Scheduler() *scheduler.Synchronized { return r.queue }

// Executor returns the task executor.
func (r *Runtime) Executor() *scheduler.Executor { return r.executor }

// EventLog returns the event log store.
func (r *Runtime) EventLog() eventlog.Store { return r.store }

// Flow returns a new sender handle on the flow channel. The caller must
// Close it.
func (r *Runtime) Flow() *flow.Sender { return r.flowTx.Clone() }

// Publish validates evt against its schema, if one is registered, and
// publishes it on the bus.
func (r *Runtime) Publish(ctx context.Context, evt event.Event) error {
	if r.closed.Load() {
		return ErrRuntimeClosed
	}
	return r.gate.Publish(ctx, evt)
}

// ReportFault submits a faulty module to the quarantine cell.
func (r *Runtime) ReportFault(ctx context.Context, module string) error {
	if err := r.intake.Report(ctx, module); err != nil {
		return fmt.Errorf("report fault %s: %w", module, err)
	}
	return nil
}

// Reset attempts to leave safe mode. On success, tasks deferred while in safe
// mode are put back on the queue.
func (r *Runtime) Reset(ctx context.Context, req security.ResetRequest) error {
	if err := r.safety.Reset(ctx, req); err != nil {
		return err
	}
	if n := r.executor.Requeue(); n > 0 {
		r.logger.Info("requeued deferred tasks", slog.Int("count", n))
	}
	return nil
}

// Run starts the quarantine loop, the flow pump, the task executor, and the
// integrity watcher (when configured), and blocks until ctx is cancelled, a
// ControlShutdown message is received, or one of them fails.
// Cancellation is a clean stop and returns nil.
func (r *Runtime) Run(ctx context.Context) error {
	if r.closed.Load() {
		return ErrRuntimeClosed
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.cell.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return r.pump(gctx)
	})
	g.Go(func() error {
		return r.executor.Run(gctx)
	})
	if r.checker != nil {
		g.Go(func() error {
			return r.checker.Watch(gctx)
		})
	}

	r.logger.Info("spinalcord running",
		slog.Int("flow_capacity", r.settings.FlowCapacity),
		slog.Bool("integrity", r.checker != nil),
	)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	r.logger.Info("spinalcord stopped")
	return err
}

// pump consumes the flow channel until it closes or a shutdown is requested.
// The channel is closed when pump returns so later sends fail with
// flow.ErrClosed.
func (r *Runtime) pump(ctx context.Context) error {
	defer r.flowRx.Close()
	for {
		msg, err := r.flowRx.Recv(ctx)
		if errors.Is(err, flow.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		switch m := msg.(type) {
		case flow.TaskMessage:
			r.queue.EnqueueTask(scheduler.Task{
				ID:          m.ID,
				Description: m.Description,
				Priority:    m.Priority,
				Risky:       m.Risky,
			})
		case flow.EventMessage:
			r.logger.Debug("flow event", slog.String("event", m.Name))
		case flow.DataMessage:
			r.logger.Debug("flow data", slog.String("name", m.Name), slog.Int("bytes", len(m.Data)))
		case flow.ControlMessage:
			switch m.Signal {
			case flow.ControlShutdown:
				r.logger.Info("shutdown requested on flow channel")
				return nil
			case flow.ControlFlush:
				for r.executor.RunOnce(ctx) {
				}
			default:
				r.logger.Warn("unknown control signal", slog.String("signal", string(m.Signal)))
			}
		default:
			r.logger.Warn("unhandled flow message", slog.String("kind", string(msg.Kind())))
		}
	}
}

// Close releases the runtime's channels and closes the event log. Call it
// after Run has returned. Closing twice is safe.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.flowTx.Close()
		r.flowRx.Close()
		r.intake.Close()
		err = r.store.Close()
	})
	return err
}
