package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/spinalcord/internal/pipe"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

// Errors returned by the quarantine channels.
var (
	// ErrClosed indicates the intake or notification channel has closed.
	ErrClosed = pipe.ErrClosed

	// ErrCellRunning is returned when Run is called on a running cell.
	ErrCellRunning = errors.New("quarantine cell already running")
)

// Notification is the record pushed to developers for each fault report.
type Notification struct {
	ID          string    `json:"id"`
	Module      string    `json:"module"`
	Description string    `json:"description"`
	Tripped     bool      `json:"tripped"` // this report moved the system into safe mode
	At          time.Time `json:"at"`
}

// CellConfig configures a quarantine Cell.
type CellConfig struct {
	// IntakeCapacity bounds pending fault reports.
	// Default: 64
	IntakeCapacity int

	// NotifyCapacity bounds pending developer notifications. When full,
	// further notifications are dropped and counted rather than stalling
	// fault processing.
	// Default: 64
	NotifyCapacity int

	Logger   *slog.Logger
	Recorder observability.Recorder
	Spans    observability.SpanManager

	// Journal, when set, receives one entry per processed report.
	Journal eventlog.Appender
}

// DefaultCellConfig provides reasonable defaults.
var DefaultCellConfig = CellConfig{
	IntakeCapacity: 64,
	NotifyCapacity: 64,
}

// Cell listens for fault reports, trips safe mode, and notifies developers.
type Cell struct {
	controller *Controller
	config     CellConfig

	intake *pipe.Receiver[string]
	notify *pipe.Sender[Notification]

	running atomic.Bool
	done    chan struct{}
	errMu   sync.Mutex
	err     error
}

// NewCell creates a quarantine cell bound to controller. It returns the cell,
// the first intake handle for fault reporters, and the receiving end of the
// developer notification channel.
func NewCell(controller *Controller, config CellConfig) (*Cell, *IntakeSender, *NotificationReceiver) {
	if config.IntakeCapacity <= 0 {
		config.IntakeCapacity = DefaultCellConfig.IntakeCapacity
	}
	if config.NotifyCapacity <= 0 {
		config.NotifyCapacity = DefaultCellConfig.NotifyCapacity
	}
	config.Logger = observability.OrDefault(config.Logger)
	config.Recorder = observability.OrNoop(config.Recorder)
	if config.Spans == nil {
		config.Spans = observability.NoopSpanManager{}
	}

	intakeTx, intakeRx := pipe.New[string](config.IntakeCapacity)
	notifyTx, notifyRx := pipe.New[Notification](config.NotifyCapacity)

	c := &Cell{
		controller: controller,
		config:     config,
		intake:     intakeRx,
		notify:     notifyTx,
		done:       make(chan struct{}),
	}
	return c, &IntakeSender{s: intakeTx}, &NotificationReceiver{r: notifyRx}
}

// Run processes fault reports until every intake handle is closed and the
// intake is drained (returning nil) or ctx ends (returning ctx.Err()).
// The notification channel is closed when Run returns.
func (c *Cell) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrCellRunning
	}
	return c.loop(ctx)
}

func (c *Cell) loop(ctx context.Context) error {
	defer c.notify.Close()

	for {
		module, err := c.intake.Recv(ctx)
		if errors.Is(err, pipe.ErrClosed) {
			c.config.Logger.Debug("quarantine intake closed")
			return nil
		}
		if err != nil {
			c.intake.Close()
			return err
		}
		c.handle(ctx, module)
	}
}

// Start runs the cell in a new goroutine. Use Wait for its result.
// It returns ErrCellRunning, without starting anything, if the cell is
// already running.
func (c *Cell) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrCellRunning
	}
	go func() {
		err := c.loop(ctx)
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
	}()
	return nil
}

// Wait blocks until a cell started with Start has stopped and returns the
// error from Run.
func (c *Cell) Wait() error {
	<-c.done
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Cell) handle(ctx context.Context, module string) {
	ctx, span := c.config.Spans.StartQuarantineSpan(ctx, module)

	description := fmt.Sprintf("module %s quarantined", module)
	tripped := c.controller.trip(ctx, description)
	observability.LogQuarantine(c.config.Logger, module, tripped)

	n := Notification{
		ID:          uuid.New().String(),
		Module:      module,
		Description: description,
		Tripped:     tripped,
		At:          time.Now().UTC(),
	}
	notifyErr := c.notify.TrySend(n)
	if notifyErr != nil {
		observability.LogNotifyFailure(c.config.Logger, module, notifyErr)
	}
	c.config.Recorder.RecordQuarantine(ctx, module, notifyErr == nil)

	if c.config.Journal != nil {
		_, err := c.config.Journal.Append(ctx, eventlog.NewEntry(eventlog.KindQuarantine, module, n))
		c.config.Recorder.RecordEventLogAppend(ctx, err)
		if err != nil {
			c.config.Logger.Error("failed to journal quarantine report",
				slog.String("module", module),
				slog.String("error", err.Error()),
			)
		}
	}

	c.config.Spans.EndSpanWithError(span, notifyErr)
}

// IntakeSender submits fault reports to a Cell.
type IntakeSender struct {
	s *pipe.Sender[string]
}

// Report submits a faulty module identifier, blocking while the intake is
// full. It returns ErrClosed once the cell has stopped.
func (i *IntakeSender) Report(ctx context.Context, module string) error {
	return i.s.Send(ctx, module)
}

// TryReport submits without blocking; it returns pipe.ErrFull when the
// intake is full.
func (i *IntakeSender) TryReport(module string) error {
	return i.s.TrySend(module)
}

// Clone returns another handle on the same intake.
func (i *IntakeSender) Clone() *IntakeSender {
	return &IntakeSender{s: i.s.Clone()}
}

// Close releases this handle. The cell's Run returns once all handles are
// closed and pending reports are processed.
func (i *IntakeSender) Close() {
	i.s.Close()
}

// NotificationReceiver is the developer end of the notification channel.
type NotificationReceiver struct {
	r *pipe.Receiver[Notification]
}

// Recv blocks for the next notification. It returns ErrClosed once the cell
// has stopped and all notifications were read.
func (n *NotificationReceiver) Recv(ctx context.Context) (Notification, error) {
	return n.r.Recv(ctx)
}

// TryRecv returns a pending notification without blocking.
func (n *NotificationReceiver) TryRecv() (Notification, bool, error) {
	return n.r.TryRecv()
}

// Chan exposes the underlying channel for select statements.
func (n *NotificationReceiver) Chan() <-chan Notification {
	return n.r.Chan()
}

// Close stops accepting notifications. Later reports are still processed,
// but their notifications are counted as failed.
func (n *NotificationReceiver) Close() {
	n.r.Close()
}

// Len returns the number of pending notifications.
func (n *NotificationReceiver) Len() int {
	return n.r.Len()
}
