package flow

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/spinalcord/internal/pipe"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

// DefaultCapacity is the buffer size used when New is given a non-positive
// capacity.
const DefaultCapacity = 256

// Errors returned by Sender and Receiver.
var (
	// ErrClosed indicates every sender or the receiver has closed.
	ErrClosed = pipe.ErrClosed

	// ErrFull indicates TrySend found the buffer full.
	ErrFull = pipe.ErrFull
)

type options struct {
	logger   *slog.Logger
	recorder observability.Recorder
}

// Option configures a flow channel.
type Option func(*options)

// WithLogger sets the logger used for send failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = observability.OrDefault(logger)
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r observability.Recorder) Option {
	return func(o *options) {
		o.recorder = observability.OrNoop(r)
	}
}

// New creates a bounded flow channel and returns its first sender handle and
// the receiver.
func New(capacity int, opts ...Option) (*Sender, *Receiver) {
	o := &options{
		logger:   slog.Default(),
		recorder: observability.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	s, r := pipe.New[Message](capacity)
	return &Sender{s: s, opts: o}, &Receiver{r: r}
}

// Sender is a producer handle. Handles are cheap; Clone one per producer.
type Sender struct {
	s    *pipe.Sender[Message]
	opts *options
}

// Send enqueues msg, blocking while the channel is full.
// It returns ctx.Err() if the context ends first and ErrClosed if the
// channel has closed.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	err := s.s.Send(ctx, msg)
	s.record(ctx, msg, err)
	return err
}

// TrySend enqueues msg without blocking. It returns ErrFull when the buffer
// has no room.
func (s *Sender) TrySend(msg Message) error {
	err := s.s.TrySend(msg)
	s.record(context.Background(), msg, err)
	return err
}

func (s *Sender) record(ctx context.Context, msg Message, err error) {
	kind := "unknown"
	if msg != nil {
		kind = string(msg.Kind())
	}
	s.opts.recorder.RecordFlowSend(ctx, kind, err)
	if err != nil {
		s.opts.logger.Debug("flow send failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

// Clone returns another handle on the same channel.
func (s *Sender) Clone() *Sender {
	return &Sender{s: s.s.Clone(), opts: s.opts}
}

// Close releases this handle. The channel closes when the last handle is
// released; messages already sent remain readable.
func (s *Sender) Close() {
	s.s.Close()
}

// Done is closed once the channel has shut down.
func (s *Sender) Done() <-chan struct{} {
	return s.s.Done()
}

// Len returns the number of buffered messages.
func (s *Sender) Len() int {
	return s.s.Len()
}

// Cap returns the buffer capacity.
func (s *Sender) Cap() int {
	return s.s.Cap()
}

// Receiver is the single consumer end.
type Receiver struct {
	r *pipe.Receiver[Message]
}

// Recv returns the next message in FIFO order per producer.
// It returns ErrClosed once the channel is closed and drained.
func (r *Receiver) Recv(ctx context.Context) (Message, error) {
	return r.r.Recv(ctx)
}

// TryRecv returns the next buffered message without blocking.
func (r *Receiver) TryRecv() (Message, bool, error) {
	return r.r.TryRecv()
}

// Chan exposes the underlying channel for select statements.
func (r *Receiver) Chan() <-chan Message {
	return r.r.Chan()
}

// Close shuts the channel from the consumer side. Subsequent sends fail with
// ErrClosed.
func (r *Receiver) Close() {
	r.r.Close()
}

// Len returns the number of buffered messages.
func (r *Receiver) Len() int {
	return r.r.Len()
}
