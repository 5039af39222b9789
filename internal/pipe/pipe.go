// Package pipe provides a bounded multi-producer, single-consumer channel
// with clonable sender handles and explicit closed/full errors.
//
// Closing rules:
//   - The pipe closes when the last Sender handle is closed, or when the
//     Receiver is closed.
//   - Messages accepted before closure stay readable until drained.
//   - Sending on a closed pipe returns ErrClosed; it never panics.
//
// Backpressure: Send blocks while the buffer is full until space frees, the
// context ends, or the pipe closes. TrySend fails fast with ErrFull.
package pipe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Sentinel errors returned by pipe operations.
var (
	// ErrClosed indicates the pipe has no senders or no receiver left.
	ErrClosed = errors.New("pipe closed")

	// ErrFull indicates TrySend found no free buffer slot.
	ErrFull = errors.New("pipe full")
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 64

type pipe[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once

	// mu orders in-flight sends against close(ch): senders hold the read
	// side while touching ch, shutdown takes the write side before closing.
	mu     sync.RWMutex
	closed bool

	refs atomic.Int64
}

// New creates a pipe and returns its first sender handle and the receiver.
func New[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &pipe[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
	p.refs.Store(1)
	return &Sender[T]{p: p}, &Receiver[T]{p: p}
}

func (p *pipe[T]) shutdown() {
	p.once.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.closed = true
		close(p.ch)
		p.mu.Unlock()
	})
}

// Sender is one producer handle. Handles are safe for concurrent use; use
// Clone to hand a producer its own handle and Close to release it.
type Sender[T any] struct {
	p        *pipe[T]
	released atomic.Bool
}

// Send enqueues v, blocking while the pipe is full.
// Returns ErrClosed if the pipe or this handle is closed, or ctx.Err() if the
// context ends first.
func (s *Sender[T]) Send(ctx context.Context, v T) error {
	if s.released.Load() {
		return ErrClosed
	}
	p := s.p
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.ch <- v:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues v without blocking. Returns ErrFull when no slot is free.
func (s *Sender[T]) TrySend(v T) error {
	if s.released.Load() {
		return ErrClosed
	}
	p := s.p
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case <-p.done:
		return ErrClosed
	case p.ch <- v:
		return nil
	default:
		return ErrFull
	}
}

// Clone returns a new handle on the same pipe. The pipe stays open until
// every handle has been closed.
func (s *Sender[T]) Clone() *Sender[T] {
	s.p.refs.Add(1)
	return &Sender[T]{p: s.p}
}

// Close releases this handle. Closing a handle twice is a no-op.
func (s *Sender[T]) Close() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	if s.p.refs.Add(-1) == 0 {
		s.p.shutdown()
	}
}

// Done is closed once the pipe has shut down.
func (s *Sender[T]) Done() <-chan struct{} {
	return s.p.done
}

// Len returns the number of buffered messages.
func (s *Sender[T]) Len() int {
	return len(s.p.ch)
}

// Cap returns the buffer capacity.
func (s *Sender[T]) Cap() int {
	return cap(s.p.ch)
}

// Receiver is the single consumer end of a pipe.
type Receiver[T any] struct {
	p *pipe[T]
}

// Recv returns the next message. It returns ErrClosed once the pipe is
// closed and drained, or ctx.Err() if the context ends first.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	select {
	case v, ok := <-r.p.ch:
		if !ok {
			var zero T
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryRecv returns the next buffered message without blocking.
// The boolean is false when nothing is buffered; err is ErrClosed when the
// pipe is closed and drained.
func (r *Receiver[T]) TryRecv() (T, bool, error) {
	var zero T
	select {
	case v, ok := <-r.p.ch:
		if !ok {
			return zero, false, ErrClosed
		}
		return v, true, nil
	default:
		return zero, false, nil
	}
}

// Chan exposes the underlying channel for use in select statements.
// It is closed when the pipe shuts down.
func (r *Receiver[T]) Chan() <-chan T {
	return r.p.ch
}

// Close shuts the pipe from the consumer side. Pending and future sends
// fail with ErrClosed. Messages already buffered can still be drained.
func (r *Receiver[T]) Close() {
	r.p.shutdown()
}

// Len returns the number of buffered messages.
func (r *Receiver[T]) Len() int {
	return len(r.p.ch)
}
