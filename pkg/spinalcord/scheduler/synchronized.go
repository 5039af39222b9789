package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

// Synchronized guards a Scheduler with a mutex and signals waiters when
// tasks arrive.
type Synchronized struct {
	mu    sync.Mutex
	s     *Scheduler
	ready chan struct{}

	recorder observability.Recorder
}

// NewSynchronized creates an empty synchronized scheduler. The recorder may
// be nil.
func NewSynchronized(recorder observability.Recorder) *Synchronized {
	return &Synchronized{
		s:        New(),
		ready:    make(chan struct{}, 1),
		recorder: observability.OrNoop(recorder),
	}
}

// Enqueue adds a task.
func (q *Synchronized) Enqueue(id, description string, priority int) {
	q.EnqueueTask(Task{ID: id, Description: description, Priority: priority})
}

// EnqueueTask adds t.
func (q *Synchronized) EnqueueTask(t Task) {
	q.mu.Lock()
	q.s.EnqueueTask(t)
	q.mu.Unlock()
	q.recorder.RecordTaskEnqueued(context.Background(), t.Priority)

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Next removes and returns the highest-priority task. Every task handed out
// records one dequeue.
func (q *Synchronized) Next() (Task, bool) {
	q.mu.Lock()
	t, ok := q.s.Next()
	q.mu.Unlock()
	if ok {
		q.recorder.RecordTaskDequeued(context.Background(), t.Priority, time.Since(t.EnqueuedAt))
	}
	return t, ok
}

// Peek returns the next task without removing it.
func (q *Synchronized) Peek() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.s.Peek()
}

// Len returns the number of pending tasks.
func (q *Synchronized) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.s.Len()
}

// Ready receives a value after one or more enqueues. It is a hint: a
// receiver must still call Next and handle an empty result.
func (q *Synchronized) Ready() <-chan struct{} {
	return q.ready
}
