// Package scheduler orders pending tasks by priority.
//
// Higher priorities come out first; tasks of equal priority come out in the
// order they were enqueued. A Scheduler is not safe for concurrent use: wrap
// it in Synchronized when several goroutines share it.
package scheduler

import (
	"container/heap"
	"time"
)

// Task is a unit of pending work.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`

	// Risky tasks are held back by the Executor while safe mode is active.
	Risky bool `json:"risky,omitempty"`

	// EnqueuedAt is set by the scheduler.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type item struct {
	task Task
	seq  uint64
}

type taskHeap []item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = item{}
	*h = old[:n-1]
	return it
}

// Scheduler is a max-priority queue of tasks with FIFO tie-breaking.
// The zero value is ready to use.
type Scheduler struct {
	heap taskHeap
	seq  uint64
	now  func() time.Time
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Enqueue adds a task. Duplicate IDs are allowed and treated as distinct
// entries.
func (s *Scheduler) Enqueue(id, description string, priority int) {
	s.EnqueueTask(Task{ID: id, Description: description, Priority: priority})
}

// EnqueueTask adds t, stamping its EnqueuedAt.
func (s *Scheduler) EnqueueTask(t Task) {
	if s.now == nil {
		s.now = time.Now
	}
	t.EnqueuedAt = s.now()
	s.seq++
	heap.Push(&s.heap, item{task: t, seq: s.seq})
}

// Next removes and returns the highest-priority task. The boolean is false
// when the scheduler is empty.
func (s *Scheduler) Next() (Task, bool) {
	if len(s.heap) == 0 {
		return Task{}, false
	}
	it := heap.Pop(&s.heap).(item)
	return it.task, true
}

// Peek returns the task Next would return without removing it.
func (s *Scheduler) Peek() (Task, bool) {
	if len(s.heap) == 0 {
		return Task{}, false
	}
	return s.heap[0].task, true
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	return len(s.heap)
}
