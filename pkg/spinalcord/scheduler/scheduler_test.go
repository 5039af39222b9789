package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(s *Scheduler) []string {
	var ids []string
	for {
		t, ok := s.Next()
		if !ok {
			return ids
		}
		ids = append(ids, t.ID)
	}
}

func TestScheduler_PriorityOrder(t *testing.T) {
	s := New()
	s.Enqueue("a", "low", 1)
	s.Enqueue("b", "high", 3)
	s.Enqueue("c", "mid", 2)

	assert.Equal(t, []string{"b", "c", "a"}, drain(s))
}

func TestScheduler_FIFOOnTies(t *testing.T) {
	s := New()
	s.Enqueue("first", "", 5)
	s.Enqueue("low", "", 1)
	s.Enqueue("second", "", 5)
	s.Enqueue("third", "", 5)

	assert.Equal(t, []string{"first", "second", "third", "low"}, drain(s))
}

func TestScheduler_Empty(t *testing.T) {
	s := New()
	_, ok := s.Next()
	assert.False(t, ok)
	_, ok = s.Peek()
	assert.False(t, ok)
	assert.Zero(t, s.Len())

	var zero Scheduler
	zero.Enqueue("x", "", 0)
	task, ok := zero.Next()
	require.True(t, ok)
	assert.Equal(t, "x", task.ID)
}

func TestScheduler_DuplicatesAreDistinct(t *testing.T) {
	s := New()
	s.Enqueue("dup", "one", 1)
	s.Enqueue("dup", "two", 1)

	require.Equal(t, 2, s.Len())
	first, _ := s.Next()
	second, _ := s.Next()
	assert.Equal(t, "one", first.Description)
	assert.Equal(t, "two", second.Description)
}

func TestScheduler_NegativeAndExtremePriorities(t *testing.T) {
	s := New()
	s.Enqueue("neg", "", -10)
	s.Enqueue("zero", "", 0)
	s.Enqueue("max", "", int(^uint(0)>>1))
	s.Enqueue("min", "", -int(^uint(0)>>1)-1)

	assert.Equal(t, []string{"max", "zero", "neg", "min"}, drain(s))
}

func TestScheduler_Peek(t *testing.T) {
	s := New()
	s.Enqueue("a", "", 1)
	s.Enqueue("b", "", 2)

	top, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, "b", top.ID)
	assert.Equal(t, 2, s.Len(), "Peek must not remove")
}

func TestScheduler_InterleavedOperations(t *testing.T) {
	s := New()
	s.Enqueue("a", "", 2)
	s.Enqueue("b", "", 2)

	first, _ := s.Next()
	assert.Equal(t, "a", first.ID)

	s.Enqueue("c", "", 2)
	s.Enqueue("d", "", 3)

	assert.Equal(t, []string{"d", "b", "c"}, drain(s))
}

func TestScheduler_StampsEnqueueTime(t *testing.T) {
	s := New()
	s.EnqueueTask(Task{ID: "t", Priority: 1, Risky: true})

	task, ok := s.Next()
	require.True(t, ok)
	assert.False(t, task.EnqueuedAt.IsZero())
	assert.True(t, task.Risky)
}

func TestScheduler_LargeVolumeOrdering(t *testing.T) {
	s := New()
	for i := 0; i < 1000; i++ {
		s.EnqueueTask(Task{ID: "t", Priority: i % 7})
	}

	prev := 7
	for {
		task, ok := s.Next()
		if !ok {
			break
		}
		assert.LessOrEqual(t, task.Priority, prev)
		prev = task.Priority
	}
}
