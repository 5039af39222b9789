package benchmarks

import (
	"strconv"
	"testing"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/scheduler"
)

func taskID(i int) string {
	return "task-" + strconv.Itoa(i)
}

// BenchmarkEnqueue measures heap insertion with varied priorities.
func BenchmarkEnqueue(b *testing.B) {
	s := scheduler.New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Enqueue(taskID(i), "bench", i%7)
	}
}

// BenchmarkEnqueueNext_100 fills and drains a 100-task queue.
func BenchmarkEnqueueNext_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := scheduler.New()
		for j := 0; j < 100; j++ {
			s.Enqueue(taskID(j), "bench", j%5)
		}
		for {
			if _, ok := s.Next(); !ok {
				break
			}
		}
	}
}

// BenchmarkEnqueueNext_10000 fills and drains a 10000-task queue.
func BenchmarkEnqueueNext_10000(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := scheduler.New()
		for j := 0; j < 10000; j++ {
			s.Enqueue(taskID(j), "bench", j%5)
		}
		for {
			if _, ok := s.Next(); !ok {
				break
			}
		}
	}
}

// BenchmarkSynchronized_Parallel measures lock contention on the shared queue.
func BenchmarkSynchronized_Parallel(b *testing.B) {
	s := scheduler.NewSynchronized(observability.NoopRecorder{})
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.Enqueue(taskID(i), "bench", i%3)
			s.Next()
			i++
		}
	})
}
