package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/flow"
)

// BenchmarkFlow_SendRecv measures one send and one receive on a buffered flow.
func BenchmarkFlow_SendRecv(b *testing.B) {
	tx, rx := flow.New(flow.DefaultCapacity, flow.WithLogger(discard))
	defer tx.Close()
	ctx := context.Background()
	msg := flow.EventMessage{Name: "tick"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tx.Send(ctx, msg)
		_, _ = rx.Recv(ctx)
	}
}

// BenchmarkFlow_Producers measures several producers feeding one consumer.
func BenchmarkFlow_Producers(b *testing.B) {
	tx, rx := flow.New(flow.DefaultCapacity, flow.WithLogger(discard))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := rx.Recv(ctx); err != nil {
				return
			}
		}
	}()

	b.RunParallel(func(pb *testing.PB) {
		h := tx.Clone()
		defer h.Close()
		msg := flow.TaskMessage{ID: "t", Priority: 1}
		for pb.Next() {
			_ = h.Send(ctx, msg)
		}
	})
	tx.Close()
	<-done
}
