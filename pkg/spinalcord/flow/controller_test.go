package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

func TestFlow_SendRecvOrder(t *testing.T) {
	tx, rx := New(4)
	ctx := context.Background()

	msgs := []Message{
		EventMessage{Name: "A"},
		TaskMessage{ID: "t1", Description: "repair", Priority: 3},
		DataMessage{Name: "blob", Data: []byte{1, 2}},
		ControlMessage{Signal: ControlFlush},
	}
	for _, m := range msgs {
		require.NoError(t, tx.Send(ctx, m))
	}

	for _, want := range msgs {
		got, err := rx.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFlow_Kinds(t *testing.T) {
	assert.Equal(t, KindEvent, EventMessage{}.Kind())
	assert.Equal(t, KindTask, TaskMessage{}.Kind())
	assert.Equal(t, KindData, DataMessage{}.Kind())
	assert.Equal(t, KindControl, ControlMessage{}.Kind())
}

func TestFlow_DefaultCapacity(t *testing.T) {
	tx, _ := New(0)
	assert.Equal(t, DefaultCapacity, tx.Cap())
}

func TestFlow_BackpressureBlocksUntilSpace(t *testing.T) {
	tx, rx := New(1)
	ctx := context.Background()

	require.NoError(t, tx.Send(ctx, EventMessage{Name: "first"}))

	sent := make(chan error, 1)
	go func() {
		sent <- tx.Send(ctx, EventMessage{Name: "second"})
	}()

	select {
	case <-sent:
		t.Fatal("send should block while the channel is full")
	case <-time.After(50 * time.Millisecond):
	}

	got, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventMessage{Name: "first"}, got)

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked send was not released")
	}

	got, err = rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventMessage{Name: "second"}, got)
}

func TestFlow_SendHonorsContext(t *testing.T) {
	tx, _ := New(1)
	require.NoError(t, tx.Send(context.Background(), EventMessage{Name: "fill"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tx.Send(ctx, EventMessage{Name: "late"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlow_TrySendFull(t *testing.T) {
	tx, _ := New(1)
	require.NoError(t, tx.TrySend(EventMessage{Name: "fill"}))
	assert.ErrorIs(t, tx.TrySend(EventMessage{Name: "overflow"}), ErrFull)
}

func TestFlow_ClosedAfterLastSender(t *testing.T) {
	tx, rx := New(4)
	ctx := context.Background()
	other := tx.Clone()

	require.NoError(t, tx.Send(ctx, EventMessage{Name: "kept"}))
	tx.Close()

	require.NoError(t, other.Send(ctx, EventMessage{Name: "still open"}))
	other.Close()

	_, err := rx.Recv(ctx)
	require.NoError(t, err)
	_, err = rx.Recv(ctx)
	require.NoError(t, err)

	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFlow_SendAfterReceiverClose(t *testing.T) {
	tx, rx := New(4)
	rx.Close()

	err := tx.Send(context.Background(), EventMessage{Name: "x"})
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-tx.Done():
	default:
		t.Fatal("Done should be closed after receiver close")
	}
}

func TestFlow_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	tx, rx := New(8)
	ctx := context.Background()

	const producers, perProducer = 4, 100
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		s := tx.Clone()
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			defer s.Close()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, s.Send(ctx, TaskMessage{ID: string(rune('a' + p)), Priority: i}))
			}
		}(p)
	}
	tx.Close()

	last := map[string]int{}
	total := 0
	for {
		msg, err := rx.Recv(ctx)
		if err != nil {
			require.ErrorIs(t, err, ErrClosed)
			break
		}
		task := msg.(TaskMessage)
		if prev, ok := last[task.ID]; ok {
			assert.Greater(t, task.Priority, prev)
		}
		last[task.ID] = task.Priority
		total++
	}
	wg.Wait()
	assert.Equal(t, producers*perProducer, total)
}

func TestFlow_RecordsSends(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := observability.NewPrometheusRecorder(reg)
	require.NoError(t, err)

	tx, rx := New(1, WithRecorder(rec))
	require.NoError(t, tx.Send(context.Background(), EventMessage{Name: "ok"}))
	require.ErrorIs(t, tx.TrySend(EventMessage{Name: "full"}), ErrFull)
	rx.Close()

	families, err := reg.Gather()
	require.NoError(t, err)

	outcomes := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "spinalcord_flow_sends_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" {
					outcomes[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, float64(1), outcomes["ok"])
	assert.Equal(t, float64(1), outcomes["error"])
}
