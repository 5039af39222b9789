package pipe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecv_FIFO(t *testing.T) {
	tx, rx := New[int](4)
	ctx := context.Background()

	for i := range 4 {
		require.NoError(t, tx.Send(ctx, i))
	}
	for i := range 4 {
		v, err := rx.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestNew_DefaultCapacity(t *testing.T) {
	tx, _ := New[string](0)
	assert.Equal(t, DefaultCapacity, tx.Cap())
}

func TestSend_BlocksUntilSpace(t *testing.T) {
	tx, rx := New[int](1)
	ctx := context.Background()
	require.NoError(t, tx.Send(ctx, 1))

	sent := make(chan error, 1)
	go func() { sent <- tx.Send(ctx, 2) }()

	select {
	case <-sent:
		t.Fatal("send on a full pipe should block")
	case <-time.After(20 * time.Millisecond):
	}

	v, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send did not resume after space freed")
	}
}

func TestSend_ContextCanceledWhileFull(t *testing.T) {
	tx, _ := New[int](1)
	require.NoError(t, tx.Send(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tx.Send(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTrySend_Full(t *testing.T) {
	tx, _ := New[int](1)
	require.NoError(t, tx.TrySend(1))
	assert.ErrorIs(t, tx.TrySend(2), ErrFull)
}

func TestClose_LastSenderClosesPipe(t *testing.T) {
	tx, rx := New[string](4)
	ctx := context.Background()
	clone := tx.Clone()

	require.NoError(t, tx.Send(ctx, "a"))
	tx.Close()

	// Clone still holds the pipe open.
	require.NoError(t, clone.Send(ctx, "b"))
	clone.Close()

	v, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_Idempotent(t *testing.T) {
	tx, _ := New[int](1)
	clone := tx.Clone()
	tx.Close()
	tx.Close()

	// A double close on one handle must not release the clone's reference.
	assert.NoError(t, clone.Send(context.Background(), 1))
	assert.ErrorIs(t, tx.Send(context.Background(), 2), ErrClosed)
}

func TestReceiverClose_FailsSenders(t *testing.T) {
	tx, rx := New[int](1)
	require.NoError(t, tx.Send(context.Background(), 1))

	blocked := make(chan error, 1)
	go func() { blocked <- tx.Send(context.Background(), 2) }()
	time.Sleep(10 * time.Millisecond)

	rx.Close()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked sender was not released by receiver close")
	}
	assert.ErrorIs(t, tx.Send(context.Background(), 3), ErrClosed)
	assert.ErrorIs(t, tx.TrySend(3), ErrClosed)

	select {
	case <-tx.Done():
	default:
		t.Fatal("Done should be closed after shutdown")
	}
}

func TestTryRecv(t *testing.T) {
	tx, rx := New[int](2)

	_, ok, err := rx.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx.TrySend(7))
	v, ok, err := rx.TryRecv()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	tx.Close()
	_, ok, err = rx.TryRecv()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentProducers_PerProducerOrder(t *testing.T) {
	type msg struct {
		producer int
		seq      int
	}
	tx, rx := New[msg](8)
	ctx := context.Background()

	const producers, perProducer = 4, 100
	var wg sync.WaitGroup
	for p := range producers {
		handle := tx.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer handle.Close()
			for i := range perProducer {
				if err := handle.Send(ctx, msg{producer: p, seq: i}); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}()
	}
	tx.Close()

	last := make(map[int]int)
	for p := range producers {
		last[p] = -1
	}
	total := 0
	for {
		m, err := rx.Recv(ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		require.NoError(t, err)
		assert.Greater(t, m.seq, last[m.producer], "producer %d out of order", m.producer)
		last[m.producer] = m.seq
		total++
	}
	wg.Wait()
	assert.Equal(t, producers*perProducer, total)
}
