package eventlog

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendAssignsSequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Append(ctx, NewEntry(KindEvent, "DummyEvent", nil))
	require.NoError(t, err)
	second, err := store.Append(ctx, NewEntry(KindEvent, "OtherEvent", nil))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.False(t, first.Timestamp.IsZero())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := json.RawMessage(`{"a":1}`)
	_, err := store.Append(ctx, Entry{Kind: KindEvent, Name: "x", Data: data})
	require.NoError(t, err)

	data[2] = 'b'

	entries, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"a":1}`, string(entries[0].Data))
}

func TestMemoryStore_ListFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, e := range []Entry{
		NewEntry(KindEvent, "a", nil),
		NewEntry(KindQuarantine, "critical_module", nil),
		NewEntry(KindEvent, "b", nil),
		NewEntry(KindEvent, "a", nil),
	} {
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	events, err := store.List(ctx, Filter{Kind: KindEvent})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	named, err := store.List(ctx, Filter{Name: "a"})
	require.NoError(t, err)
	require.Len(t, named, 2)
	assert.Equal(t, int64(1), named[0].Seq)
	assert.Equal(t, int64(4), named[1].Seq)

	limited, err := store.List(ctx, Filter{AfterSeq: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(2), limited[0].Seq)
	assert.Equal(t, int64(3), limited[1].Seq)

	none, err := store.List(ctx, Filter{Kind: KindAudit})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.Append(ctx, NewEntry(KindEvent, "x", nil))
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.List(ctx, Filter{})
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Count(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := store.Append(ctx, NewEntry(KindEvent, "concurrent", j))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
}

func TestNewEntry_EncodesData(t *testing.T) {
	e := NewEntry(KindQuarantine, "critical_module", map[string]string{"module": "critical_module"})
	assert.JSONEq(t, `{"module":"critical_module"}`, string(e.Data))

	bad := NewEntry(KindEvent, "chan", make(chan int))
	assert.Contains(t, string(bad.Data), "unencodable payload")
}
