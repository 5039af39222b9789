package security

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
)

func TestCell_QuarantineTripsAndNotifies(t *testing.T) {
	ctrl := NewController()
	cell, intake, notes := NewCell(ctrl, CellConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cell.Start(ctx)

	require.NoError(t, intake.Report(ctx, "critical_module"))

	require.Eventually(t, ctrl.IsSafeMode, time.Second, 5*time.Millisecond)

	n, err := notes.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "module critical_module quarantined", n.Description)
	assert.Equal(t, "critical_module", n.Module)
	assert.True(t, n.Tripped)
	assert.NotEmpty(t, n.ID)

	intake.Close()
	assert.NoError(t, cell.Wait())
}

func TestCell_OneNotificationPerReport(t *testing.T) {
	ctrl := NewController()
	cell, intake, notes := NewCell(ctrl, CellConfig{})

	ctx := context.Background()
	cell.Start(ctx)

	for _, m := range []string{"a", "b", "a"} {
		require.NoError(t, intake.Report(ctx, m))
	}
	intake.Close()
	require.NoError(t, cell.Wait())

	var got []Notification
	for {
		n, err := notes.Recv(ctx)
		if err != nil {
			require.ErrorIs(t, err, ErrClosed)
			break
		}
		got = append(got, n)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Module)
	assert.Equal(t, "b", got[1].Module)
	assert.Equal(t, "a", got[2].Module)
	assert.True(t, got[0].Tripped)
	assert.False(t, got[1].Tripped)
	assert.False(t, got[2].Tripped)
}

func TestCell_DrainsPendingReportsOnClose(t *testing.T) {
	ctrl := NewController()
	cell, intake, notes := NewCell(ctrl, CellConfig{IntakeCapacity: 8, NotifyCapacity: 8})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, intake.Report(ctx, "pending"))
	}
	intake.Close()

	require.NoError(t, cell.Run(ctx))
	assert.True(t, ctrl.IsSafeMode())
	assert.Equal(t, 5, notes.Len())
}

func TestCell_FullNotificationsDoNotStall(t *testing.T) {
	ctrl := NewController()
	cell, intake, notes := NewCell(ctrl, CellConfig{NotifyCapacity: 1})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, intake.Report(ctx, "noisy"))
	}
	intake.Close()

	done := make(chan error, 1)
	go func() { done <- cell.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cell stalled on a full notification channel")
	}
	assert.Equal(t, 1, notes.Len())
}

func TestCell_ClosedDeveloperChannel(t *testing.T) {
	ctrl := NewController()
	cell, intake, notes := NewCell(ctrl, CellConfig{})
	notes.Close()

	ctx := context.Background()
	require.NoError(t, intake.Report(ctx, "orphan"))
	intake.Close()

	require.NoError(t, cell.Run(ctx))
	assert.True(t, ctrl.IsSafeMode(), "safe mode is entered even if nobody listens")
}

func TestCell_ContextCancel(t *testing.T) {
	cell, intake, notes := NewCell(NewController(), CellConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cell.Start(ctx)
	cancel()

	assert.ErrorIs(t, cell.Wait(), context.Canceled)
	assert.ErrorIs(t, intake.Report(context.Background(), "late"), ErrClosed)

	_, err := notes.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCell_RunTwice(t *testing.T) {
	cell, intake, _ := NewCell(NewController(), CellConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cell.Start(ctx)
	require.Eventually(t, cell.running.Load, time.Second, time.Millisecond)
	assert.ErrorIs(t, cell.Run(ctx), ErrCellRunning)

	intake.Close()
	assert.NoError(t, cell.Wait())
}

func TestCell_StartTwice(t *testing.T) {
	ctrl := NewController()
	cell, intake, notes := NewCell(ctrl, CellConfig{})
	ctx := context.Background()

	require.NoError(t, cell.Start(ctx))
	assert.ErrorIs(t, cell.Start(ctx), ErrCellRunning)

	require.NoError(t, intake.Report(ctx, "critical_module"))
	intake.Close()
	assert.NoError(t, cell.Wait())
	assert.True(t, ctrl.IsSafeMode())

	n, err := notes.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "critical_module", n.Module)
}

func TestCell_ConcurrentReporters(t *testing.T) {
	ctrl := NewController()
	cell, intake, notes := NewCell(ctrl, CellConfig{IntakeCapacity: 4, NotifyCapacity: 256})

	ctx := context.Background()
	cell.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		reporter := intake.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reporter.Close()
			for j := 0; j < 10; j++ {
				assert.NoError(t, reporter.Report(ctx, "shared"))
			}
		}()
	}
	intake.Close()
	wg.Wait()

	require.NoError(t, cell.Wait())
	assert.Equal(t, 80, notes.Len())

	tripped := 0
	for {
		n, ok, err := notes.TryRecv()
		if err != nil || !ok {
			break
		}
		if n.Tripped {
			tripped++
		}
	}
	assert.Equal(t, 1, tripped)
}

func TestCell_Journal(t *testing.T) {
	journal := eventlog.NewMemoryStore()
	cell, intake, _ := NewCell(NewController(), CellConfig{Journal: journal})

	ctx := context.Background()
	require.NoError(t, intake.Report(ctx, "critical_module"))
	intake.Close()
	require.NoError(t, cell.Run(ctx))

	entries, err := journal.List(ctx, eventlog.Filter{Kind: eventlog.KindQuarantine})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "critical_module", entries[0].Name)
	assert.Contains(t, string(entries[0].Data), "module critical_module quarantined")
}
