package benchmarks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
)

type report struct {
	Module  string   `json:"module"`
	Files   []string `json:"files"`
	Tripped bool     `json:"tripped"`
}

func sampleEntry() eventlog.Entry {
	return eventlog.NewEntry(eventlog.KindQuarantine, "critical_module", report{
		Module:  "critical_module",
		Files:   []string{"core.bin", "policy.yaml", "weights.safetensors"},
		Tripped: true,
	})
}

// BenchmarkMemoryStore_Append measures in-memory append.
func BenchmarkMemoryStore_Append(b *testing.B) {
	store := eventlog.NewMemoryStore()
	entry := sampleEntry()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Append(ctx, entry)
	}
}

// BenchmarkSQLiteStore_Append measures SQLite append on disk.
func BenchmarkSQLiteStore_Append(b *testing.B) {
	dir, err := os.MkdirTemp("", "eventlog-bench-*")
	if err != nil {
		b.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := eventlog.NewSQLiteStore(filepath.Join(dir, "events.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	entry := sampleEntry()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Append(ctx, entry)
	}
}

// BenchmarkSQLiteStore_List measures a filtered read of 100 entries.
func BenchmarkSQLiteStore_List(b *testing.B) {
	store, err := eventlog.NewSQLiteStore(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_, _ = store.Append(ctx, sampleEntry())
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.List(ctx, eventlog.Filter{Kind: eventlog.KindQuarantine, Limit: 100})
	}
}
