package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List entries from the SQLite event log",
	Long: `Print published events, quarantine reports and reset audit entries from
the event log at eventlog.path.`,
	RunE: runEvents,
}

var (
	eventsKind  string // Filter by entry kind
	eventsName  string // Filter by entry name
	eventsAfter int64  // Only entries after this sequence
	eventsLimit int    // Maximum entries
	eventsJSON  bool   // Output as JSON lines
)

func init() {
	eventsCmd.Flags().StringVar(&eventsKind, "kind", "", "Only entries of this kind (event, quarantine, audit)")
	eventsCmd.Flags().StringVar(&eventsName, "name", "", "Only entries with this name")
	eventsCmd.Flags().Int64Var(&eventsAfter, "after", 0, "Only entries after this sequence number")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum number of entries")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output entries as JSON lines")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if settings.EventLogPath == "" {
		return errors.New("eventlog.path is not set; the in-memory log is not readable from another process")
	}

	store, err := eventlog.NewSQLiteStore(settings.EventLogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), eventlog.Filter{
		Kind:     eventsKind,
		Name:     eventsName,
		AfterSeq: eventsAfter,
		Limit:    eventsLimit,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if eventsJSON {
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries")
		return nil
	}
	fmt.Fprintf(w, "%-6s %-24s %-11s %s\n", "SEQ", "TIME", "KIND", "NAME")
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, e := range entries {
		fmt.Fprintf(w, "%-6d %-24s %-11s %s\n", e.Seq, e.Timestamp.Format("2006-01-02 15:04:05.000"), e.Kind, e.Name)
	}
	return nil
}
