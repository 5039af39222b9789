package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/security"
)

var checkCmd = &cobra.Command{
	Use:   "check [manifest]",
	Short: "Verify files against an integrity manifest",
	Long: `Run a single integrity check and report files whose SHA-256 digest does
not match the manifest. The manifest defaults to integrity.manifest from the
configuration. Exits non-zero when any file fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var checkJSON bool // Output as JSON

// errIntegrity is returned when the check finds mismatches.
var errIntegrity = errors.New("integrity check failed")

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	manifest := settings.IntegrityManifest
	if len(args) == 1 {
		manifest = args[0]
	}
	if manifest == "" {
		return errors.New("no manifest given and integrity.manifest is not set")
	}

	logger, err := newLogger(cmd.ErrOrStderr(), settings)
	if err != nil {
		return err
	}

	// The check reports through a private quarantine cell so mismatches
	// follow the same path as in a running core.
	ctrl := security.NewController(security.WithControllerLogger(logger))
	cell, intake, _ := security.NewCell(ctrl, security.CellConfig{Logger: logger})
	checker, err := security.NewIntegrityChecker(intake, security.IntegrityConfig{
		ManifestPath: manifest,
		BaseDir:      settings.IntegrityBaseDir,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cell.Start(ctx); err != nil {
		return err
	}
	mismatches, checkErr := checker.CheckOnce(ctx)
	intake.Close()
	if err := cell.Wait(); err != nil {
		return err
	}
	if checkErr != nil {
		return checkErr
	}

	if err := printCheck(cmd.OutOrStdout(), mismatches, ctrl.IsSafeMode()); err != nil {
		return err
	}
	if len(mismatches) > 0 {
		return errIntegrity
	}
	return nil
}

type checkResult struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Error    string `json:"error,omitempty"`
}

func printCheck(w io.Writer, mismatches []security.Mismatch, safeMode bool) error {
	results := make([]checkResult, 0, len(mismatches))
	for _, m := range mismatches {
		r := checkResult{Path: m.Path, Expected: m.Expected, Actual: m.Actual}
		if m.Err != nil {
			r.Error = m.Err.Error()
		}
		results = append(results, r)
	}

	if checkJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"ok":         len(results) == 0,
			"safe_mode":  safeMode,
			"mismatches": results,
		})
	}

	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "integrity ok")
		return err
	}
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "UNREADABLE %s: %s\n", r.Path, r.Error)
			continue
		}
		fmt.Fprintf(w, "MISMATCH   %s\n  expected %s\n  actual   %s\n", r.Path, r.Expected, r.Actual)
	}
	_, err := fmt.Fprintf(w, "%d file(s) failed; safe mode would be entered\n", len(results))
	return err
}
