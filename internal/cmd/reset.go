package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Ask a running core to leave safe mode",
	Long: `Send an authorized reset request to the admin server of a running core.
The token defaults to $SPINALCORD_SAFE_MODE_RESET_TOKEN.`,
	RunE: runReset,
}

var (
	resetAddr     string // Admin server address
	resetOperator string // Who is resetting
	resetReason   string // Why
	resetToken    string // Shared secret
)

func init() {
	resetCmd.Flags().StringVar(&resetAddr, "addr", "", "Admin server address (default: metrics.addr)")
	resetCmd.Flags().StringVar(&resetOperator, "operator", os.Getenv("USER"), "Operator name recorded in the audit log")
	resetCmd.Flags().StringVar(&resetReason, "reason", "", "Reason recorded in the audit log")
	resetCmd.Flags().StringVar(&resetToken, "token", "", "Reset token")
	_ = resetCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	addr := resetAddr
	if addr == "" {
		addr = settings.MetricsAddr
	}
	if addr == "" {
		return errors.New("no admin address: pass --addr or set metrics.addr")
	}
	token := resetToken
	if token == "" {
		token = settings.ResetToken
	}

	body, err := json.Marshal(map[string]string{
		"operator": resetOperator,
		"reason":   resetReason,
		"token":    token,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(adminURL(addr, "/safe-mode/reset"), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send reset: %w", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset rejected (%s): %s", resp.Status, strings.TrimSpace(string(out)))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "safe mode reset")
	return nil
}

// adminURL turns a listen address such as ":9090" into a URL.
func adminURL(addr, path string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/") + path
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}
