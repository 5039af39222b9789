// Package cmd implements the spinalcord command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/config"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
)

var rootCmd = &cobra.Command{
	Use:   "spinalcord",
	Short: "Agent runtime coordination core",
	Long: `spinalcord runs the coordination core of an agent runtime: the event bus,
the flow channel, the quarantine cell with its safe-mode latch, and the
priority task scheduler.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (yaml or json)")
}

// configErr holds a config file failure from initConfig for loadSettings to
// report.
var configErr error

func setDefaults() {
	d := config.DefaultSettings
	viper.SetDefault(config.KeyFlowCapacity, d.FlowCapacity)
	viper.SetDefault(config.KeyFlowSendTimeout, d.FlowSendTimeout.String())
	viper.SetDefault(config.KeyIntakeCapacity, d.IntakeCapacity)
	viper.SetDefault(config.KeyNotifyCapacity, d.NotifyCapacity)
	viper.SetDefault(config.KeyEventLogPath, d.EventLogPath)
	viper.SetDefault(config.KeyIntegrityManifest, d.IntegrityManifest)
	viper.SetDefault(config.KeyIntegrityBaseDir, d.IntegrityBaseDir)
	viper.SetDefault(config.KeyIntegrityInterval, d.IntegrityInterval.String())
	viper.SetDefault(config.KeySchemaDir, d.SchemaDir)
	viper.SetDefault(config.KeyMetricsAddr, d.MetricsAddr)
	viper.SetDefault(config.KeyResetToken, d.ResetToken)
	viper.SetDefault(config.KeyLogLevel, d.LogLevel)
	viper.SetDefault(config.KeyLogFormat, d.LogFormat)
}

func initConfig() {
	viper.Reset()
	configErr = nil

	// Set defaults first so they're available even without a config file
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SPINALCORD")
	// e.g. SPINALCORD_FLOW_CAPACITY for flow.capacity
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	path, _ := rootCmd.PersistentFlags().GetString("config")
	if path == "" {
		// No file in the search path is fine; defaults and env still apply.
		path, _ = config.Find(defaultConfigPaths()...)
	}
	if path == "" {
		return
	}
	cfg, err := config.FromFile(path)
	if err != nil {
		configErr = err
		return
	}
	if err := viper.MergeConfigMap(cfg.Raw()); err != nil {
		configErr = fmt.Errorf("merge config %s: %w", path, err)
	}
}

func defaultConfigPaths() []string {
	paths := []string{"spinalcord.yaml", "spinalcord.yml", "spinalcord.json"}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "spinalcord")
		paths = append(paths,
			filepath.Join(dir, "spinalcord.yaml"),
			filepath.Join(dir, "spinalcord.json"),
		)
	}
	return paths
}

// loadSettings resolves settings from defaults, the config file and the
// environment.
func loadSettings() (config.Settings, error) {
	if configErr != nil {
		return config.Settings{}, configErr
	}
	s := config.FromMap(viper.AllSettings()).Settings()
	if err := s.Validate(); err != nil {
		return config.Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func newLogger(w io.Writer, s config.Settings) (*slog.Logger, error) {
	return observability.NewLogger(w, s.LogFormat, s.LogLevel)
}
