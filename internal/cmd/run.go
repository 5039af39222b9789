package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/observability"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/security"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the coordination core",
	Long: `Start the quarantine cell, flow pump, task executor and, when a manifest
is configured, the integrity watcher. Developer notifications are written to
the log. When metrics.addr is set, an admin server exposes /metrics,
/health, /safe-mode, /safe-mode/reset and /events.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), settings)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := observability.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}

	rt, err := spinalcord.New(settings,
		spinalcord.WithLogger(logger),
		spinalcord.WithRecorder(observability.Multi{prom, observability.NewMetricsRecorder()}),
	)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, logger, rt, reg, settings.MetricsAddr)
}

// serve runs rt and, when addr is set, the admin server. It returns when ctx
// ends or the runtime stops on its own, which also shuts the admin server
// down.
func serve(ctx context.Context, logger *slog.Logger, rt *spinalcord.Runtime, gatherer prometheus.Gatherer, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return rt.Run(gctx)
	})
	g.Go(func() error {
		return logNotifications(gctx, logger, rt.Notifications())
	})
	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           rt.AdminHandler(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("admin server listening", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, release := context.WithTimeout(context.Background(), 5*time.Second)
			defer release()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logNotifications drains developer notifications into the log until the
// channel closes or ctx ends.
func logNotifications(ctx context.Context, logger *slog.Logger, notes *security.NotificationReceiver) error {
	for {
		n, err := notes.Recv(ctx)
		if errors.Is(err, security.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Warn("developer notification",
			slog.String("id", n.ID),
			slog.String("module", n.Module),
			slog.String("description", n.Description),
			slog.Bool("tripped", n.Tripped),
		)
	}
}
