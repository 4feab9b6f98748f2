package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/quarry-labs/pkgaudit"
	pkgotel "github.com/quarry-labs/pkgaudit/otel"
	"github.com/quarry-labs/pkgaudit/store"
	"github.com/quarry-labs/pkgaudit/watch"
)

// NewWatchCmd creates the "watch" subcommand.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-audit the environment on a cron schedule",
		RunE:  runWatch,
	}

	cmd.Flags().String("config", "", "Path to pkgaudit.yaml config")
	cmd.Flags().StringArray("lib-path", nil, "Library root directory (repeatable, ordered)")
	cmd.Flags().String("session", "", "Path to session-state YAML dump")
	cmd.Flags().String("deps", "", "Dependency expansion: none | direct | direct-suggests | recursive | recursive-suggests | default")
	cmd.Flags().Bool("include-base", false, "Include base-distribution packages")
	cmd.Flags().String("cron", "", "UTC cron expression (five fields)")
	cmd.Flags().Bool("save", false, "Save each completed audit as a snapshot")
	cmd.Flags().String("store-path", "", "Path to SQLite snapshot store (default: ~/.pkgaudit/pkgaudit.db)")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP collector endpoint for trace export")
	cmd.Flags().Bool("otel-insecure", false, "Disable TLS for the OTLP exporter")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	setup, err := resolveAuditSetup(cmd)
	if err != nil {
		return err
	}

	mode, err := resolveDepMode(cmd, setup.cfg)
	if err != nil {
		return err
	}
	includeBase, _ := cmd.Flags().GetBool("include-base")

	cronExpr, _ := cmd.Flags().GetString("cron")
	if strings.TrimSpace(cronExpr) == "" {
		return exitError(exitValidation, "--cron is required")
	}

	handler, shutdown, err := resolveWatchObservability(cmd, setup.cfg)
	if err != nil {
		return err
	}
	if shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	var snapStore *store.Store
	save, _ := cmd.Flags().GetBool("save")
	if save {
		snapStore, err = resolveSnapshotStore(cmd, setup.cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = snapStore.Close()
		}()
	}

	watcher, err := watch.NewWatcher(watch.WatcherConfig{
		Env: setup.env,
		Options: pkgaudit.Options{
			IncludeBase: includeBase || setup.cfg.IncludeBase,
			DepMode:     mode,
			Handler:     handler,
		},
		Cron:   cronExpr,
		Store:  snapStore,
		Logger: slog.Default(),
		OnReport: func(report *pkgaudit.Report) {
			_ = report.Render(cmd.OutOrStdout())
		},
	})
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	if err := watcher.Start(); err != nil {
		return exitError(exitRuntime, "starting watcher: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching on schedule %q (next run %s)\n",
		cronExpr, watcher.NextRun(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := watcher.Stop(stopCtx); err != nil {
		return exitError(exitRuntime, "stopping watcher: %v", err)
	}
	return nil
}

// resolveWatchObservability wires trace export and the event handlers when an
// OTLP endpoint is configured. Without one, audits run unobserved.
func resolveWatchObservability(cmd *cobra.Command, cfg Config) (pkgaudit.EventHandler, func(context.Context) error, error) {
	endpoint, _ := cmd.Flags().GetString("otel-endpoint")
	insecure, _ := cmd.Flags().GetBool("otel-insecure")
	if strings.TrimSpace(endpoint) == "" {
		endpoint = cfg.Otel.Endpoint
		insecure = insecure || cfg.Otel.Insecure
	}
	if strings.TrimSpace(endpoint) == "" {
		return nil, nil, nil
	}

	shutdown, err := pkgotel.Setup(cmd.Context(), pkgotel.SetupConfig{
		Endpoint: endpoint,
		Insecure: insecure,
	})
	if err != nil {
		return nil, nil, exitError(exitRuntime, "initializing trace export: %v", err)
	}

	tracing := pkgotel.NewTracingHandler(otelapi.GetTracerProvider().Tracer("pkgaudit"))
	metrics, err := pkgotel.NewMetricsHandler(otelapi.GetMeterProvider().Meter("pkgaudit"))
	if err != nil {
		_ = shutdown(cmd.Context())
		return nil, nil, exitError(exitRuntime, "initializing metrics: %v", err)
	}

	handler := pkgaudit.MultiEventHandler(tracing.Handle, metrics.Handle)
	return handler, shutdown, nil
}
