package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apphttp "github.com/jmylchreest/dlnaprobe/internal/http"
	"github.com/jmylchreest/dlnaprobe/internal/http/handlers"
	"github.com/jmylchreest/dlnaprobe/internal/metrics"
	"github.com/jmylchreest/dlnaprobe/internal/negotiator"
	"github.com/jmylchreest/dlnaprobe/internal/observability"
	"github.com/jmylchreest/dlnaprobe/internal/scheduler"
	"github.com/jmylchreest/dlnaprobe/internal/version"
)

// watchCmd keeps a snapshot fresh and serves it over HTTP.
var watchCmd = &cobra.Command{
	Use:   "watch <uri>",
	Short: "Refresh a resource's snapshot on a schedule and serve it over HTTP",
	Long: `Run HEAD exchanges against the resource on a cron schedule and serve
the latest capability snapshot, derived capabilities, health checks and
prometheus metrics over HTTP.

A failed exchange keeps the previous snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("listen", "", "HTTP listen address (default from config)")
	watchCmd.Flags().String("schedule", "", "refresh schedule, cron or @every (default from config)")
	watchCmd.Flags().Bool("request-logging", false, "log successful HTTP requests")

	mustBindPFlag("watch.listen", watchCmd.Flags().Lookup("listen"))
	mustBindPFlag("watch.schedule", watchCmd.Flags().Lookup("schedule"))
	mustBindPFlag("watch.request_logging", watchCmd.Flags().Lookup("request-logging"))

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	observability.SetRequestLogging(cfg.Watch.RequestLogging)

	m := metrics.New()
	session := newSession(cfg, logger, negotiator.WithRecorder(m))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.SetURI(ctx, args[0]); err != nil {
		if errors.Is(err, negotiator.ErrUnsupportedScheme) || errors.Is(err, negotiator.ErrInvalidURI) {
			return err
		}
		// retried by the schedule
		logger.Warn("initial HEAD exchange failed", slog.String("error", err.Error()))
	}

	refresh, err := scheduler.NewScheduler("head_exchange", cfg.Watch.Schedule, func(ctx context.Context) error {
		_, err := session.Exchange(ctx, 0, 0)
		return err
	})
	if err != nil {
		return fmt.Errorf("watch.schedule: %w", err)
	}
	refresh.WithLogger(logger)

	serverConfig := apphttp.DefaultServerConfig()
	serverConfig.Listen = cfg.Watch.Listen
	serverConfig.ShutdownTimeout = cfg.Watch.ShutdownTimeout

	server := apphttp.NewServer(serverConfig, logger, version.Short())
	handlers.NewHealthHandler(version.Short(), session).Register(server.API())
	handlers.NewSnapshotHandler(session).Register(server.API())
	handlers.NewCapabilitiesHandler(session).Register(server.API())
	server.MountMetrics(m.Handler())

	logger.Info("starting dlnaprobe watch",
		slog.String("uri", args[0]),
		slog.String("listen", cfg.Watch.Listen),
		slog.String("schedule", cfg.Watch.Schedule),
		slog.String("version", version.Version),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		if err := refresh.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		refresh.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("dlnaprobe watch stopped")
	return nil
}
