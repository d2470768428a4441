package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ontodash/ontodash/config"
	"github.com/ontodash/ontodash/registry"
)

// debounceWindow coalesces editor save bursts into one run trigger.
const debounceWindow = 2 * time.Second

func watchCmd(flags *rootFlags) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run continuously, re-running on registry changes or a schedule",
		Long: `Watch runs an initial dashboard pass, then keeps running: registry
file changes trigger a new pass, and an optional cron schedule forces
periodic passes so staleness windows take effect. When a metrics
listen address is configured, Prometheus metrics are served for the
lifetime of the process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			return watch(cmd.Context(), cfg, logger, schedule)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression for periodic runs (e.g. \"0 3 * * *\")")

	return cmd
}

func watch(ctx context.Context, cfg *config.Config, logger *slog.Logger, schedule string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.ListenAddr != "" {
		go serveMetrics(ctx, cfg.Metrics.ListenAddr, logger)
	}

	// Run triggers are funneled through one channel so a pass never
	// overlaps another. Capacity one: a trigger during a pass queues
	// exactly one follow-up pass.
	trigger := make(chan string, 1)
	queueRun := func(reason string) {
		select {
		case trigger <- reason:
		default:
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	files, err := registry.ResolveFiles(cfg.Registry.Files)
	if err != nil {
		return fmt.Errorf("resolve registry files: %w", err)
	}
	for _, file := range files {
		if err := watcher.Add(file); err != nil {
			logger.Warn("Failed to watch registry file",
				slog.String("path", file),
				slog.String("error", err.Error()))
			continue
		}
		logger.Info("Watching registry file", slog.String("path", file))
	}

	go debounceEvents(ctx, watcher, queueRun, logger)

	if schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(schedule, func() { queueRun("schedule") }); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}
		c.Start()
		defer c.Stop()
		logger.Info("Scheduled runs enabled", slog.String("schedule", schedule))
	}

	queueRun("startup")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down watch mode")
			return nil
		case reason := <-trigger:
			logger.Info("Starting run", slog.String("reason", reason))
			if err := runOnce(ctx, cfg, logger); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				// Watch mode outlives individual run failures.
				logger.Error("Run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// debounceEvents forwards watcher events as run triggers, collapsing bursts
// of writes within the debounce window.
func debounceEvents(ctx context.Context, watcher *fsnotify.Watcher, queueRun func(string), logger *slog.Logger) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("Registry change detected", slog.String("path", event.Name))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() { queueRun("registry change") })
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Watcher error", slog.String("error", err.Error()))
		}
	}
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed", slog.String("error", err.Error()))
	}
}
