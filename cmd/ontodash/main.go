// Package main provides the ontodash binary entry point.
// Ontodash runs quality pipelines over a registry of ontologies and
// publishes per-ontology dashboard records and reports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ontodash/ontodash/config"
	"github.com/ontodash/ontodash/fetch"
	"github.com/ontodash/ontodash/pipeline"
	"github.com/ontodash/ontodash/publish"
	"github.com/ontodash/ontodash/registry"
	"github.com/ontodash/ontodash/render"
	"github.com/ontodash/ontodash/results"
	"github.com/ontodash/ontodash/robot"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ontodash"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath   string
	logLevel     string
	registries   []string
	buildDir     string
	dashboardDir string
	skipExisting bool
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "ontodash",
		Short: "Ontology registry quality dashboard",
		Long: `Ontodash processes every ontology in a registry: it downloads the
raw file, derives a base artifact and metrics through the ontology
toolchain, runs compliance checks, and writes one dashboard record
plus an HTML report per ontology.

A second aggregation pass computes cross-ontology reuse counts and
experimental scores once all records are written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg, logger)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringSliceVar(&flags.registries, "registry", nil, "Registry file or glob (repeatable, overrides config)")
	cmd.PersistentFlags().StringVar(&flags.buildDir, "build-dir", "", "Working directory for downloaded and derived files")
	cmd.PersistentFlags().StringVar(&flags.dashboardDir, "dashboard-dir", "", "Output directory for records and reports")
	cmd.PersistentFlags().BoolVar(&flags.skipExisting, "skip-existing", false, "Skip ontologies that already have a result record")

	cmd.AddCommand(watchCmd(flags))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setup configures logging and loads the layered configuration with flag
// overrides applied on top.
func setup(flags *rootFlags) (*config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(flags.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if len(flags.registries) > 0 {
		cfg.Registry.Files = flags.registries
	}
	if flags.buildDir != "" {
		cfg.Paths.BuildDir = flags.buildDir
	}
	if flags.dashboardDir != "" {
		cfg.Paths.DashboardDir = flags.dashboardDir
	}
	if flags.skipExisting {
		cfg.Pipeline.SkipExisting = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, logger, nil
}

// runOnce executes one full dashboard run: the per-ontology pipeline pass
// followed by the aggregation pass.
func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg, err := registry.Load(cfg.Registry.Files)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	logger.Info("Registry loaded", slog.Int("ontologies", reg.Len()))

	if err := os.MkdirAll(cfg.Paths.BuildDir, 0755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}

	store := results.NewStore(cfg.Paths.DashboardDir)
	fetcher := fetch.NewFetcher(cfg.Pipeline.DownloadTimeout, logger)
	gateway := robot.NewExecGateway(cfg.Robot.Command, logger)
	renderer := render.NewRenderer(cfg.Paths.DashboardDir, logger)

	// Result publishing degrades gracefully: a missing broker logs a
	// warning and the run proceeds without events.
	var publisher pipeline.RecordPublisher
	if cfg.Publish.URL != "" {
		p, err := publish.Connect(cfg.Publish.URL, cfg.Publish.SubjectPrefix, logger)
		if err != nil {
			logger.Warn("Result publishing disabled", slog.String("error", err.Error()))
		} else {
			defer p.Close()
			publisher = p
		}
	}

	runner := pipeline.NewRunner(cfg, reg, store, fetcher, gateway, logger)
	logger.Info("Starting dashboard run", slog.String("run_id", runner.RunID()))

	reuse, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	agg := pipeline.NewAggregator(cfg, reg, store, renderer, publisher, logger)
	if err := agg.Aggregate(ctx, reuse, runner.RunID(), runner.RawPath); err != nil {
		return fmt.Errorf("aggregation: %w", err)
	}

	logger.Info("Dashboard run complete", slog.String("run_id", runner.RunID()))
	return nil
}
