package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shayan-nathan/airbyte/internal/pipeline"
	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/connector/registry"
	"github.com/shayan-nathan/airbyte/pkg/logger"
	"github.com/shayan-nathan/airbyte/pkg/observability"
	"github.com/shayan-nathan/airbyte/pkg/state"
)

// syncOptions are the sync command flags. Zero values leave the config
// file untouched.
type syncOptions struct {
	configPath  string
	statePath   string
	outputPath  string
	mode        string
	streams     []string
	logLevel    string
	metricsAddr string
	trace       bool
	timeout     time.Duration
	dropFields  []string
	renames     map[string]string
}

func newSyncCmd() *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync",
		Long: `Run a sync with the Notion source and the configured destination.

The token is read from security.credentials.token in the config file, or from
NOTION_TOKEN. NOTION_SYNC_* variables override individual settings.

Example:
  notion-sync sync --config sync.yaml --state state.json --streams pages,blocks
  notion-sync sync -c sync.yaml --drop-fields properties --rename-fields last_edited_time=updated_at`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML sync configuration")
	f.StringVar(&opts.statePath, "state", "", "Path to the JSON state file")
	f.StringVarP(&opts.outputPath, "output", "o", "", "Destination path, - for stdout")
	f.StringVar(&opts.mode, "mode", "", "Sync mode: incremental or full_refresh")
	f.StringSliceVar(&opts.streams, "streams", nil, "Streams to sync, default all")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&opts.trace, "trace", false, "Export trace spans to stderr")
	f.DurationVar(&opts.timeout, "timeout", 0, "Abort the sync after this long, 0 for no limit")
	f.StringSliceVar(&opts.dropFields, "drop-fields", nil, "Top level record fields to remove before writing")
	f.StringToStringVar(&opts.renames, "rename-fields", nil, "Record fields to rename, e.g. last_edited_time=updated_at")
	return cmd
}

// loadSyncConfig reads the config file and applies flag overrides.
func loadSyncConfig(opts *syncOptions) (*config.SyncConfig, error) {
	cfg, err := config.LoadSync(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.statePath != "" {
		cfg.StatePath = opts.statePath
	}
	if opts.outputPath != "" {
		cfg.Destination.Security.SetCredential("path", opts.outputPath)
	}
	if opts.mode != "" {
		cfg.Mode = opts.mode
	}
	if len(opts.streams) > 0 {
		cfg.Streams = opts.streams
	}
	if opts.logLevel != "" {
		cfg.Source.Observability.LogLevel = opts.logLevel
	}
	if opts.trace {
		cfg.Source.Observability.EnableTracing = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runSync(ctx context.Context, opts *syncOptions) error {
	cfg, err := loadSyncConfig(opts)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Source.Observability.LogLevel,
		Encoding: cfg.Source.Observability.LogEncoding,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.With(
		zap.String("component", "notion-sync"),
		zap.String("source", cfg.Source.Type),
		zap.String("destination", cfg.Destination.Type),
	)

	tracing := observability.DefaultTracingConfig()
	tracing.Enabled = cfg.Source.Observability.EnableTracing
	tracing.ServiceVersion = version
	if rate := cfg.Source.Observability.TracingSampleRate; rate > 0 {
		tracing.SamplingRate = rate
	}
	shutdownTracing, err := observability.InitTracing(tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, log)
		defer stop()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	source, err := registry.CreateSource(cfg.Source.Type, &cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to create source connector '%s': %w", cfg.Source.Type, err)
	}
	if err := source.Initialize(ctx, &cfg.Source); err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}
	defer closeConnector(ctx, log, "source", source.Close)

	destination, err := registry.CreateDestination(cfg.Destination.Type, &cfg.Destination)
	if err != nil {
		return fmt.Errorf("failed to create destination connector '%s': %w", cfg.Destination.Type, err)
	}
	if err := destination.Initialize(ctx, &cfg.Destination); err != nil {
		return fmt.Errorf("failed to initialize destination: %w", err)
	}
	defer closeConnector(ctx, log, "destination", destination.Close)

	p := pipeline.NewSyncPipeline(
		source,
		destination,
		state.NewStore(cfg.StatePath),
		pipeline.ConfigFromBase(&cfg.Destination, core.SyncMode(cfg.Mode), cfg.Streams),
		log,
	)
	for _, t := range syncTransforms(opts) {
		p.AddTransform(t)
	}

	log.Info("executing sync", zap.String("state_path", cfg.StatePath))
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	m := p.Metrics()
	log.Info("sync completed successfully",
		zap.Any("records_written", m["records_written"]),
		zap.Any("streams_completed", m["streams_completed"]),
		zap.Any("duration", m["duration"]))
	return nil
}

// syncTransforms builds the record transforms requested on the command line.
// Drops run before renames.
func syncTransforms(opts *syncOptions) []pipeline.Transform {
	var transforms []pipeline.Transform
	if len(opts.dropFields) > 0 {
		transforms = append(transforms, pipeline.DropFieldsTransform(opts.dropFields...))
	}
	if len(opts.renames) > 0 {
		transforms = append(transforms, pipeline.FieldMapperTransform(opts.renames))
	}
	return transforms
}

// serveMetrics exposes the default Prometheus registry and returns a
// function that shuts the server down.
func serveMetrics(addr string, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func closeConnector(ctx context.Context, log *zap.Logger, kind string, closeFn func(context.Context) error) {
	// ctx may already be cancelled; closing must still flush output
	if err := closeFn(context.WithoutCancel(ctx)); err != nil {
		log.Warn("failed to close "+kind, zap.Error(err))
	}
}
