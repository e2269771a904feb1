package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecli/internal/config"
	"github.com/fyrsmithlabs/vecli/internal/embeddings"
	"github.com/fyrsmithlabs/vecli/internal/logging"
	"github.com/fyrsmithlabs/vecli/internal/pipeline"
	"github.com/fyrsmithlabs/vecli/internal/qdrant"
	"github.com/fyrsmithlabs/vecli/internal/snapshot"
	"github.com/fyrsmithlabs/vecli/internal/telemetry"
	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath      string
	logLevel        string
	snapshotPath    string
	indexProvider   string
	metricsTextfile string
}

// app holds the dependencies of one invocation. The index and embedder are
// opened on first use so that commands which need neither stay offline.
type app struct {
	flags globalFlags

	ctx      context.Context
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	registry *prometheus.Registry
	metrics  *vectorstore.Metrics

	newIndex    func(ctx context.Context) (vectorstore.Index, error)
	newEmbedder func(ctx context.Context) (embeddings.Provider, error)

	index    vectorstore.Index
	embedder embeddings.Provider
}

func newApp() *app {
	a := &app{logger: logging.NewNop()}
	a.newIndex = a.openConfiguredIndex
	a.newEmbedder = a.openConfiguredEmbedder
	return a
}

// setup loads configuration, applies the global flags and prepares logging,
// telemetry and the metrics registry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadWithFile(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = a.flags.logLevel
	}
	if a.flags.indexProvider != "" {
		cfg.Index.Provider = a.flags.indexProvider
	}
	if a.flags.metricsTextfile != "" {
		cfg.Metrics.Textfile = a.flags.metricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.logger = logger

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithRequestID(ctx, uuid.NewString())
	ctx = logging.WithLogger(ctx, logger)

	tel, err := telemetry.New(ctx, telemetryConfig(cfg.Telemetry), telemetry.WithLogger(logger))
	if err != nil {
		return err
	}
	a.tel = tel

	a.registry = prometheus.NewRegistry()
	a.metrics = vectorstore.NewMetrics(a.registry)

	a.ctx = ctx
	cmd.SetContext(ctx)

	logger.Debug(ctx, "configuration loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("index", cfg.Index.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
	)
	return nil
}

func newLogger(lc config.LoggingConfig) (*logging.Logger, error) {
	cfg := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	cfg.Level = level
	cfg.Format = lc.Format
	return logging.NewLogger(cfg)
}

func telemetryConfig(tc config.TelemetryConfig) *telemetry.Config {
	cfg := telemetry.NewDefaultConfig()
	cfg.Enabled = tc.Enabled
	cfg.Endpoint = tc.Endpoint
	cfg.Protocol = tc.Protocol
	cfg.Insecure = tc.Insecure
	cfg.TLSSkipVerify = tc.TLSSkipVerify
	cfg.SampleRate = tc.SampleRate
	cfg.ExportInterval = tc.ExportInterval
	cfg.ServiceVersion = version
	return cfg
}

// vectorIndex returns the instrumented index, opening it on first use.
func (a *app) vectorIndex(ctx context.Context) (vectorstore.Index, error) {
	if a.index != nil {
		return a.index, nil
	}
	idx, err := a.newIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", a.cfg.Index.Provider, err)
	}
	a.index = vectorstore.Instrument(idx, a.cfg.Index.Provider, a.metrics)
	return a.index, nil
}

func (a *app) openConfiguredIndex(ctx context.Context) (vectorstore.Index, error) {
	if a.cfg.Index.Provider == "chromem" {
		return vectorstore.NewChromemIndex(vectorstore.ChromemConfig{
			Path:     a.cfg.Index.Path,
			Compress: a.cfg.Index.Compress,
		}, a.logger.Underlying())
	}

	q := a.cfg.Qdrant
	return qdrant.NewGRPCClient(&qdrant.ClientConfig{
		Host:           q.Host,
		Port:           q.Port,
		UseTLS:         q.UseTLS,
		APIKey:         q.APIKey.Value(),
		RequestTimeout: q.Timeout,
		RetryAttempts:  q.RetryAttempts,
	}, a.logger)
}

// textEmbedder returns the embedding provider, opening it on first use.
func (a *app) textEmbedder(ctx context.Context) (embeddings.Provider, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	p, err := a.newEmbedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s embeddings: %w", a.cfg.Embeddings.Provider, err)
	}
	a.embedder = p
	return p, nil
}

func (a *app) openConfiguredEmbedder(ctx context.Context) (embeddings.Provider, error) {
	ec := a.cfg.Embeddings
	if ec.Provider == "fastembed" {
		if err := ensureRuntime(ctx, a.logger.Underlying()); err != nil {
			return nil, err
		}
	}
	return embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:     ec.Provider,
		Model:        ec.Model,
		BaseURL:      ec.BaseURL,
		CacheDir:     ec.CacheDir,
		BatchSize:    ec.BatchSize,
		RateLimit:    ec.RateLimit,
		Timeout:      ec.Timeout,
		ShowProgress: true,
		Logger:       a.logger.Underlying(),
	})
}

// columns recovers the column mapping from the snapshot named by --snapshot,
// falling back to the configured snapshot directory.
func (a *app) columns() (snapshot.ColumnMapping, error) {
	path := a.flags.snapshotPath
	if path == "" {
		path = a.cfg.Snapshot.Dir
	}
	cols, err := snapshot.LoadColumns(path)
	if err != nil {
		return snapshot.ColumnMapping{}, fmt.Errorf("recover column mapping: %w", err)
	}
	return cols, nil
}

// collectionArg returns args[i], or the configured default collection.
func (a *app) collectionArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return a.cfg.Collection.Name
}

// report prints outcomes that are not failures: an absent collection and an
// unsupported export format. Any other error is returned unchanged.
func (a *app) report(cmd *cobra.Command, collection string, err error) error {
	out := cmd.OutOrStdout()
	switch {
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		available := "none"
		if idx, ierr := a.vectorIndex(cmd.Context()); ierr == nil {
			if names, lerr := idx.ListCollections(cmd.Context()); lerr == nil && len(names) > 0 {
				available = strings.Join(names, ", ")
			}
		}
		fmt.Fprintf(out, "Collection '%s' does not exist. Available collections: %s\n", collection, available)
		return nil
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		fmt.Fprintf(out, "Unsupported format. Use '%s' or '%s'.\n", pipeline.FormatJSON, pipeline.FormatCSV)
		return nil
	}
	return err
}

// close releases the index and embedder, writes the metrics textfile and
// flushes telemetry. Safe to call when setup never ran.
func (a *app) close() {
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn(ctx, "closing index", zap.Error(err))
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			a.logger.Warn(ctx, "closing embedder", zap.Error(err))
		}
	}

	if a.cfg != nil && a.cfg.Metrics.Textfile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			fmt.Fprintf(os.Stderr, "vecli: writing metrics textfile: %v\n", err)
		}
	}

	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil {
			a.logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
