package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/repoindexer/internal/config"
	"github.com/fyrsmithlabs/repoindexer/internal/embeddings"
	"github.com/fyrsmithlabs/repoindexer/internal/fetcher"
	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
	statushttp "github.com/fyrsmithlabs/repoindexer/internal/http"
	"github.com/fyrsmithlabs/repoindexer/internal/logging"
	"github.com/fyrsmithlabs/repoindexer/internal/pipeline"
	"github.com/fyrsmithlabs/repoindexer/internal/telemetry"
	"github.com/fyrsmithlabs/repoindexer/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	enrich          bool
	branches        []string
	storeProvider   string
	metadataLevel   string
	disableRedactor bool
)

func init() {
	for _, c := range []*cobra.Command{indexCmd, analyzeCmd} {
		c.Flags().BoolVar(&enrich, "enrich", false, "collect languages, contributors and commit counts per repository")
		c.Flags().StringSliceVar(&branches, "branches", nil, "ordered branch fallback list (overrides hosting.branches)")
	}
	indexCmd.Flags().StringVar(&storeProvider, "vectorstore", "", "vector store backend: chromem or qdrant")
	indexCmd.Flags().StringVar(&metadataLevel, "metadata", "", "record metadata: basic or rich")
	indexCmd.Flags().BoolVar(&disableRedactor, "no-redact", false, "embed file content without secret redaction")
}

// indexCmd crawls an account and writes embeddings
var indexCmd = &cobra.Command{
	Use:   "index <account>",
	Short: "Index the source files of every repository of an account",
	Long: `Enumerate the repositories of a user or organization, fetch every
selected source file, embed it and upsert it into the vector store.
Re-running overwrites existing records rather than duplicating them.

The account may be a login or a profile URL.

Examples:
  # Index into the embedded chromem store
  repoindexer index octocat

  # Index into Qdrant with repository details on each record
  repoindexer index https://github.com/octocat --vectorstore qdrant --metadata rich

  # Expose Prometheus metrics while indexing
  repoindexer index octocat --metrics-addr :9464`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, args[0], false)
	},
}

// analyzeCmd reports on an account without embedding anything
var analyzeCmd = &cobra.Command{
	Use:   "analyze <account>",
	Short: "Report repository details and file selection without indexing",
	Long: `Enumerate the repositories of a user or organization and report their
details and which files would be indexed. No content is fetched and
nothing is written to the vector store.

Examples:
  # Report on an account
  repoindexer analyze octocat

  # Include languages, contributors and commit counts
  repoindexer analyze octocat --enrich`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, args[0], true)
	},
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags overrides configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Pipeline.Workers = workers
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if flags.Changed("enrich") {
		cfg.Pipeline.Enrich = enrich
	}
	if flags.Changed("branches") {
		cfg.Hosting.Branches = branches
	}
	if flags.Changed("vectorstore") {
		cfg.VectorStore.Provider = storeProvider
	}
	if flags.Changed("metadata") {
		cfg.VectorStore.Metadata = metadataLevel
	}
	if flags.Changed("no-redact") {
		cfg.Fetch.DisableRedaction = disableRedactor
	}
}

func runPipeline(cmd *cobra.Command, account string, analyze bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	lcfg := logging.FromAppConfig(cfg.Logging)
	boot, err := logging.NewLogger(lcfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Installed before the pipeline is built so instruments bind to it.
	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Telemetry, version), boot.Underlying().Named("telemetry"))
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			boot.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
		_ = boot.Sync()
	}()

	logger := boot
	if lp := tel.LoggerProvider(); lp != nil {
		lcfg.Output.OTEL = true
		if logger, err = logging.NewLogger(lcfg, lp); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	defer func() {
		_ = logger.Sync()
	}()
	zl := logger.Underlying()

	ctx = logging.WithRunID(ctx, uuid.NewString())
	ctx = logging.WithAccount(ctx, account)
	ctx = logging.WithLogger(ctx, logger)

	orch, cleanup, err := buildOrchestrator(cfg, analyze, zl)
	if err != nil {
		return err
	}
	defer cleanup()

	tracker := statushttp.NewTracker(account)
	if metricsAddr != "" {
		srv, err := statushttp.NewServer(tracker, zl.Named("http"), statushttp.Config{Addr: metricsAddr})
		if err != nil {
			return err
		}
		if _, err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	orch.OnProgress(func(p pipeline.Progress) {
		tracker.Update(p)
		logger.Debug(ctx, "progress",
			zap.String("state", string(p.State)),
			zap.String("repository", p.Repository),
			zap.Int("completed", p.Completed),
			zap.Int("total", p.Total))
	})

	logger.Info(ctx, "run starting",
		zap.Bool("analyze", analyze),
		zap.Int("workers", cfg.Pipeline.Workers),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider))

	summary, runErr := orch.Run(ctx, account)
	if summary != nil {
		if err := pipeline.WriteReport(cmd.OutOrStdout(), summary); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info(ctx, "run finished",
			zap.Int("processed", summary.RepositoriesProcessed),
			zap.Int("failed", summary.RepositoriesFailed),
			zap.Int("files_indexed", summary.FilesIndexed),
			zap.Duration("duration", summary.Duration))
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("run interrupted")
		}
		return runErr
	}
	return nil
}

// buildOrchestrator wires the pipeline. Analyze runs need only the
// hosting client. On success the returned cleanup closes the generator
// and the store; on failure they are already closed.
func buildOrchestrator(cfg *config.Config, analyze bool, logger *zap.Logger) (*pipeline.Orchestrator, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client, err := hosting.NewClient(hosting.ConfigFrom(cfg.Hosting), logger.Named("hosting"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create hosting client: %w", err)
	}

	pcfg := pipeline.ConfigFrom(cfg)
	pcfg.SkipIndexing = analyze

	var (
		fetch pipeline.ContentFetcher
		embed pipeline.Embedder
		store vectorstore.Store
	)
	if !analyze {
		fetch = fetcher.New(client, fetcher.Config{
			MaxContentKB: cfg.Fetch.MaxContentKB,
			Redact:       !cfg.Fetch.DisableRedaction,
		}, logger.Named("fetcher"))

		gen, err := embeddings.NewGenerator(generatorConfig(cfg), logger.Named("embeddings"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create embedding generator: %w", err)
		}
		closers = append(closers, func() { _ = gen.Close() })
		embed = gen

		store, err = vectorstore.NewStore(cfg, logger.Named("vectorstore"))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create vector store: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })
	}

	orch, err := pipeline.New(pcfg, client, fetch, embed, store, logger.Named("pipeline"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

func generatorConfig(cfg *config.Config) embeddings.GeneratorConfig {
	return embeddings.GeneratorConfig{
		Provider: embeddings.ProviderConfig{
			Provider:  cfg.Embeddings.Provider,
			Model:     cfg.Embeddings.Model,
			BaseURL:   cfg.Embeddings.BaseURL,
			CacheDir:  cfg.Embeddings.CacheDir,
			MaxLength: cfg.Embeddings.MaxTokens,
		},
		MaxTokens: cfg.Embeddings.MaxTokens,
		CacheSize: cfg.Embeddings.CacheSize,
		Serialize: cfg.Embeddings.Serialize,
	}
}
