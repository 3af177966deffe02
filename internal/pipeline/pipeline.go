package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fyrsmithlabs/repoindexer/internal/config"
	"github.com/fyrsmithlabs/repoindexer/internal/fetcher"
	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
	"github.com/fyrsmithlabs/repoindexer/internal/logging"
	"github.com/fyrsmithlabs/repoindexer/internal/repocache"
	"github.com/fyrsmithlabs/repoindexer/internal/selector"
	"github.com/fyrsmithlabs/repoindexer/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/repoindexer/internal/pipeline")

// Directory is the hosting API surface the pipeline needs.
// *hosting.Client implements it.
type Directory interface {
	ListRepositories(ctx context.Context, account hosting.Account) ([]hosting.RepositoryRef, error)
	FetchDetails(ctx context.Context, repo hosting.RepositoryRef) (*hosting.RepositoryDetails, error)
	ListFiles(ctx context.Context, repo hosting.RepositoryRef, branches []string) (*hosting.Listing, error)
	FetchEnrichment(ctx context.Context, repo hosting.RepositoryRef) (*hosting.Enrichment, error)
}

// ContentFetcher retrieves file text. *fetcher.Fetcher implements it.
type ContentFetcher interface {
	Fetch(ctx context.Context, repo hosting.RepositoryRef, ref string, file selector.SelectedFile) (*fetcher.Result, error)
}

// Embedder turns text into a vector. *embeddings.Generator implements it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds orchestrator configuration.
type Config struct {
	// Workers bounds concurrently processed repositories. Default: 4
	Workers int

	// Branches is the ordered branch fallback list.
	Branches []string

	// UseDefaultBranch tries the repository's default branch first.
	UseDefaultBranch bool

	// Policy is the file selection policy.
	Policy selector.Policy

	// Enrich gathers languages, contributors and commits per repository.
	Enrich bool

	// RichMetadata adds repository details to every record.
	RichMetadata bool

	// SkipIndexing lists and selects files without fetching or writing.
	SkipIndexing bool
}

// ConfigFrom maps the application configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Workers:          cfg.Pipeline.Workers,
		Branches:         cfg.Hosting.Branches,
		UseDefaultBranch: cfg.Hosting.UseDefaultBranch,
		Policy: selector.Policy{
			Extensions: cfg.Selection.Extensions,
			MaxSizeKB:  cfg.Selection.MaxSizeKB,
			Exclude:    cfg.Selection.Exclude,
		},
		Enrich:       cfg.Pipeline.Enrich,
		RichMetadata: cfg.VectorStore.Metadata == "rich",
	}
}

// Orchestrator runs the crawl. One Orchestrator may serve several runs
// sequentially or concurrently; each run gets its own details cache.
type Orchestrator struct {
	config  Config
	dir     Directory
	fetch   ContentFetcher
	embed   Embedder
	store   vectorstore.Store
	logger  *zap.Logger
	onState ProgressCallback
}

// New creates an Orchestrator. fetch, embed and store may be nil only when
// cfg.SkipIndexing is set.
func New(cfg Config, dir Directory, fetch ContentFetcher, embed Embedder, store vectorstore.Store, logger *zap.Logger) (*Orchestrator, error) {
	if dir == nil {
		return nil, errors.New("pipeline: directory is required")
	}
	if !cfg.SkipIndexing && (fetch == nil || embed == nil || store == nil) {
		return nil, errors.New("pipeline: fetcher, embedder and store are required unless indexing is skipped")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if len(cfg.Branches) == 0 {
		cfg.Branches = []string{"main", "master"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		config: cfg,
		dir:    dir,
		fetch:  fetch,
		embed:  embed,
		store:  store,
		logger: logger,
	}, nil
}

// OnProgress sets the progress callback.
func (o *Orchestrator) OnProgress(cb ProgressCallback) {
	o.onState = cb
}

// Run crawls the account named by accountRef. It returns an error without a
// summary when the reference is invalid or enumeration fails. When ctx is
// canceled mid-run it returns the partial summary together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, accountRef string) (*Summary, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	var mu sync.Mutex
	report := func(p Progress) {
		if o.onState == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		o.onState(p)
	}
	report(Progress{State: StateInit})

	account, err := hosting.ParseAccount(accountRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	ctx = logging.WithAccount(ctx, account.Login)
	logger := o.logger.With(logging.ContextFields(ctx)...)
	span.SetAttributes(attribute.String("account", account.Login))

	report(Progress{State: StateEnumerating})
	repos, err := o.dir.ListRepositories(ctx, account)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("repository enumeration failed", zap.Error(err))
		return nil, fmt.Errorf("enumerating repositories of %s: %w", account, err)
	}
	logger.Info("repositories enumerated", zap.Int("count", len(repos)))
	span.SetAttributes(attribute.Int("repositories", len(repos)))

	report(Progress{State: StateProcessing, Total: len(repos)})
	cache := repocache.New(o.dir.FetchDetails)
	reports := make([]RepositoryReport, len(repos))
	for i, repo := range repos {
		reports[i] = RepositoryReport{Repository: repo.FullName(), Status: StatusCanceled}
	}

	var (
		g         errgroup.Group
		completed int
		countMu   sync.Mutex
	)
	g.SetLimit(o.config.Workers)
	for i, repo := range repos {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ActiveWorkers.Inc()
			defer ActiveWorkers.Dec()

			r := o.processRepository(ctx, cache, repo)
			reports[i] = r
			recordReport(r)

			countMu.Lock()
			completed++
			done := completed
			countMu.Unlock()
			report(Progress{State: StateProcessing, Repository: r.Repository, Completed: done, Total: len(repos)})
			return nil
		})
	}
	_ = g.Wait()

	summary := summarize(account.Login, reports)
	summary.Analyze = o.config.SkipIndexing
	summary.Duration = time.Since(start)

	report(Progress{State: StateDone, Completed: len(repos) - summary.RepositoriesCanceled, Total: len(repos)})
	logger.Info("run complete",
		zap.Int("repositories_processed", summary.RepositoriesProcessed),
		zap.Int("repositories_failed", summary.RepositoriesFailed),
		zap.Int("files_indexed", summary.FilesIndexed),
		zap.Int("files_skipped", summary.FilesSkipped),
		zap.Int("files_failed", summary.FilesFailed),
		zap.Duration("duration", summary.Duration),
	)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled")
		return summary, err
	}
	span.SetStatus(codes.Ok, "success")
	return summary, nil
}

// branches returns the branch fallback list for a repository.
func (o *Orchestrator) branches(details *hosting.RepositoryDetails) []string {
	if !o.config.UseDefaultBranch || details == nil || details.DefaultBranch == "" {
		return o.config.Branches
	}
	return append([]string{details.DefaultBranch}, o.config.Branches...)
}

func (o *Orchestrator) processRepository(ctx context.Context, cache *repocache.Cache, repo hosting.RepositoryRef) RepositoryReport {
	start := time.Now()
	defer func() { RepositoryDuration.Observe(time.Since(start).Seconds()) }()

	ctx = logging.WithRepository(ctx, repo.FullName())
	ctx, span := tracer.Start(ctx, "pipeline.ProcessRepository")
	defer span.End()
	span.SetAttributes(attribute.String("repository", repo.FullName()))
	logger := o.logger.With(logging.ContextFields(ctx)...)

	r := RepositoryReport{Repository: repo.FullName()}
	if ctx.Err() != nil {
		r.Status = StatusCanceled
		return r
	}
	fail := func(stage string, err error) RepositoryReport {
		if ctx.Err() != nil {
			r.Status = StatusCanceled
		} else {
			r.Status = StatusFailed
		}
		r.Error = fmt.Sprintf("%s: %v", stage, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, r.Error)
		logger.Warn("repository failed", zap.String("stage", stage), zap.Error(err))
		return r
	}

	details, err := cache.GetOrFetch(ctx, repo)
	if err != nil {
		return fail("details", err)
	}
	r.Details = details

	if o.config.Enrich {
		enrichment, err := o.dir.FetchEnrichment(ctx, repo)
		if err != nil {
			logger.Debug("enrichment incomplete", zap.Error(err))
		}
		r.Enrichment = enrichment
	}

	listing, err := o.dir.ListFiles(ctx, repo, o.branches(details))
	if err != nil {
		return fail("listing", err)
	}
	r.Branch = listing.Branch
	r.Truncated = listing.Truncated

	sel := selector.Classify(listing.Files, o.config.Policy)
	r.FilesListed = len(listing.Files)
	r.FilesSelected = len(sel.Selected)
	r.FilesIgnored = sel.Ignored
	r.SkippedSize = len(sel.Oversized)
	for _, f := range sel.Oversized {
		logger.Debug("file above size ceiling", zap.String("path", f.Path), zap.Float64("size_kb", f.SizeKB))
	}

	if o.config.SkipIndexing {
		r.Status = StatusAnalyzed
		logger.Info("repository analyzed",
			zap.String("branch", r.Branch),
			zap.Int("selected", r.FilesSelected))
		return r
	}

	for _, file := range sel.Selected {
		if ctx.Err() != nil {
			r.Status = StatusCanceled
			return r
		}
		o.indexFile(ctx, logger, repo, details, listing.Branch, file, &r)
	}
	if ctx.Err() != nil {
		r.Status = StatusCanceled
		return r
	}

	r.Status = StatusIndexed
	span.SetAttributes(
		attribute.Int("files_indexed", r.FilesIndexed),
		attribute.Int("files_skipped", r.FilesSkipped()),
		attribute.Int("files_failed", r.FilesFailed),
	)
	span.SetStatus(codes.Ok, "success")
	logger.Info("repository indexed",
		zap.String("branch", r.Branch),
		zap.Int("indexed", r.FilesIndexed),
		zap.Int("skipped", r.FilesSkipped()),
		zap.Int("failed", r.FilesFailed))
	return r
}

// indexFile fetches, embeds and writes one file, counting the outcome in r.
// Cancellation leaves r untouched for the file.
func (o *Orchestrator) indexFile(ctx context.Context, logger *zap.Logger, repo hosting.RepositoryRef, details *hosting.RepositoryDetails, branch string, file selector.SelectedFile, r *RepositoryReport) {
	log := logger.With(zap.String("path", file.Path))

	content, err := o.fetch.Fetch(ctx, repo, branch, file)
	if err != nil {
		if ctx.Err() == nil {
			r.SkippedContent++
			log.Debug("content unavailable", zap.Error(err))
		}
		return
	}
	r.SecretsRedacted += content.Redactions

	vector, err := o.embed.Embed(ctx, content.Text)
	if err != nil {
		if ctx.Err() == nil {
			r.SkippedEmbedding++
			log.Debug("embedding failed", zap.Error(err))
		}
		return
	}

	namespace := repo.FullName()
	record := vectorstore.Record{
		ID:       vectorstore.RecordID(namespace, file.Path),
		Vector:   vector,
		Metadata: o.metadata(namespace, branch, file, details),
	}
	if err := o.store.Upsert(ctx, namespace, []vectorstore.Record{record}); err != nil {
		if ctx.Err() == nil {
			r.FilesFailed++
			log.Warn("index write failed", zap.Error(err))
		}
		return
	}
	r.FilesIndexed++
}

func (o *Orchestrator) metadata(namespace, branch string, file selector.SelectedFile, details *hosting.RepositoryDetails) map[string]string {
	md := map[string]string{
		vectorstore.MetaRepository: namespace,
		vectorstore.MetaPath:       file.Path,
	}
	if !o.config.RichMetadata {
		return md
	}
	md["branch"] = branch
	md["sha"] = file.SHA
	md["size_kb"] = strconv.FormatFloat(file.SizeKB, 'f', 2, 64)
	if details != nil {
		md["description"] = details.Description
		md["language"] = details.Language
		md["stars"] = strconv.Itoa(details.Stars)
		md["url"] = details.HTMLURL
	}
	return md
}
