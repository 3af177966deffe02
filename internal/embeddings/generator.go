package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ErrGeneratorClosed is wrapped by Embed calls made after Close.
var ErrGeneratorClosed = errors.New("generator closed")

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Provider ProviderConfig

	// MaxTokens bounds the text passed to the model. Default: 512.
	MaxTokens int

	// CacheSize is the number of vectors kept in the LRU cache.
	// Zero disables caching.
	CacheSize int

	// Serialize admits one inference at a time.
	Serialize bool
}

// Option customizes a Generator.
type Option func(*Generator)

// WithProvider supplies a ready provider instead of building one from config.
// The Generator takes ownership and closes it.
func WithProvider(p Provider) Option {
	return func(g *Generator) {
		g.newProvider = func() (Provider, error) { return p, nil }
	}
}

// WithMetrics overrides the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// Generator produces one vector per text. It is safe for concurrent use.
type Generator struct {
	config      GeneratorConfig
	newProvider func() (Provider, error)
	logger      *zap.Logger
	metrics     *Metrics
	cache       *lru.Cache[string, []float32]

	once     sync.Once
	provider Provider
	initErr  error

	gate sync.Mutex

	// life is held for reading by Embed and for writing by Close.
	life   sync.RWMutex
	closed bool

	mu        sync.Mutex
	dimension int
}

// NewGenerator creates a Generator. The provider is not loaded until the
// first call to Embed.
func NewGenerator(cfg GeneratorConfig, logger *zap.Logger, opts ...Option) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}
	if cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("%w: max tokens must be positive: %d", ErrInvalidConfig, cfg.MaxTokens)
	}

	g := &Generator{
		config: cfg,
		logger: logger,
		newProvider: func() (Provider, error) {
			return NewProvider(cfg.Provider)
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(logger)
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating vector cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

func (g *Generator) init() (Provider, error) {
	g.once.Do(func() {
		start := time.Now()
		g.provider, g.initErr = g.newProvider()
		if g.initErr != nil {
			g.logger.Error("embedding provider initialization failed",
				zap.String("provider", g.config.Provider.Provider),
				zap.String("model", g.config.Provider.Model),
				zap.Error(g.initErr))
			return
		}
		g.logger.Info("embedding provider ready",
			zap.String("provider", g.config.Provider.Provider),
			zap.String("model", g.config.Provider.Model),
			zap.Duration("took", time.Since(start)))
	})
	if g.initErr != nil {
		return nil, fmt.Errorf("%w: provider unavailable: %v", ErrEmbeddingFailed, g.initErr)
	}
	return g.provider, nil
}

func (g *Generator) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(g.config.Provider.Model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Embed returns the vector for text after truncating it to MaxTokens.
// Every failure other than cancellation matches ErrEmbeddingFailed. The
// returned slice may be shared with the cache and must not be modified.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.life.RLock()
	defer g.life.RUnlock()
	if g.closed {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, ErrGeneratorClosed)
	}

	input := Truncate(text, g.config.MaxTokens)
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, ErrEmptyInput)
	}

	key := g.cacheKey(input)
	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			g.metrics.RecordCacheHit(ctx, g.config.Provider.Model)
			return v, nil
		}
	}

	p, err := g.init()
	if err != nil {
		return nil, err
	}

	if g.config.Serialize {
		g.gate.Lock()
		defer g.gate.Unlock()
	}

	start := time.Now()
	vectors, err := p.EmbedDocuments(ctx, []string{input})
	g.metrics.RecordGeneration(ctx, g.config.Provider.Model, "embed", time.Since(start), 1, err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: provider returned no vector", ErrEmbeddingFailed)
	}
	vec := vectors[0]
	if err := g.checkDimension(len(vec)); err != nil {
		return nil, err
	}

	if g.cache != nil {
		g.cache.Add(key, vec)
	}
	return vec, nil
}

// checkDimension fixes the dimension on the first vector and rejects any
// later vector of a different length.
func (g *Generator) checkDimension(n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dimension == 0 {
		g.dimension = n
		return nil
	}
	if n != g.dimension {
		return fmt.Errorf("%w: dimension mismatch: got %d, want %d", ErrEmbeddingFailed, n, g.dimension)
	}
	return nil
}

// Dimension returns the vector dimension, or 0 before the first vector.
func (g *Generator) Dimension() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dimension
}

// Close waits for in-flight Embed calls and releases the provider if it
// was initialized. Safe to call twice.
func (g *Generator) Close() error {
	g.life.Lock()
	defer g.life.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true

	g.once.Do(func() { g.initErr = ErrGeneratorClosed })
	if g.provider == nil {
		return nil
	}
	return g.provider.Close()
}
