package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("github.com/fyrsmithlabs/repoindexer/internal/vectorstore/chromem")

const providerChromem = "chromem"

// ChromemConfig holds configuration for the embedded store.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	// A leading ~ expands to the home directory.
	Path string

	// Compress gzips the persisted gob files.
	Compress bool
}

// ChromemStore implements Store with chromem-go, one collection per namespace.
//
// chromem normalizes vectors on insert, so Get returns unit-length vectors.
type ChromemStore struct {
	db     *chromem.DB
	logger *zap.Logger
}

// NewChromemStore opens (or creates) the embedded database.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Path == "" {
		logger.Info("ChromemStore initialized in memory")
		return &ChromemStore{db: chromem.NewDB(), logger: logger}, nil
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}
	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("ChromemStore initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
	)
	return &ChromemStore{db: db, logger: logger}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// errNoEmbedding is returned if chromem ever asks to embed text itself;
// every record arrives with its vector.
var errNoEmbedding = errors.New("chromem store does not embed text")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// Upsert writes records into the namespace collection. chromem replaces
// documents with an existing ID.
func (s *ChromemStore) Upsert(ctx context.Context, namespace string, records []Record) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.Int("record_count", len(records)),
	)

	start := time.Now()
	defer func() {
		recordUpsert(providerChromem, len(records), start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "success")
	}()

	if err := validateUpsert(namespace, records); err != nil {
		return err
	}

	collection, err := s.db.GetOrCreateCollection(namespace, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("%w: collection %s: %v", ErrWriteFailed, namespace, err)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Metadata:  r.Metadata,
			Embedding: r.Vector,
			Content:   r.Metadata[MetaPath],
		}
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	s.logger.Debug("upserted records",
		zap.String("namespace", namespace),
		zap.Int("count", len(records)),
	)
	return nil
}

// Get returns the record stored under id.
func (s *ChromemStore) Get(ctx context.Context, namespace, id string) (*Record, error) {
	collection := s.db.GetCollection(namespace, noEmbedding)
	if collection == nil {
		return nil, fmt.Errorf("%w: namespace %s", ErrNotFound, namespace)
	}
	doc, err := collection.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}
	return &Record{ID: doc.ID, Vector: doc.Embedding, Metadata: doc.Metadata}, nil
}

// Count returns the number of records in namespace.
func (s *ChromemStore) Count(namespace string) int {
	collection := s.db.GetCollection(namespace, noEmbedding)
	if collection == nil {
		return 0
	}
	return collection.Count()
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}

func validateUpsert(namespace string, records []Record) error {
	if namespace == "" {
		return fmt.Errorf("%w: namespace required", ErrWriteFailed)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: no records", ErrWriteFailed)
	}
	dim := len(records[0].Vector)
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record ID required", ErrWriteFailed)
		}
		if len(r.Vector) == 0 || len(r.Vector) != dim {
			return fmt.Errorf("%w: record %s has vector length %d, want %d", ErrWriteFailed, r.ID, len(r.Vector), dim)
		}
	}
	return nil
}
