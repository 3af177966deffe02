package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrWriteFailed wraps every failed upsert.
	ErrWriteFailed = errors.New("index write failed")

	// ErrNotFound is returned by Get for an unknown namespace or ID.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")
)

// Metadata keys written with every record.
const (
	MetaRepository = "repository"
	MetaPath       = "path"
)

// Record is one indexed file.
type Record struct {
	// ID is unique within a namespace: "<owner>/<name>/<path>".
	ID string
	// Vector is the file embedding.
	Vector []float32
	// Metadata always carries repository and path.
	Metadata map[string]string
}

// Store is the index writer. Implementations are safe for concurrent use.
type Store interface {
	// Upsert inserts or overwrites records in namespace. Errors match
	// ErrWriteFailed.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Get returns the record stored under namespace and id.
	Get(ctx context.Context, namespace, id string) (*Record, error)

	// Close releases the underlying client or database.
	Close() error
}

// RecordID returns the record ID for path in namespace.
func RecordID(namespace, path string) string {
	return namespace + "/" + path
}
