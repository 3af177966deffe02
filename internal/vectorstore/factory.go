package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/repoindexer/internal/config"
	"go.uber.org/zap"
)

// NewStore creates the Store selected by cfg.VectorStore.Provider:
//   - "chromem" (default): embedded, in memory unless chromem.path is set
//   - "qdrant": external Qdrant over gRPC
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store Store
		err   error
	)
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		store, err = NewChromemStore(ChromemConfig{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		}, logger)
	case "qdrant":
		store, err = NewQdrantStore(QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			CollectionName: cfg.Qdrant.CollectionName,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			UseTLS:         cfg.Qdrant.UseTLS,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.VectorStore.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", cfg.VectorStore.Provider, err)
	}
	return store, nil
}
