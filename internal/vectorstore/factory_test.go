package vectorstore

import (
	"testing"

	"github.com/fyrsmithlabs/repoindexer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	cfg := config.Default()
	store, err := NewStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ChromemStore{}, store)
	require.NoError(t, store.Close())

	cfg.VectorStore.Provider = "pinecone"
	_, err = NewStore(cfg, nil)
	assert.ErrorContains(t, err, "unsupported vectorstore provider")
}
