package embeddings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	dim      int
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	err      error
	dims     []int // per-call override
	closed   atomic.Bool
	inputs   []string
	mu       sync.Mutex
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	n := f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if cur <= prev || f.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	f.mu.Lock()
	f.inputs = append(f.inputs, texts...)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	dim := f.dim
	if int(n) <= len(f.dims) {
		dim = f.dims[n-1]
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

func (f *fakeProvider) Dimension() int { return f.dim }

func (f *fakeProvider) Close() error {
	f.closed.Store(true)
	return nil
}

func newTestGenerator(t *testing.T, cfg GeneratorConfig, p Provider) *Generator {
	t.Helper()
	g, err := NewGenerator(cfg, nil, WithProvider(p))
	require.NoError(t, err)
	return g
}

func TestGenerator_LazyInitOnce(t *testing.T) {
	var builds atomic.Int32
	p := &fakeProvider{dim: 4}
	g, err := NewGenerator(GeneratorConfig{}, nil)
	require.NoError(t, err)
	g.newProvider = func() (Provider, error) {
		builds.Add(1)
		return p, nil
	}
	assert.Zero(t, builds.Load(), "provider must not load before first use")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Embed(context.Background(), "package main")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	require.NoError(t, g.Close())
	assert.True(t, p.closed.Load())
	assert.NoError(t, g.Close())
}

func TestGenerator_EmbedAfterClose(t *testing.T) {
	p := &fakeProvider{dim: 4}
	g := newTestGenerator(t, GeneratorConfig{CacheSize: 8}, p)

	_, err := g.Embed(context.Background(), "x = 1")
	require.NoError(t, err)
	require.NoError(t, g.Close())

	for _, text := range []string{"x = 1", "y = 2"} {
		_, err = g.Embed(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmbeddingFailed, text)
		assert.ErrorIs(t, err, ErrGeneratorClosed, text)
	}
	assert.Equal(t, int32(1), p.calls.Load(), "closed provider must not be called")
}

func TestGenerator_CloseBeforeFirstUse(t *testing.T) {
	var builds atomic.Int32
	g, err := NewGenerator(GeneratorConfig{}, nil)
	require.NoError(t, err)
	g.newProvider = func() (Provider, error) {
		builds.Add(1)
		return &fakeProvider{dim: 4}, nil
	}
	require.NoError(t, g.Close())

	_, err = g.Embed(context.Background(), "x = 1")
	assert.ErrorIs(t, err, ErrGeneratorClosed)
	assert.Zero(t, builds.Load())
}

func TestGenerator_InitFailure(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{}, nil)
	require.NoError(t, err)
	g.newProvider = func() (Provider, error) { return nil, errors.New("onnx runtime missing") }

	_, err = g.Embed(context.Background(), "x = 1")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	_, err = g.Embed(context.Background(), "x = 1")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.NoError(t, g.Close())
}

func TestGenerator_TruncatesBeforeEmbedding(t *testing.T) {
	p := &fakeProvider{dim: 4}
	g := newTestGenerator(t, GeneratorConfig{MaxTokens: 3}, p)

	_, err := g.Embed(context.Background(), "a b c d e f")
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c"}, p.inputs)
}

func TestGenerator_Cache(t *testing.T) {
	p := &fakeProvider{dim: 4}
	g := newTestGenerator(t, GeneratorConfig{CacheSize: 8, MaxTokens: 2}, p)
	ctx := context.Background()

	v1, err := g.Embed(ctx, "import os")
	require.NoError(t, err)
	v2, err := g.Embed(ctx, "import os")
	require.NoError(t, err)
	// Same truncated prefix shares a cache entry.
	v3, err := g.Embed(ctx, "import os.path")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, v1, v3)
	assert.Equal(t, int32(1), p.calls.Load())

	_, err = g.Embed(ctx, "import sys")
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestGenerator_DimensionFixedOnFirstVector(t *testing.T) {
	p := &fakeProvider{dims: []int{4, 4, 8}}
	g := newTestGenerator(t, GeneratorConfig{}, p)
	ctx := context.Background()

	_, err := g.Embed(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, 4, g.Dimension())

	_, err = g.Embed(ctx, "two")
	require.NoError(t, err)

	_, err = g.Embed(ctx, "three")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "dimension mismatch")
	assert.Equal(t, 4, g.Dimension())
}

func TestGenerator_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("provider error", func(t *testing.T) {
		g := newTestGenerator(t, GeneratorConfig{}, &fakeProvider{err: errors.New("boom")})
		_, err := g.Embed(ctx, "x")
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("empty vector", func(t *testing.T) {
		g := newTestGenerator(t, GeneratorConfig{}, &fakeProvider{dim: 0})
		_, err := g.Embed(ctx, "x")
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("blank text", func(t *testing.T) {
		p := &fakeProvider{dim: 4}
		g := newTestGenerator(t, GeneratorConfig{}, p)
		_, err := g.Embed(ctx, " \n\t ")
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Zero(t, p.calls.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		g := newTestGenerator(t, GeneratorConfig{}, &fakeProvider{dim: 4})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := g.Embed(cctx, "x")
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrEmbeddingFailed)
	})
}

func TestGenerator_Serialize(t *testing.T) {
	for _, serialize := range []bool{true, false} {
		p := &fakeProvider{dim: 4, delay: 20 * time.Millisecond}
		g := newTestGenerator(t, GeneratorConfig{Serialize: serialize}, p)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := g.Embed(context.Background(), string(rune('a'+i)))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		if serialize {
			assert.Equal(t, int32(1), p.maxSeen.Load())
		} else {
			assert.Greater(t, p.maxSeen.Load(), int32(1))
		}
	}
}
