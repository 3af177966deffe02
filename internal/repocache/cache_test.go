package repocache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/repoindexer/internal/hosting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrFetch_FetchesOncePerKey(t *testing.T) {
	var calls atomic.Int32
	c := New(func(_ context.Context, repo hosting.RepositoryRef) (*hosting.RepositoryDetails, error) {
		calls.Add(1)
		return &hosting.RepositoryDetails{Name: repo.Name, Stars: 3}, nil
	})
	ctx := context.Background()
	r1 := hosting.RepositoryRef{Owner: "alice", Name: "r1"}

	first, err := c.GetOrFetch(ctx, r1)
	require.NoError(t, err)
	second, err := c.GetOrFetch(ctx, r1)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.GetOrFetch(ctx, hosting.RepositoryRef{Owner: "alice", Name: "r2"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestGetOrFetch_ConcurrentFirstAccess(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New(func(_ context.Context, repo hosting.RepositoryRef) (*hosting.RepositoryDetails, error) {
		calls.Add(1)
		<-release
		return &hosting.RepositoryDetails{Name: repo.Name}, nil
	})
	r1 := hosting.RepositoryRef{Owner: "alice", Name: "r1"}

	const workers = 8
	results := make([]*hosting.RepositoryDetails, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := c.GetOrFetch(context.Background(), r1)
			assert.NoError(t, err)
			results[i] = d
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, d := range results {
		assert.Same(t, results[0], d)
	}
}

func TestGetOrFetch_FailuresNotCached(t *testing.T) {
	var calls atomic.Int32
	c := New(func(_ context.Context, repo hosting.RepositoryRef) (*hosting.RepositoryDetails, error) {
		if calls.Add(1) == 1 {
			return nil, &hosting.UpstreamError{Op: "fetch details", Status: 502, Err: errors.New("bad gateway")}
		}
		return &hosting.RepositoryDetails{Name: repo.Name}, nil
	})
	r1 := hosting.RepositoryRef{Owner: "alice", Name: "r1"}

	_, err := c.GetOrFetch(context.Background(), r1)
	require.Error(t, err)
	assert.ErrorIs(t, err, hosting.ErrUpstream)
	assert.Equal(t, 0, c.Len())

	d, err := c.GetOrFetch(context.Background(), r1)
	require.NoError(t, err)
	assert.Equal(t, "r1", d.Name)
	assert.Equal(t, int32(2), calls.Load())
}
