package memcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string](time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCache_Expiry(t *testing.T) {
	now := time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC)
	c := New[int](5 * time.Minute).WithClock(func() time.Time { return now })

	c.Set("k", 42)

	now = now.Add(5*time.Minute - time.Second)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, got)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on read")
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	c := New[int](0)
	c.Set("k", 1)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("k", 1)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_GetOrFetch(t *testing.T) {
	c := New[string](time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		return "fetched", nil
	}

	v, hit, err := c.GetOrFetch(ctx, "k", fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fetched", v)

	v, hit, err = c.GetOrFetch(ctx, "k", fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "fetched", v)

	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_GetOrFetchError(t *testing.T) {
	c := New[string](time.Minute)
	ctx := context.Background()

	fetchErr := errors.New("upstream down")
	_, _, err := c.GetOrFetch(ctx, "k", func(context.Context) (string, error) {
		return "", fetchErr
	})
	require.ErrorIs(t, err, fetchErr)

	// Errors are not cached; the next call fetches again.
	v, hit, err := c.GetOrFetch(ctx, "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v)
}

func TestCache_GetOrFetchDeduplicates(t *testing.T) {
	c := New[int](time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrFetch(ctx, "k", fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give the goroutines a moment to pile onto the same flight.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2), "concurrent callers share fetches")
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}
