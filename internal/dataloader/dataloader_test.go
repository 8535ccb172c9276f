package dataloader

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

func countingBatchFn(calls *int32, mu *sync.Mutex, seen *[][]string) BatchFunc[int] {
	return func(ctx context.Context, keys []string) (map[string]int, error) {
		atomic.AddInt32(calls, 1)
		mu.Lock()
		*seen = append(*seen, append([]string(nil), keys...))
		mu.Unlock()

		out := make(map[string]int, len(keys))
		for _, k := range keys {
			out[k] = len(k)
		}
		return out, nil
	}
}

func TestLoaderCoalescesConcurrentLoads(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var seen [][]string
	loader := New(countingBatchFn(&calls, &mu, &seen), Config{Wait: 5 * time.Millisecond})

	var wg sync.WaitGroup
	keys := []string{"a", "bb", "ccc"}
	results := make([]int, len(keys))
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			v, err := loader.Load(context.Background(), key)
			assert.NoError(t, err)
			results[i] = v
		}(i, key)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []int{1, 2, 3}, results)
	mu.Lock()
	require.Len(t, seen, 1)
	assert.ElementsMatch(t, keys, seen[0])
	mu.Unlock()
}

func TestLoaderMemoizesAcrossBatches(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var seen [][]string
	loader := New(countingBatchFn(&calls, &mu, &seen), Config{})

	v, err := loader.Load(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = loader.Load(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoaderNegativeCachesMissingKeys(t *testing.T) {
	var calls int32
	batchFn := func(ctx context.Context, keys []string) (map[string]int, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]int{}, nil
	}
	loader := New(batchFn, Config{})

	v, err := loader.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = loader.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a miss must be cached, not re-queried")
}

func TestLoaderClearForcesRequery(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var seen [][]string
	loader := New(countingBatchFn(&calls, &mu, &seen), Config{})

	_, err := loader.Load(context.Background(), "key")
	require.NoError(t, err)

	loader.Clear("key")

	_, err = loader.Load(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoaderClearDuringBatchingWindowResolvesBothCallers(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var seen [][]string
	loader := New(countingBatchFn(&calls, &mu, &seen), Config{Wait: 50 * time.Millisecond})

	first := make(chan int, 1)
	go func() {
		v, err := loader.Load(context.Background(), "key")
		assert.NoError(t, err)
		first <- v
	}()

	// Invalidate and re-load while the batch is still collecting. The
	// second load must rejoin the pending thunk so the first caller is
	// resolved by the same dispatch.
	time.Sleep(5 * time.Millisecond)
	loader.Clear("key")
	v, err := loader.Load(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	select {
	case got := <-first:
		assert.Equal(t, 3, got)
	case <-time.After(2 * time.Second):
		t.Fatal("first Load never resolved after Clear during the batching window")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "both callers share one dispatch")
}

func TestLoaderClearAll(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var seen [][]string
	loader := New(countingBatchFn(&calls, &mu, &seen), Config{})

	_, err := loader.LoadMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	loader.ClearAll()

	_, err = loader.LoadMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoaderFailedBatchIsNotCached(t *testing.T) {
	var calls int32
	batchErr := errors.New("storage unavailable")
	batchFn := func(ctx context.Context, keys []string) (map[string]int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, batchErr
		}
		out := make(map[string]int, len(keys))
		for _, k := range keys {
			out[k] = 42
		}
		return out, nil
	}
	loader := New(batchFn, Config{})

	_, err := loader.Load(context.Background(), "key")
	require.ErrorIs(t, err, batchErr)

	v, err := loader.Load(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoaderMaxBatchDispatchesEarly(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var seen [][]string
	loader := New(countingBatchFn(&calls, &mu, &seen), Config{Wait: time.Hour, MaxBatch: 2})

	results, err := loader.LoadMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, results)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoaderContextCancellation(t *testing.T) {
	loader := New(func(ctx context.Context, keys []string) (map[string]int, error) {
		time.Sleep(50 * time.Millisecond)
		return map[string]int{}, nil
	}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, "key")
	assert.ErrorIs(t, err, context.Canceled)
}
