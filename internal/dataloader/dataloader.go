// Package dataloader provides a batching, memoizing cache used to coalesce
// the per-row lookups issued while rendering history listings into a small
// number of multi-key storage queries.
package dataloader

import (
	"context"
	"sync"
	"time"
)

// BatchFunc resolves a set of distinct keys in one storage query. Keys
// absent from the returned map resolve to the zero value of V, which is
// cached (negative caching) so repeated misses stay cheap.
type BatchFunc[V any] func(ctx context.Context, keys []string) (map[string]V, error)

// Config tunes the batching behaviour.
type Config struct {
	// Wait is the batching window: loads issued within it share one query.
	Wait time.Duration
	// MaxBatch dispatches early once this many distinct keys are pending.
	MaxBatch int
}

// Loader coalesces and memoizes single-key loads. It is safe for
// concurrent use; the memoization cache lives until Clear/ClearAll.
type Loader[V any] struct {
	batchFn  BatchFunc[V]
	wait     time.Duration
	maxBatch int

	mu      sync.Mutex
	cache   map[string]*thunk[V]
	pending *batch[V]
}

type thunk[V any] struct {
	done  chan struct{}
	value V
	err   error
}

type batch[V any] struct {
	ctx        context.Context
	keys       []string
	thunks     map[string]*thunk[V]
	dispatched bool
}

// New constructs a loader around the batch function.
func New[V any](batchFn BatchFunc[V], cfg Config) *Loader[V] {
	if cfg.Wait <= 0 {
		cfg.Wait = 2 * time.Millisecond
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 100
	}
	return &Loader[V]{
		batchFn:  batchFn,
		wait:     cfg.Wait,
		maxBatch: cfg.MaxBatch,
		cache:    make(map[string]*thunk[V]),
	}
}

// Load returns the value for key, joining an in-flight batch or the
// memoization cache when possible.
func (l *Loader[V]) Load(ctx context.Context, key string) (V, error) {
	return l.loadThunk(ctx, key).wait(ctx)
}

// LoadMany resolves several keys, sharing batches between them. Results
// come back in key order; the first error encountered is returned.
func (l *Loader[V]) LoadMany(ctx context.Context, keys []string) ([]V, error) {
	thunks := make([]*thunk[V], len(keys))
	for i, key := range keys {
		thunks[i] = l.loadThunk(ctx, key)
	}

	results := make([]V, len(keys))
	var firstErr error
	for i, t := range thunks {
		v, err := t.wait(ctx)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		results[i] = v
	}
	return results, firstErr
}

// Clear drops the key from the memoization cache so the next Load
// re-queries storage. In-flight waiters still receive the old result.
func (l *Loader[V]) Clear(key string) {
	l.mu.Lock()
	delete(l.cache, key)
	l.mu.Unlock()
}

// ClearAll empties the memoization cache.
func (l *Loader[V]) ClearAll() {
	l.mu.Lock()
	l.cache = make(map[string]*thunk[V])
	l.mu.Unlock()
}

func (l *Loader[V]) loadThunk(ctx context.Context, key string) *thunk[V] {
	l.mu.Lock()
	if t, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return t
	}

	// A cleared key may still sit in the undispatched batch. Rejoin its
	// thunk instead of replacing it, or the earlier caller would wait on
	// a thunk the dispatch no longer knows about.
	if l.pending != nil {
		if t, ok := l.pending.thunks[key]; ok {
			l.cache[key] = t
			l.mu.Unlock()
			return t
		}
	}

	t := &thunk[V]{done: make(chan struct{})}
	l.cache[key] = t

	if l.pending == nil {
		b := &batch[V]{
			ctx:    ctx,
			thunks: make(map[string]*thunk[V]),
		}
		l.pending = b
		go l.scheduleDispatch(b)
	}
	b := l.pending
	b.keys = append(b.keys, key)
	b.thunks[key] = t

	if len(b.keys) >= l.maxBatch {
		l.dispatchLocked(b)
	}
	l.mu.Unlock()

	return t
}

func (l *Loader[V]) scheduleDispatch(b *batch[V]) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	<-timer.C

	l.mu.Lock()
	l.dispatchLocked(b)
	l.mu.Unlock()
}

// dispatchLocked detaches the batch and runs it. Callers hold l.mu.
func (l *Loader[V]) dispatchLocked(b *batch[V]) {
	if b.dispatched {
		return
	}
	b.dispatched = true
	if l.pending == b {
		l.pending = nil
	}

	go func() {
		values, err := l.batchFn(b.ctx, b.keys)
		if err != nil {
			// Fail only this batch's thunks and forget them, so the
			// failure is not memoized and later loads re-query.
			l.mu.Lock()
			for key, t := range b.thunks {
				if l.cache[key] == t {
					delete(l.cache, key)
				}
			}
			l.mu.Unlock()
			for _, t := range b.thunks {
				t.err = err
				close(t.done)
			}
			return
		}

		for key, t := range b.thunks {
			t.value = values[key]
			close(t.done)
		}
	}()
}

func (t *thunk[V]) wait(ctx context.Context) (V, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
