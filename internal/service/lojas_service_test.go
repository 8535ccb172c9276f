package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/config"
	appErrors "github.com/vanzer80/solicitacao-materiais-api/pkg/errors"
)

// memoryCache is an in-process stand-in for the Redis cache repository.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func TestLojasListarFetchesAndCaches(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"loja_id":"12","loja_label":"Loja 12 - Centro"},{"loja_id":"7","loja_label":"Loja 7 - Norte"}]`))
	}))
	defer server.Close()

	cache := newMemoryCache()
	svc := NewLojasService(config.LojasConfig{URL: server.URL, CacheTTL: time.Minute}, cache, zap.NewNop())

	lojas, err := svc.Listar(context.Background())
	require.NoError(t, err)
	require.Len(t, lojas, 2)
	assert.Equal(t, "Loja 12 - Centro", lojas[0].LojaLabel, "directory comes back sorted by label")

	_, err = svc.Listar(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, hits, "second listing is served from cache")
}

func TestLojasListarAcceptsWrappedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lojas":[{"loja_id":"1","loja_label":"Loja 1"}]}`))
	}))
	defer server.Close()

	svc := NewLojasService(config.LojasConfig{URL: server.URL}, newMemoryCache(), zap.NewNop())

	lojas, err := svc.Listar(context.Background())
	require.NoError(t, err)
	require.Len(t, lojas, 1)
}

func TestLojasListarServesStaleOnUpstreamFailure(t *testing.T) {
	cache := newMemoryCache()
	stale := []models.Loja{{LojaID: "3", LojaLabel: "Loja 3 - Sul"}}
	require.NoError(t, cache.Set(context.Background(), lojasStaleCacheKey, stale, 0))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewLojasService(config.LojasConfig{URL: server.URL}, cache, zap.NewNop())

	lojas, err := svc.Listar(context.Background())
	require.NoError(t, err)
	require.Len(t, lojas, 1)
	assert.Equal(t, "Loja 3 - Sul", lojas[0].LojaLabel)
}

func TestLojasListarFailsWithoutAnyCopy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewLojasService(config.LojasConfig{URL: server.URL}, newMemoryCache(), zap.NewNop())

	_, err := svc.Listar(context.Background())
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUpstreamUnavailable.Code, appErr.Code)
}

func TestLojasInvalidateDropsFreshCopyOnly(t *testing.T) {
	cache := newMemoryCache()
	require.NoError(t, cache.Set(context.Background(), lojasCacheKey, []models.Loja{{LojaID: "1"}}, time.Minute))
	require.NoError(t, cache.Set(context.Background(), lojasStaleCacheKey, []models.Loja{{LojaID: "1"}}, 0))

	svc := NewLojasService(config.LojasConfig{}, cache, zap.NewNop())
	svc.Invalidate(context.Background())

	var fresh []models.Loja
	assert.Error(t, cache.Get(context.Background(), lojasCacheKey, &fresh))
	var stale []models.Loja
	assert.NoError(t, cache.Get(context.Background(), lojasStaleCacheKey, &stale))
}
