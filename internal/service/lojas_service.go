package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/config"
	appErrors "github.com/vanzer80/solicitacao-materiais-api/pkg/errors"
)

const (
	lojasCacheKey      = "lojas:list"
	lojasStaleCacheKey = "lojas:list:stale"
)

type lojasCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// LojasService serves the store directory. The upstream spreadsheet is
// slow and occasionally unavailable, so responses are cached in Redis for
// a short TTL and a stale copy with no expiry backs the fresh one.
type LojasService struct {
	cfg        config.LojasConfig
	httpClient *http.Client
	cache      lojasCache
	logger     *zap.Logger
}

// NewLojasService constructs the service.
func NewLojasService(cfg config.LojasConfig, cache lojasCache, logger *zap.Logger) *LojasService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LojasService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger,
	}
}

// Listar returns the store directory, freshest copy first: TTL cache,
// then upstream, then the stale fallback.
func (s *LojasService) Listar(ctx context.Context) ([]models.Loja, error) {
	var cached []models.Loja
	if err := s.cache.Get(ctx, lojasCacheKey, &cached); err == nil {
		return cached, nil
	}

	lojas, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("lojas upstream fetch failed, trying stale copy", zap.Error(err))
		var stale []models.Loja
		if cacheErr := s.cache.Get(ctx, lojasStaleCacheKey, &stale); cacheErr == nil && len(stale) > 0 {
			return stale, nil
		}
		return nil, appErrors.ErrUpstreamUnavailable.Wrap(err)
	}

	if err := s.cache.Set(ctx, lojasCacheKey, lojas, s.cacheTTL()); err != nil {
		s.logger.Warn("lojas cache write failed", zap.Error(err))
	}
	if err := s.cache.Set(ctx, lojasStaleCacheKey, lojas, 0); err != nil {
		s.logger.Warn("lojas stale cache write failed", zap.Error(err))
	}
	return lojas, nil
}

// Invalidate drops the TTL cache so the next listing refetches. The stale
// copy is kept on purpose.
func (s *LojasService) Invalidate(ctx context.Context) {
	if deleter, ok := s.cache.(interface {
		Delete(ctx context.Context, key string) error
	}); ok {
		if err := deleter.Delete(ctx, lojasCacheKey); err != nil {
			s.logger.Warn("lojas cache invalidation failed", zap.Error(err))
		}
	}
}

func (s *LojasService) fetch(ctx context.Context) ([]models.Loja, error) {
	if s.cfg.URL == "" {
		return nil, fmt.Errorf("lojas url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build lojas request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch lojas: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lojas upstream answered %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read lojas response: %w", err)
	}

	lojas, err := parseLojas(body)
	if err != nil {
		return nil, err
	}

	sort.Slice(lojas, func(i, j int) bool { return lojas[i].LojaLabel < lojas[j].LojaLabel })
	return lojas, nil
}

// parseLojas accepts both upstream shapes: a bare JSON array and an
// object wrapping the array under "lojas".
func parseLojas(body []byte) ([]models.Loja, error) {
	var direct []models.Loja
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Lojas []models.Loja `json:"lojas"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Lojas != nil {
		return wrapped.Lojas, nil
	}
	return nil, fmt.Errorf("lojas response in unrecognized shape")
}

func (s *LojasService) cacheTTL() time.Duration {
	if s.cfg.CacheTTL > 0 {
		return s.cfg.CacheTTL
	}
	return 5 * time.Minute
}
