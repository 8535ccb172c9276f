package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/vanzer80/solicitacao-materiais-api/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRateLimitedRouter(requests int, window time.Duration) *gin.Engine {
	rl := NewRateLimiter(requests, window)
	cfg := config.RateLimitConfig{Enabled: true}
	router := gin.New()
	router.Use(RateLimit(rl, cfg))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/lojas", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func performRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:12345"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitBlocksAfterBudget(t *testing.T) {
	router := newRateLimitedRouter(3, time.Minute)

	for i := 0; i < 3; i++ {
		w := performRequest(router, http.MethodGet, "/api/v1/lojas")
		assert.Equal(t, http.StatusOK, w.Code, "request %d inside the budget", i+1)
	}

	w := performRequest(router, http.MethodGet, "/api/v1/lojas")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Muitas requisições")
}

func TestRateLimitSkipsHealth(t *testing.T) {
	router := newRateLimitedRouter(1, time.Minute)

	for i := 0; i < 5; i++ {
		w := performRequest(router, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	router := gin.New()
	router.Use(RateLimit(rl, config.RateLimitConfig{Enabled: false}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := performRequest(router, http.MethodGet, "/x")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "a saturated client must not affect others")
}

func TestSubmitRateLimitOnlyCountsPosts(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	cfg := config.RateLimitConfig{Enabled: true}
	router := gin.New()
	router.Use(SubmitRateLimit(rl, cfg))
	router.POST("/solicitacoes", func(c *gin.Context) { c.Status(http.StatusCreated) })
	router.GET("/solicitacoes", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(router, http.MethodPost, "/solicitacoes")
	assert.Equal(t, http.StatusCreated, w.Code)
	w = performRequest(router, http.MethodPost, "/solicitacoes")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads never consume the submit budget.
	w = performRequest(router, http.MethodGet, "/solicitacoes")
	assert.Equal(t, http.StatusOK, w.Code)
}
