package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vanzer80/solicitacao-materiais-api/pkg/config"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/response"
)

// rateLimitMessage follows the wording the intake form shows technicians.
const rateLimitMessage = "Muitas requisições. Aguarde um momento e tente novamente."

// clientLimiter tracks one IP's token bucket and its last activity for
// eviction.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-IP token bucket. Buckets idle for over an hour
// are evicted to keep memory bounded.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

// NewRateLimiter derives a limiter from a request count per window.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
	}
	go rl.evictLoop()
	return rl
}

// Allow reports whether the client may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.clients[clientIP]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientIP] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-time.Hour)
		rl.mu.Lock()
		for ip, entry := range rl.clients {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit wires a limiter into gin. Health and metrics probes bypass it.
func RateLimit(rl *RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || rl == nil {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}
		if !rl.Allow(c.ClientIP()) {
			response.TooManyRequests(c, rateLimitMessage)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SubmitRateLimit is the tighter bucket applied only to the submission
// endpoint, on top of the global one.
func SubmitRateLimit(rl *RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || rl == nil {
			c.Next()
			return
		}
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if !rl.Allow(c.ClientIP()) {
			response.TooManyRequests(c, rateLimitMessage)
			c.Abort()
			return
		}
		c.Next()
	}
}
