package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"barberops-backend/config"
)

// Limit is a per-client request budget: Requests per Window, with bursts
// allowed up to Requests.
type Limit struct {
	Requests int
	Window   time.Duration
}

// AuthLimit is the budget for the credential endpoints (register, login,
// refresh, password reset). AUTH_RATE_LIMIT overrides the requests per
// minute.
func AuthLimit() Limit {
	limit := Limit{Requests: 10, Window: time.Minute}
	if raw := config.GetEnv("AUTH_RATE_LIMIT", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit.Requests = n
		}
	}
	return limit
}

type bucket struct {
	remaining float64
	seen      time.Time
}

const bucketSweepInterval = 5 * time.Minute

// RateLimiter throttles clients by IP with a token bucket per client.
// Stale buckets are swept opportunistically during Allow, so an idle
// limiter holds no goroutine and the map does not grow with every IP
// ever seen.
type RateLimiter struct {
	mu        sync.Mutex
	limit     Limit
	perSecond float64
	buckets   map[string]*bucket
	nextSweep time.Time
}

func NewRateLimiter(limit Limit) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		perSecond: float64(limit.Requests) / limit.Window.Seconds(),
		buckets:   make(map[string]*bucket),
		nextSweep: time.Now().Add(bucketSweepInterval),
	}
}

// Allow spends one token for the client, refilling by elapsed time.
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.nextSweep) {
		for ip, b := range rl.buckets {
			if now.Sub(b.seen) > 2*bucketSweepInterval {
				delete(rl.buckets, ip)
			}
		}
		rl.nextSweep = now.Add(bucketSweepInterval)
	}

	b, ok := rl.buckets[clientIP]
	if !ok {
		rl.buckets[clientIP] = &bucket{remaining: float64(rl.limit.Requests) - 1, seen: now}
		return true
	}

	b.remaining += now.Sub(b.seen).Seconds() * rl.perSecond
	if full := float64(rl.limit.Requests); b.remaining > full {
		b.remaining = full
	}
	b.seen = now

	if b.remaining < 1 {
		return false
	}
	b.remaining--
	return true
}

// Middleware rejects over-budget clients with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many attempts. Please try again later."})
			c.Abort()
			return
		}
		c.Next()
	}
}
