package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "studytrack/backend/internal/errors"
)

const limiterResetInterval = time.Hour

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	limiters  map[string]*rate.Limiter
	lastReset time.Time
	now       func() time.Time
}

// NewRateLimiter allows perMinute requests per client IP with a burst of the
// same size. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
	if perMinute > 0 {
		rl.limit = rate.Limit(float64(perMinute) / 60)
		rl.burst = perMinute
	}
	rl.lastReset = rl.now()
	return rl
}

func (rl *RateLimiter) Allow(key string) bool {
	if rl.burst == 0 {
		return true
	}
	return rl.limiter(key).AllowN(rl.now(), 1)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Dropping idle buckets bounds memory.
	if rl.now().Sub(rl.lastReset) > limiterResetInterval {
		rl.limiters = make(map[string]*rate.Limiter)
		rl.lastReset = rl.now()
	}

	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			writeError(c, apperrors.TooManyRequests("too many requests, try again later"))
			return
		}
		c.Next()
	}
}
