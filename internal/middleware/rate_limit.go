package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"clinicbook/internal/logging"
	"clinicbook/internal/pkg/response"
)

// rateLimiterStore holds a map of client IPs to their rate limiters.
type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	every    rate.Limit
	burst    int
	idle     time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterStore(perMinute int) *rateLimiterStore {
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &rateLimiterStore{
		limiters: make(map[string]*limiterEntry),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

// getLimiter returns the limiter for ip, creating one if it doesn't exist.
// Entries idle for longer than s.idle are dropped on the way.
func (s *rateLimiterStore) getLimiter(ip string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.limiters {
		if now.Sub(e.lastSeen) > s.idle {
			delete(s.limiters, key)
		}
	}

	e, exists := s.limiters[ip]
	if !exists {
		e = &limiterEntry{limiter: rate.NewLimiter(s.every, s.burst)}
		s.limiters[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// RateLimit limits requests per client IP. perMinute <= 0 disables it.
func RateLimit(perMinute int, log *zap.Logger) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	log = logging.OrNop(log)
	store := newRateLimiterStore(perMinute)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.getLimiter(ip, time.Now()).Allow() {
			log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
