package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// TenantRateLimiter keeps one token bucket per tenant
type TenantRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*tenantLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type tenantLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTenantRateLimiter allows perSecond requests per tenant with the given burst.
// A non-positive perSecond disables limiting.
func NewTenantRateLimiter(perSecond float64, burst int) *TenantRateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &TenantRateLimiter{
		limiters: make(map[string]*tenantLimiter),
		limit:    limit,
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether the tenant may make a request now
func (l *TenantRateLimiter) Allow(tenantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	tl, ok := l.limiters[tenantID]
	if !ok {
		l.evictIdle(now)
		tl = &tenantLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[tenantID] = tl
	}
	tl.lastSeen = now
	return tl.limiter.AllowN(now, 1)
}

// evictIdle drops buckets unused for idleTTL; callers hold mu
func (l *TenantRateLimiter) evictIdle(now time.Time) {
	for id, tl := range l.limiters {
		if now.Sub(tl.lastSeen) > l.idleTTL {
			delete(l.limiters, id)
		}
	}
}

// Middleware rejects requests over the tenant's rate with 429.
// Must run after TenantMiddleware.
func (l *TenantRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(GetTenantID(c)) {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too many catalogue requests, retry shortly",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
