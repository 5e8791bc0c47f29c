package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
)

// RateLimiter is a fixed-window request counter per key.
// Expired windows are pruned lazily, at most once per window.
type RateLimiter struct {
	mu         sync.Mutex
	windows    map[string]*rateWindow
	limit      int
	window     time.Duration
	now        func() time.Time
	lastPruned time.Time
}

type rateWindow struct {
	used    int
	resetAt time.Time
}

// RateDecision is the outcome of one Allow call
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiterOption configures a RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithRateLimitClock overrides the time source
func WithRateLimitClock(now func() time.Time) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// NewRateLimiter allows limit requests per key in every window
func NewRateLimiter(limit int, window time.Duration, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*rateWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.lastPruned = rl.now()
	return rl
}

// Allow counts one request for key
func (rl *RateLimiter) Allow(key string) RateDecision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.pruneLocked(now)

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(rl.window)}
		rl.windows[key] = w
	}

	d := RateDecision{Limit: rl.limit, ResetAt: w.resetAt}
	if w.used >= rl.limit {
		return d
	}
	w.used++
	d.Allowed = true
	d.Remaining = rl.limit - w.used
	return d
}

// Tracked returns the number of keys with a live window
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPruned) < rl.window {
		return
	}
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
	rl.lastPruned = now
}

// RateLimit limits ledger requests per owner and client address
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, RateLimitKey)
}

// RateLimitByKey limits requests by a custom key. An empty key is not limited.
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		d := limiter.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			retry := int(math.Ceil(d.ResetAt.Sub(limiter.now()).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			abortWithError(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, "Too many requests. Please try again later.")
			return
		}
		c.Next()
	}
}

// RateLimitKey is the client address, prefixed by the ledger owner when one is known
func RateLimitKey(c *gin.Context) string {
	if owner := rateLimitOwner(c); owner != "" {
		return owner + ":" + c.ClientIP()
	}
	return c.ClientIP()
}

// rateLimitOwner returns the ledger owner from the resolved scope, claims or header
func rateLimitOwner(c *gin.Context) string {
	if scope, ok := GetLedgerScope(c); ok {
		return scope.OwnerID
	}
	if owner := GetJWTUserID(c); owner != "" {
		return owner
	}
	if owner := c.GetHeader(OwnerIDHeader); isValidScopeID(owner) {
		return owner
	}
	return ""
}
