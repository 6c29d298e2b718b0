// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-process token-bucket rate limiter with one
// bucket per caller (user id, else client IP), built on
// golang.org/x/time/rate. Idle buckets are evicted opportunistically.
// Probes and scrapes (/health, /metrics) are usually exempted via Skip.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its bucket.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys by X-User-ID when present and by client IP otherwise.
// The header is read directly because the limiter runs before Identity.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		if h := c.GetHeader(HeaderUserID); h != "" {
			return "user:" + h
		}
		return "ip:" + c.ClientIP()
	}
}

// SkipPaths exempts exact request paths from limiting.
func SkipPaths(paths ...string) func(*gin.Context) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(c *gin.Context) bool {
		_, ok := set[c.Request.URL.Path]
		return ok
	}
}

var rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "recorder",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the rate limiter.",
})

func init() {
	prometheus.MustRegister(rateLimited)
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds per-key buckets. It is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	key   KeyFunc
	// Skip exempts a request when it returns true.
	Skip func(*gin.Context) bool

	mu      sync.Mutex
	buckets map[string]*bucket
	idleTTL time.Duration
	sweepN  int
}

// NewRateLimiter allows rps requests per second per key with the given
// burst (at least 1).
func NewRateLimiter(rps float64, burst int, key KeyFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		key:     key,
		buckets: make(map[string]*bucket),
		idleTTL: 10 * time.Minute,
	}
}

// limiter returns the bucket for key. Every 5000 lookups, buckets idle for
// idleTTL are swept first, so a stale bucket is replaced rather than reused.
func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.sweepN++; rl.sweepN >= 5000 {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.sweepN = 0
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// Handler rejects over-limit requests with 429 and a Retry-After hint.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.Skip != nil && rl.Skip(c) {
			c.Next()
			return
		}
		now := time.Now()
		lim := rl.limiter(rl.key(c), now)
		r := lim.ReserveN(now, 1)
		if r.OK() && r.DelayFrom(now) == 0 {
			c.Next()
			return
		}
		retry := 1
		if r.OK() {
			retry = int(r.DelayFrom(now)/time.Second) + 1
			r.CancelAt(now)
		}
		rateLimited.Inc()
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
