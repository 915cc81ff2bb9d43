package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/hvacform/errors"
)

// RateLimitConfig limits how often one client may hit a route.
type RateLimitConfig struct {
	// RequestsPerMinute allowed per key. Defaults to 60.
	RequestsPerMinute int
	// KeyFunc picks the key of a request. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit rejects requests over the per-key budget of a sliding one
// minute window with 429 and a Retry-After header.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}
	w := newWindow(cfg.RequestsPerMinute, time.Minute)

	return func(c *gin.Context) {
		wait := w.take(cfg.KeyFunc(c), time.Now())
		if wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			appErr := apperrors.RateLimited()
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Next()
	}
}

// IPBasedKey keys requests by client IP.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}

type window struct {
	mu    sync.Mutex
	limit int
	span  time.Duration
	hits  map[string][]time.Time
	swept time.Time
}

func newWindow(limit int, span time.Duration) *window {
	return &window{limit: limit, span: span, hits: make(map[string][]time.Time)}
}

// take records a hit for key at now. It returns zero when the hit is
// allowed, otherwise how long until the oldest hit leaves the window.
func (w *window) take(key string, now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.span)
	if now.Sub(w.swept) > w.span {
		for k, hits := range w.hits {
			if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
				delete(w.hits, k)
			}
		}
		w.swept = now
	}

	hits := w.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]
	if len(hits) >= w.limit {
		w.hits[key] = hits
		return hits[0].Sub(cutoff)
	}
	w.hits[key] = append(hits, now)
	return 0
}
