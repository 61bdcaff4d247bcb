package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"rpsnet/internal/logger"
	"rpsnet/internal/metrics"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

type clientInfo struct {
	start time.Time
	count int64
}

// memoryWindow is the fixed-window counter used when Redis is not
// configured.
type memoryWindow struct {
	mu      sync.Mutex
	window  time.Duration
	clients map[string]*clientInfo
}

func newMemoryWindow(window time.Duration) *memoryWindow {
	return &memoryWindow{window: window, clients: make(map[string]*clientInfo)}
}

func (w *memoryWindow) hit(ident string, now time.Time) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	ci, ok := w.clients[ident]
	if !ok || now.Sub(ci.start) > w.window {
		if len(w.clients) > 4096 {
			w.sweep(now)
		}
		w.clients[ident] = &clientInfo{start: now, count: 1}
		return 1
	}
	ci.count++
	return ci.count
}

func (w *memoryWindow) sweep(now time.Time) {
	for ident, ci := range w.clients {
		if now.Sub(ci.start) > w.window {
			delete(w.clients, ident)
		}
	}
}

// RateLimiter blocks clients that send more than max requests per window,
// keyed by client IP. Counts live in Redis when a client is given and in
// process memory otherwise. Redis errors let the request through.
type RateLimiter struct {
	max    int64
	window time.Duration
	redis  *redisWindow
	memory *memoryWindow
}

func NewRateLimiter(client *redis.Client, max int, window time.Duration) *RateLimiter {
	l := &RateLimiter{
		max:    int64(max),
		window: window,
		memory: newMemoryWindow(window),
	}
	if client != nil {
		l.redis = &redisWindow{client: client, window: window}
	}
	return l
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := c.ClientIP()

		var val int64
		if l.redis != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			n, err := l.redis.hit(ctx, ident)
			cancel()
			if err != nil {
				// fail-open
				logger.Warn("ratelimit: redis error", "error", err)
				c.Header("X-RateLimit-Error", "redis-error")
				c.Next()
				return
			}
			val = n
		} else {
			val = l.memory.hit(ident, time.Now())
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(l.max, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, l.max-val), 10))

		if val > l.max {
			metrics.RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(l.window.Seconds()),
			})
			return
		}

		metrics.RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
