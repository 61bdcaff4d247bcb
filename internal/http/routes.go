package http

import (
	"net/http"
	"time"

	"rpsnet/internal/http/handlers"
	"rpsnet/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

type Options struct {
	Version string
	// State reports the local session state for the health endpoints.
	State   func() string
	Redis   *redis.Client

	// WS is the WebSocket accept point mounted at /ws. Nil leaves the
	// route out.
	WS           http.Handler
	WSRateLimit  int
	WSRateWindow time.Duration
}

// NewRouter builds the ops engine: health probes, Prometheus metrics and
// the optional WebSocket binding.
func NewRouter(o Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLog())

	health := handlers.NewHealthHandler(o.Redis, o.State, o.Version)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if o.WS != nil {
		limit, window := o.WSRateLimit, o.WSRateWindow
		if limit <= 0 {
			limit = 10
		}
		if window <= 0 {
			window = time.Minute
		}
		rl := middleware.NewRateLimiter(o.Redis, limit, window)
		r.GET("/ws", rl.Middleware(), gin.WrapH(o.WS))
	}

	return r
}
