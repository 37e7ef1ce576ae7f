package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kottz/kolmodin-go/internal/apperr"
	"github.com/kottz/kolmodin-go/internal/gateway"
	"github.com/kottz/kolmodin-go/internal/lobby"
	"github.com/kottz/kolmodin-go/internal/middleware"
	"github.com/kottz/kolmodin-go/internal/ratelimit"
)

// NewRouter wires the full middleware chain and the HTTP routes:
// GET /healthz, POST /api/create-lobby and GET /ws.
func NewRouter(manager *lobby.Manager, limiter *ratelimit.Limiter, corsOrigins []string) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(middleware.DefaultStructuredLoggerConfig()))
	r.Use(apperr.Recovery())
	r.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	r.Use(corsMiddleware(corsOrigins))
	r.Use(apperr.ErrorHandler())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/api/create-lobby", rateLimited(limiter), CreateLobbyHandler(manager))

	r.GET("/ws", func(c *gin.Context) {
		gateway.NewHandler(manager, originChecker(corsOrigins))(c)
	})

	return r
}

// rateLimited applies the rate limit to POST /api/create-lobby, the one
// write endpoint the HTTP surface exposes, keyed by remote address.
func rateLimited(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			apperr.Abort(c, apperr.Unavailable("rate limiter unavailable"))
			return
		}
		if !allowed {
			apperr.Abort(c, apperr.RateLimitExceeded())
			return
		}
		c.Next()
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	checkOrigin := originChecker(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && checkOrigin(c.Request) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	if len(allowedOrigins) == 0 {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if strings.EqualFold(allowed, origin) {
				return true
			}
		}
		return false
	}
}

