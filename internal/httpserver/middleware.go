package httpserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketplace-checkout/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	userHeader      = "X-User-ID"

	requestIDKey = "request_id"
	userIDKey    = "user_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func requestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		attrs := []any{
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if uid := c.GetString(userIDKey); uid != "" {
			attrs = append(attrs, "user_id", uid)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			l.ErrorContext(c.Request.Context(), "http request", attrs...)
			return
		}
		l.InfoContext(c.Request.Context(), "http request", attrs...)
	}
}

func observe(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, c.Writer.Status(), time.Since(start))
	}
}

// requireUser reads the caller identity set by the upstream gateway.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(userHeader))
		if uid == "" {
			abortWithError(c, http.StatusUnauthorized, "missing "+userHeader+" header")
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
