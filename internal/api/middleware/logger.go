package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID propagates the caller's request id or assigns a new one, and
// attaches a logger carrying it to the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)

		reqLog := log.With().Str(requestIDKey, id).Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))
		c.Next()
	}
}

// Logger writes one access line per request. Paths in quiet are only logged
// when they fail.
func Logger(quiet ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		if _, ok := skip[path]; ok && status < http.StatusBadRequest {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		l := zerolog.Ctx(c.Request.Context())
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = l.Error()
		case status >= http.StatusBadRequest:
			event = l.Warn()
		default:
			event = l.Info()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("route", c.FullPath()).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Recovery turns a panic into a JSON 500 that echoes the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				zerolog.Ctx(c.Request.Context()).Error().
					Interface("panic", rec).
					Str("path", c.Request.URL.Path).
					Msg("recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal server error",
					"request_id": c.GetString(requestIDKey),
				})
			}
		}()
		c.Next()
	}
}
