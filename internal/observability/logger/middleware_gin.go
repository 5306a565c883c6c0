package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/atelier/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	headerRequestID     = "X-Request-Id"
	headerCorrelationID = "X-Correlation-Id"
)

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps a handler error to its public type and reason.
	ErrorClassifier func(err error) (string, string)
	// Quiet routes are logged at debug level.
	Quiet []string
}

// GinMiddleware stamps request and correlation ids on the context and logs one line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	quiet := map[string]struct{}{"/health": {}, "/metrics": {}}
	for _, r := range cfg.Quiet {
		quiet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx, correlationID := obscontext.EnsureCorrelationID(ctx)
		c.Header(headerRequestID, requestID)
		c.Header(headerCorrelationID, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if kind := c.GetString("action_kind"); kind != "" {
			fields = append(fields, zap.String("action_kind", kind))
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, cfg.errorFields(last.Err)...)
		}

		level := zapcore.InfoLevel
		if _, ok := quiet[route]; ok {
			level = zapcore.DebugLevel
		} else if status >= http.StatusInternalServerError {
			level = zapcore.ErrorLevel
		}
		if ce := FromContext(c.Request.Context()).Check(level, "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func (cfg MiddlewareConfig) errorFields(err error) []zap.Field {
	var errType, reason string
	if cfg.ErrorClassifier != nil {
		errType, reason = cfg.ErrorClassifier(err)
	}
	fields := []zap.Field{zap.String("error_type", errType), zap.String("error_reason", reason)}
	if cfg.Debug {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

func requestIDFor(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(headerRequestID))
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	return id
}
