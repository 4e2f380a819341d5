package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/rl1809/autoparts-inventory/internal/logger"
	"github.com/rl1809/autoparts-inventory/internal/observe"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id taken from X-Request-ID or freshly
// generated, and stores a request-scoped logger in the request context.
func RequestID(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx, _ := logger.WithRequestID(c.Request.Context(), log, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog logs one line per request at a level chosen by status code.
func AccessLog(fallback *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		reqLogger := logger.FromContext(c.Request.Context(), fallback)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= 500:
			reqLogger.Error("HTTP request", fields...)
		case status >= 400:
			reqLogger.Warn("HTTP request", fields...)
		default:
			reqLogger.Info("HTTP request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 and logs it with a stack trace.
func Recovery(fallback *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(c.Request.Context(), fallback).Error("panic recovered",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", r),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error: "internal error",
					Code:  CodeInternal,
				})
			}
		}()
		c.Next()
	}
}

// Metrics records request latency under the matched route template.
func Metrics(m *observe.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestDuration.Record(c.Request.Context(), time.Since(start).Seconds(),
			metric.WithAttributes(
				attribute.String("method", c.Request.Method),
				attribute.String("route", route),
				attribute.Int("status", c.Writer.Status()),
			))
	}
}

// BodyLimit rejects bodies larger than maxBytes. maxBytes <= 0 disables it.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "request body exceeds maximum allowed size",
				Code:  CodePayloadTooLarge,
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
