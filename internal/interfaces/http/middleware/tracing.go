// Package middleware provides HTTP middleware for the sync service.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DeliveryIDHeader carries the platform's webhook delivery id
const DeliveryIDHeader = "X-Platform-Webhook-Id"

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// TracerProvider overrides the global provider when set
	TracerProvider trace.TracerProvider
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "stocksync",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware. It wraps otelgin and adds
// request_id, the tenant_id path parameter and the webhook delivery id to
// the server span. Span names follow "METHOD route", e.g.
// "POST /webhooks/:tenant_id/orders/create".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// SpanAttributes enriches the active span; it must run after Tracing and
// RequestID so both the span and the id exist.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpan(c, span)
		}
		c.Next()
		if span.IsRecording() && c.Writer.Status() >= http.StatusBadRequest {
			markSpanError(span, c.Writer.Status())
		}
	}
}

func enrichSpan(c *gin.Context, span trace.Span) {
	if v, ok := c.Get(RequestIDKey); ok {
		if id, _ := v.(string); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
	}
	// only well-formed tenant ids reach the trace
	if id, err := uuid.Parse(c.Param("tenant_id")); err == nil {
		span.SetAttributes(attribute.String("tenant_id", id.String()))
	}
	if id := c.GetHeader(DeliveryIDHeader); id != "" && len(id) <= MaxRequestIDLength {
		span.SetAttributes(attribute.String("delivery_id", id))
	}
}

func markSpanError(span trace.Span, status int) {
	var msg string
	switch {
	case status >= http.StatusInternalServerError:
		msg = "Internal Server Error"
	case status == http.StatusUnauthorized:
		msg = "Unauthorized"
	case status == http.StatusNotFound:
		msg = "Not Found"
	default:
		msg = "Client Error"
	}
	span.SetStatus(codes.Error, msg)
	span.SetAttributes(attribute.Int("http.status_code", status))
}
