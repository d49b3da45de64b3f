package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/ecommerce"
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
)

const (
	// SignatureHeader carries the base64 HMAC-SHA256 of the raw body
	SignatureHeader = "X-Platform-Hmac-Sha256"
	// TopicHeader selects create/update/delete on the products and locations endpoints
	TopicHeader = "X-Platform-Topic"
)

// EventDispatcher routes decoded events for a tenant
type EventDispatcher interface {
	Dispatch(ctx context.Context, cfg integration.TenantSyncConfig, d app.Delivery) error
}

// WebhookHandler receives platform webhooks. It verifies the signature
// against the tenant's secret before anything else touches the payload.
type WebhookHandler struct {
	BaseHandler
	tenants integration.TenantSyncConfigRepository
	router  EventDispatcher
	logger  *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(tenants integration.TenantSyncConfigRepository, router EventDispatcher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		tenants: tenants,
		router:  router,
		logger:  logger,
	}
}

// RegisterRoutes registers the webhook endpoints under rg
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/webhooks/:tenant_id")
	g.POST("/inventory", h.fixedTopic(ecommerce.TopicInventoryLevelsUpdate))
	g.POST("/orders/create", h.fixedTopic(ecommerce.TopicOrdersCreate))
	g.POST("/orders/updated", h.fixedTopic(ecommerce.TopicOrdersUpdated))
	g.POST("/orders/cancelled", h.fixedTopic(ecommerce.TopicOrdersCancelled))
	g.POST("/products", h.headerTopic(ecommerce.TopicProductsUpdate,
		ecommerce.TopicProductsCreate, ecommerce.TopicProductsUpdate, ecommerce.TopicProductsDelete))
	g.POST("/locations", h.headerTopic(ecommerce.TopicLocationsUpdate,
		ecommerce.TopicLocationsCreate, ecommerce.TopicLocationsUpdate, ecommerce.TopicLocationsDelete))
}

func (h *WebhookHandler) fixedTopic(topic ecommerce.Topic) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.handle(c, topic)
	}
}

// headerTopic reads the topic from TopicHeader, restricted to allowed
func (h *WebhookHandler) headerTopic(fallback ecommerce.Topic, allowed ...ecommerce.Topic) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TopicHeader)
		if raw == "" {
			h.handle(c, fallback)
			return
		}
		topic, err := ecommerce.ParseTopic(raw)
		if err == nil {
			for _, t := range allowed {
				if t == topic {
					h.handle(c, topic)
					return
				}
			}
		}
		h.Error(c, http.StatusBadRequest, dto.ErrCodeUnsupportedTopic, "Topic not accepted on this endpoint")
	}
}

func (h *WebhookHandler) handle(c *gin.Context, topic ecommerce.Topic) {
	tenantID, ok := tenantParam(c)
	if !ok {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	deliveryID := c.GetHeader(middleware.DeliveryIDHeader)
	ctx := c.Request.Context()
	if deliveryID != "" {
		ctx = logger.WithDeliveryID(ctx, deliveryID)
		c.Request = c.Request.WithContext(ctx)
	}
	log := logger.Enrich(ctx, h.logger).With(zap.String("topic", string(topic)))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	cfg, err := h.tenants.FindByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, integration.ErrTenantNotConfigured) {
			// no secret to verify against
			h.Unauthorized(c, dto.ErrCodeInvalidSignature, "Webhook signature could not be verified")
			return
		}
		log.Error("Failed to load tenant for webhook", zap.Error(err))
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Tenant configuration unavailable")
		return
	}

	if err := ecommerce.VerifySignature(cfg.WebhookSecret, body, c.GetHeader(SignatureHeader)); err != nil {
		log.Warn("Rejected webhook with invalid signature")
		h.Unauthorized(c, dto.ErrCodeInvalidSignature, "Webhook signature could not be verified")
		return
	}

	ack := dto.WebhookAck{Topic: string(topic), DeliveryID: deliveryID, Status: dto.WebhookStatusAccepted}

	// a verified delivery for a tenant that cannot sync is acknowledged so
	// the platform stops redelivering it
	if err := cfg.Validate(); err != nil {
		log.Warn("Webhook skipped, tenant cannot sync", zap.Error(err))
		ack.Status = dto.WebhookStatusSkipped
		h.Success(c, ack)
		return
	}

	event, err := ecommerce.DecodeEvent(topic, body)
	if err != nil {
		log.Warn("Rejected undecodable webhook", zap.Error(err))
		h.HandleError(c, err)
		return
	}

	err = h.router.Dispatch(ctx, *cfg, app.Delivery{ID: deliveryID, Event: event})
	switch {
	case err == nil:
		h.Success(c, ack)
	case errors.Is(err, scheduler.ErrJobQueueFull), errors.Is(err, scheduler.ErrQueueNotRunning):
		log.Warn("Order sync queue rejected webhook", zap.Error(err))
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Order sync queue is busy")
	case integration.IsConfigurationError(err):
		log.Warn("Webhook skipped", zap.Error(err))
		ack.Status = dto.WebhookStatusSkipped
		h.Success(c, ack)
	default:
		log.Warn("Webhook processing failed", zap.Error(err))
		h.HandleError(c, err)
	}
}
