package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/ecommerce"
	"github.com/erp/stocksync/internal/infrastructure/logger"
)

// Router is the subset of the event router the handler needs
type Router interface {
	LoadTenant(ctx context.Context, tenantID uuid.UUID) (*integration.TenantSyncConfig, error)
	Dispatch(ctx context.Context, cfg integration.TenantSyncConfig, d app.Delivery) error
}

// EventHandler turns envelopes into router dispatches. Retryable failures
// are retried in place for at most RetryMaxElapsed; everything else is
// logged and the message is acknowledged.
type EventHandler struct {
	router          Router
	logger          *zap.Logger
	RetryMaxElapsed time.Duration
}

// NewEventHandler creates an EventHandler
func NewEventHandler(router Router, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		router:          router,
		logger:          logger,
		RetryMaxElapsed: 30 * time.Second,
	}
}

// Handle processes one message value. A nil return means the offset may be
// committed; only context cancellation is reported as an error so the
// message is redelivered after a restart.
func (h *EventHandler) Handle(ctx context.Context, value []byte) error {
	env, err := ParseEnvelope(value)
	if err != nil {
		h.logger.Warn("Dropping malformed event envelope", zap.Error(err))
		return nil
	}

	ctx = logger.WithTenantID(ctx, env.TenantID.String())
	if env.WebhookID != "" {
		ctx = logger.WithDeliveryID(ctx, env.WebhookID)
	}
	log := logger.Enrich(ctx, h.logger).With(zap.String("topic", string(env.Topic)))

	event, err := ecommerce.DecodeEvent(env.Topic, env.Payload)
	if err != nil {
		log.Warn("Dropping undecodable event", zap.Error(err))
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = h.RetryMaxElapsed

	attempts := 0
	err = backoff.Retry(func() error {
		attempts++
		err := h.dispatch(ctx, env, event)
		if err != nil && !integration.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))

	switch {
	case err == nil:
		log.Debug("Event processed", zap.Int("attempts", attempts))
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case integration.IsConfigurationError(err):
		log.Warn("Event skipped, tenant not configured", zap.Error(err))
	default:
		log.Error("Event processing failed", zap.Int("attempts", attempts), zap.Error(err))
	}
	return nil
}

func (h *EventHandler) dispatch(ctx context.Context, env *ParsedEnvelope, event any) error {
	cfg, err := h.router.LoadTenant(ctx, env.TenantID)
	if err != nil {
		return err
	}
	if err := h.router.Dispatch(ctx, *cfg, app.Delivery{ID: env.WebhookID, Event: event}); err != nil {
		return fmt.Errorf("dispatch %s: %w", env.Topic, err)
	}
	return nil
}
