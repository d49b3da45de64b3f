package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/shared"
)

// NewIdempotencyStore returns a Redis store when client is set and an
// in-memory store otherwise.
func NewIdempotencyStore(client redis.UniversalClient, logger *zap.Logger) shared.IdempotencyStore {
	if client != nil {
		logger.Info("Using Redis delivery dedupe store")
		return NewRedisIdempotencyStore(client, DefaultDeliveryKeyPrefix)
	}
	logger.Warn("Redis not configured, delivery dedupe is per instance. " +
		"Redeliveries routed to another instance may be applied twice; the ledger upsert still keeps them harmless.")
	return NewInMemoryIdempotencyStore(5 * time.Minute)
}
