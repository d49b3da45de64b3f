// Package shared holds small contracts used across bounded contexts.
package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed delivery ids so a redelivered
// webhook or queue message is acknowledged without being applied twice.
type IdempotencyStore interface {
	// MarkProcessed records key for ttl. It returns false when key was
	// already recorded and has not expired.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key is recorded and unexpired
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}

// IdempotencyConfig holds configuration for delivery dedupe
type IdempotencyConfig struct {
	// TTL bounds how long a delivery id is remembered. Platforms retry
	// failed webhooks for up to two days, so shorter values let late
	// retries through.
	TTL time.Duration
}

// DefaultIdempotencyConfig returns the default dedupe configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour}
}
