package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed delivery identifiers so that redelivered
// webhook events can be recognized without a database round trip.
// It is advisory: the authoritative duplicate guard is the storage-layer
// uniqueness constraint on (platform, platform_message_id).
type IdempotencyStore interface {
	// MarkProcessed marks a delivery as processed with a TTL.
	// Returns true if the delivery was newly marked, false if already seen.
	MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a delivery has already been processed
	IsProcessed(ctx context.Context, deliveryID string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a delivery ID is remembered. External platforms stop
	// redelivering well within this window.
	TTL time.Duration

	// Enabled determines whether the advisory check is consulted
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
