package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/domain/messaging"
)

// SellerLookup resolves a platform business-account identifier to the tenant
// connection claiming it. A nil connection with a nil error means no tenant
// claims the account: an expected outcome, because the webhook sender may
// address accounts no tenant has connected.
type SellerLookup interface {
	ResolveTenant(ctx context.Context, platform messaging.Platform, businessAccountID string) (*messaging.IntegrationConnection, error)
}

// ConnectionSellerLookup backs SellerLookup with the persisted connection store
type ConnectionSellerLookup struct {
	connections messaging.ConnectionRepository
	logger      *zap.Logger
}

// NewConnectionSellerLookup creates a ConnectionSellerLookup
func NewConnectionSellerLookup(connections messaging.ConnectionRepository, logger *zap.Logger) *ConnectionSellerLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionSellerLookup{connections: connections, logger: logger}
}

// ResolveTenant looks up the connection claiming (platform, businessAccountID)
func (l *ConnectionSellerLookup) ResolveTenant(ctx context.Context, platform messaging.Platform, businessAccountID string) (*messaging.IntegrationConnection, error) {
	conn, err := l.connections.FindByBusinessAccount(ctx, platform, businessAccountID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		l.logger.Debug("no tenant claims business account",
			zap.String("platform", platform.String()),
			zap.String("business_account_id", businessAccountID))
		return nil, nil
	}
	return conn, nil
}

// Ensure ConnectionSellerLookup implements SellerLookup
var _ SellerLookup = (*ConnectionSellerLookup)(nil)
