package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/infrastructure/retry"
)

// accountNamer is implemented by adapters that resolve a display name for the
// connected business account during initialization.
type accountNamer interface {
	AccountName() string
}

type usernamer interface {
	Username() string
}

// IntegrationManager routes platform operations for a tenant: connect,
// disconnect, send, sync, health fan-out and batch token refresh. Adapters
// are resolved per call from the persisted connection row, so one tenant's
// credentials never linger in process-wide state.
type IntegrationManager struct {
	connections messaging.ConnectionRepository
	factory     messaging.IntegrationFactory
	store       messaging.MessageStore
	executor    *retry.Executor
	logger      *zap.Logger
}

// NewIntegrationManager creates an IntegrationManager
func NewIntegrationManager(
	connections messaging.ConnectionRepository,
	factory messaging.IntegrationFactory,
	store messaging.MessageStore,
	logger *zap.Logger,
	opts ...ServiceOption,
) *IntegrationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrationManager{
		connections: connections,
		factory:     factory,
		store:       store,
		executor:    retry.New(storagePolicy(opts), logger),
		logger:      logger,
	}
}

// ---------------------------------------------------------------------------
// Connect / disconnect
// ---------------------------------------------------------------------------

// Connect establishes (or re-establishes) a tenant's platform connection.
// The row moves pending -> connected on success, or to error with the cause
// recorded; either way the row is persisted so the state is inspectable.
func (m *IntegrationManager) Connect(ctx context.Context, tenantID uuid.UUID, platform messaging.Platform, businessAccountID, accessToken string) (*messaging.IntegrationConnection, error) {
	conn, err := m.connections.FindByTenantAndPlatform(ctx, tenantID, platform)
	switch {
	case errors.Is(err, messaging.ErrConnectionNotFound):
		conn, err = messaging.NewIntegrationConnection(tenantID, platform, businessAccountID, accessToken)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		// reconnect: fresh credentials, back to pending
		conn.Status = messaging.ConnectionStatusPending
		conn.BusinessAccountID = businessAccountID
		conn.AccessToken = accessToken
		conn.TokenExpiresAt = nil
		conn.UpdatedAt = time.Now()
	}

	adapter, err := m.factory.Build(ctx, conn)
	if err != nil {
		conn.RecordError(err)
		if saveErr := m.connections.Save(ctx, conn); saveErr != nil {
			m.logger.Error("failed to persist connection error state", zap.Error(saveErr))
		}
		return nil, err
	}

	conn.MarkConnected(adapterAccountName(adapter))
	if err := m.connections.Save(ctx, conn); err != nil {
		return nil, err
	}

	m.logger.Info("platform connected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("platform", platform.String()),
		zap.String("business_account_id", businessAccountID))
	return conn, nil
}

// Disconnect soft-resets the connection: credentials and sync state are
// cleared but the row survives with the tenant's settings.
func (m *IntegrationManager) Disconnect(ctx context.Context, tenantID uuid.UUID, platform messaging.Platform) error {
	conn, err := m.connections.FindByTenantAndPlatform(ctx, tenantID, platform)
	if err != nil {
		return err
	}

	conn.MarkDisconnected()
	if err := m.connections.Save(ctx, conn); err != nil {
		return err
	}

	m.logger.Info("platform disconnected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("platform", platform.String()))
	return nil
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

// SendMessage routes an outbound message to the tenant's adapter for the
// platform. An unregistered or unconfigured platform is a structured failure.
func (m *IntegrationManager) SendMessage(ctx context.Context, tenantID uuid.UUID, platform messaging.Platform, msg *messaging.UnifiedMessage) (*messaging.SendResult, error) {
	conn, adapter, err := m.resolve(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}

	result, err := adapter.SendMessage(ctx, msg)
	if err != nil {
		m.recordFailure(ctx, conn, err)
		return nil, err
	}
	m.recordSuccess(ctx, conn)
	return result, nil
}

// SyncMessages pulls history for the tenant's platform connection and stores
// it through the same collaborator the webhook path uses. SyncInProgress is a
// liveness flag only; concurrent triggers reconcile at the storage uniqueness
// constraint.
func (m *IntegrationManager) SyncMessages(ctx context.Context, tenantID uuid.UUID, platform messaging.Platform, req *messaging.SyncRequest) (*SyncReport, error) {
	conn, adapter, err := m.resolve(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}

	if req == nil {
		req = &messaging.SyncRequest{}
	}
	if req.Since.IsZero() && conn.LastSyncAt != nil {
		req.Since = *conn.LastSyncAt
	}
	if req.Cursor == "" {
		req.Cursor = conn.LastSyncCursor
	}

	conn.BeginSync()
	if err := m.connections.Save(ctx, conn); err != nil {
		return nil, err
	}

	outcome, err := adapter.SyncMessages(ctx, req)
	if err != nil {
		// RecordError also clears the liveness flag
		conn.RecordError(err)
		if saveErr := m.connections.Save(ctx, conn); saveErr != nil {
			m.logger.Error("failed to persist sync error state", zap.Error(saveErr))
		}
		return nil, err
	}

	stored := m.storeSynced(ctx, conn, outcome.Messages)

	conn.FinishSync(outcome.NextCursor, outcome.SyncedAt)
	conn.RecordSuccess()
	if err := m.connections.Save(ctx, conn); err != nil {
		return nil, err
	}

	report := &SyncReport{
		Platform:           platform.String(),
		MessagesCount:      outcome.MessagesCount,
		ConversationsCount: outcome.ConversationsCount,
		MessagesStored:     stored,
		HasMore:            outcome.HasMore,
		NextCursor:         outcome.NextCursor,
		SyncedAt:           outcome.SyncedAt,
	}
	m.logger.Info("sync completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("platform", platform.String()),
		zap.Int("messages", report.MessagesCount),
		zap.Int("stored", report.MessagesStored),
		zap.Bool("has_more", report.HasMore))
	return report, nil
}

// storeSynced persists pulled messages, absorbing duplicates and tolerating
// individual failures.
func (m *IntegrationManager) storeSynced(ctx context.Context, conn *messaging.IntegrationConnection, msgs []messaging.UnifiedMessage) int {
	stored := 0
	for i := range msgs {
		msg := &msgs[i]
		if err := msg.Validate(); err != nil {
			m.logger.Warn("skipping invalid synced message",
				zap.String("platform_message_id", msg.PlatformMessageID),
				zap.Error(err))
			continue
		}

		record := messaging.NewMessageRecord(conn.TenantID, msg)
		data, err := m.executor.ExecuteOrError(ctx, func(ctx context.Context) (any, error) {
			return m.store.Store(ctx, record)
		})
		if err != nil {
			m.logger.Warn("failed to store synced message",
				zap.String("platform_message_id", msg.PlatformMessageID),
				zap.Error(err))
			continue
		}
		if data.(*messaging.StoreOutcome).Stored {
			stored++
		}
	}
	return stored
}

// ---------------------------------------------------------------------------
// Status and health
// ---------------------------------------------------------------------------

// Status returns every connection a tenant owns, projected for the API
func (m *IntegrationManager) Status(ctx context.Context, tenantID uuid.UUID) ([]ConnectionDTO, error) {
	conns, err := m.connections.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	dtos := make([]ConnectionDTO, 0, len(conns))
	for i := range conns {
		dtos = append(dtos, ConnectionToDTO(&conns[i]))
	}
	return dtos, nil
}

// HealthCheck fans out across the tenant's connections. A failing adapter
// becomes a degraded entry; the call itself fails only when the connection
// list cannot be read.
func (m *IntegrationManager) HealthCheck(ctx context.Context, tenantID uuid.UUID) ([]PlatformHealth, error) {
	conns, err := m.connections.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	results := make([]PlatformHealth, 0, len(conns))
	for i := range conns {
		conn := &conns[i]
		entry := PlatformHealth{Platform: conn.Platform.String()}

		if !conn.IsConnected() {
			entry.Error = fmt.Sprintf("connection is %s", conn.Status)
			results = append(results, entry)
			continue
		}

		adapter, err := m.factory.Build(ctx, conn)
		if err != nil {
			entry.Error = err.Error()
			results = append(results, entry)
			continue
		}

		health, err := adapter.HealthCheck(ctx)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Health = health
		}
		results = append(results, entry)
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Token refresh
// ---------------------------------------------------------------------------

// RefreshTokens refreshes tokens for the tenant's connected platforms,
// tolerating individual failures. With a positive window only tokens
// expiring inside it are refreshed; a zero window refreshes everything.
func (m *IntegrationManager) RefreshTokens(ctx context.Context, tenantID uuid.UUID, window time.Duration) ([]TokenRefreshOutcome, error) {
	conns, err := m.connections.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]TokenRefreshOutcome, 0, len(conns))
	for i := range conns {
		conn := &conns[i]
		if !conn.IsConnected() {
			continue
		}
		if window > 0 && !conn.TokenExpiringWithin(window) {
			continue
		}
		outcomes = append(outcomes, m.refreshOne(ctx, conn))
	}
	return outcomes, nil
}

func (m *IntegrationManager) refreshOne(ctx context.Context, conn *messaging.IntegrationConnection) TokenRefreshOutcome {
	outcome := TokenRefreshOutcome{Platform: conn.Platform.String()}

	adapter, err := m.factory.Build(ctx, conn)
	if err != nil {
		outcome.Error = err.Error()
		m.recordFailure(ctx, conn, err)
		return outcome
	}

	token, expiresAt, err := adapter.RefreshToken(ctx)
	if err != nil {
		outcome.Error = err.Error()
		m.recordFailure(ctx, conn, err)
		return outcome
	}

	conn.UpdateToken(token, expiresAt)
	conn.RecordSuccess()
	if err := m.connections.Save(ctx, conn); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Refreshed = true
	outcome.ExpiresAt = &expiresAt
	m.logger.Info("token refreshed",
		zap.String("tenant_id", conn.TenantID.String()),
		zap.String("platform", conn.Platform.String()),
		zap.Time("expires_at", expiresAt))
	return outcome
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// resolve loads the connection and builds an initialized adapter for it
func (m *IntegrationManager) resolve(ctx context.Context, tenantID uuid.UUID, platform messaging.Platform) (*messaging.IntegrationConnection, messaging.ChannelIntegration, error) {
	conn, err := m.connections.FindByTenantAndPlatform(ctx, tenantID, platform)
	if err != nil {
		return nil, nil, err
	}
	if !conn.IsConnected() {
		return nil, nil, fmt.Errorf("%w: %s is %s", messaging.ErrPlatformNotConfigured, platform, conn.Status)
	}

	adapter, err := m.factory.Build(ctx, conn)
	if err != nil {
		m.recordFailure(ctx, conn, err)
		return nil, nil, err
	}
	return conn, adapter, nil
}

// recordFailure moves the row to the error state; persistence is best-effort
func (m *IntegrationManager) recordFailure(ctx context.Context, conn *messaging.IntegrationConnection, cause error) {
	conn.RecordError(cause)
	if err := m.connections.Save(ctx, conn); err != nil {
		m.logger.Error("failed to persist connection error state", zap.Error(err))
	}
}

// recordSuccess persists the self-heal transition only when it changes state
func (m *IntegrationManager) recordSuccess(ctx context.Context, conn *messaging.IntegrationConnection) {
	if conn.Status != messaging.ConnectionStatusError && conn.ConsecutiveErrors == 0 {
		return
	}
	conn.RecordSuccess()
	if err := m.connections.Save(ctx, conn); err != nil {
		m.logger.Error("failed to persist connection state", zap.Error(err))
	}
}

// adapterAccountName extracts the display name adapters resolve at
// initialization, when they expose one.
func adapterAccountName(adapter messaging.ChannelIntegration) string {
	if n, ok := adapter.(accountNamer); ok {
		return n.AccountName()
	}
	if n, ok := adapter.(usernamer); ok {
		return n.Username()
	}
	return ""
}
