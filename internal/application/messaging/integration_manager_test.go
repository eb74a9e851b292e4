package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/domain/messaging"
)

func TestIntegrationManager_Connect(t *testing.T) {
	tenantID := uuid.New()

	t.Run("creates and connects a new connection", func(t *testing.T) {
		repo := new(MockConnectionRepository)
		repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformWhatsApp).Return(nil, messaging.ErrConnectionNotFound)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(c *messaging.IntegrationConnection) bool {
			return c.Status == messaging.ConnectionStatusConnected && c.ConnectedAt != nil
		})).Return(nil)

		adapter := NewMockChannelIntegration(messaging.PlatformWhatsApp)
		factory := new(MockIntegrationFactory)
		factory.On("Build", mock.Anything, mock.Anything).Return(adapter, nil)

		manager := NewIntegrationManager(repo, factory, new(MockMessageStore), zap.NewNop())
		conn, err := manager.Connect(context.Background(), tenantID, messaging.PlatformWhatsApp, "waba-1001", "token")

		require.NoError(t, err)
		assert.Equal(t, messaging.ConnectionStatusConnected, conn.Status)
		assert.Equal(t, "waba-1001", conn.BusinessAccountID)
		repo.AssertExpectations(t)
	})

	t.Run("failed initialization persists the error state", func(t *testing.T) {
		repo := new(MockConnectionRepository)
		repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformWhatsApp).Return(nil, messaging.ErrConnectionNotFound)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(c *messaging.IntegrationConnection) bool {
			return c.Status == messaging.ConnectionStatusError && c.LastError != "" && c.ConsecutiveErrors == 1
		})).Return(nil)

		factory := new(MockIntegrationFactory)
		factory.On("Build", mock.Anything, mock.Anything).Return(nil, messaging.ErrPlatformAuthFailed)

		manager := NewIntegrationManager(repo, factory, new(MockMessageStore), zap.NewNop())
		_, err := manager.Connect(context.Background(), tenantID, messaging.PlatformWhatsApp, "waba-1001", "bad-token")

		assert.ErrorIs(t, err, messaging.ErrPlatformAuthFailed)
		repo.AssertExpectations(t)
	})

	t.Run("reconnect reuses the existing row with fresh credentials", func(t *testing.T) {
		existing, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformWhatsApp, "waba-old", "old-token")
		existing.MarkDisconnected()

		repo := new(MockConnectionRepository)
		repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformWhatsApp).Return(existing, nil)
		repo.On("Save", mock.Anything, existing).Return(nil)

		adapter := NewMockChannelIntegration(messaging.PlatformWhatsApp)
		factory := new(MockIntegrationFactory)
		factory.On("Build", mock.Anything, existing).Return(adapter, nil)

		manager := NewIntegrationManager(repo, factory, new(MockMessageStore), zap.NewNop())
		conn, err := manager.Connect(context.Background(), tenantID, messaging.PlatformWhatsApp, "waba-new", "new-token")

		require.NoError(t, err)
		assert.Equal(t, existing.ID, conn.ID)
		assert.Equal(t, "waba-new", conn.BusinessAccountID)
		assert.Equal(t, messaging.ConnectionStatusConnected, conn.Status)
	})
}

func TestIntegrationManager_Disconnect(t *testing.T) {
	tenantID := uuid.New()
	conn, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformInstagram, "ig-2002", "token")
	conn.MarkConnected("beanshop")

	repo := new(MockConnectionRepository)
	repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformInstagram).Return(conn, nil)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(c *messaging.IntegrationConnection) bool {
		return c.Status == messaging.ConnectionStatusDisconnected && c.AccessToken == ""
	})).Return(nil)

	manager := NewIntegrationManager(repo, new(MockIntegrationFactory), new(MockMessageStore), zap.NewNop())
	err := manager.Disconnect(context.Background(), tenantID, messaging.PlatformInstagram)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestIntegrationManager_SendMessage(t *testing.T) {
	tenantID := uuid.New()

	t.Run("routes to the tenant's adapter", func(t *testing.T) {
		conn, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformWhatsApp, "waba-1001", "token")
		conn.MarkConnected("Bean Shop")

		repo := new(MockConnectionRepository)
		repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformWhatsApp).Return(conn, nil)

		adapter := NewMockChannelIntegration(messaging.PlatformWhatsApp)
		adapter.On("SendMessage", mock.Anything, mock.Anything).Return(&messaging.SendResult{PlatformMessageID: "wamid.out"}, nil)

		factory := new(MockIntegrationFactory)
		factory.On("Build", mock.Anything, conn).Return(adapter, nil)

		manager := NewIntegrationManager(repo, factory, new(MockMessageStore), zap.NewNop())
		result, err := manager.SendMessage(context.Background(), tenantID, messaging.PlatformWhatsApp, &messaging.UnifiedMessage{Content: "hi"})

		require.NoError(t, err)
		assert.Equal(t, "wamid.out", result.PlatformMessageID)
	})

	t.Run("unregistered platform is a structured failure", func(t *testing.T) {
		repo := new(MockConnectionRepository)
		repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformInstagram).Return(nil, messaging.ErrConnectionNotFound)

		manager := NewIntegrationManager(repo, new(MockIntegrationFactory), new(MockMessageStore), zap.NewNop())
		_, err := manager.SendMessage(context.Background(), tenantID, messaging.PlatformInstagram, &messaging.UnifiedMessage{})

		assert.ErrorIs(t, err, messaging.ErrConnectionNotFound)
	})

	t.Run("disconnected platform is rejected without building an adapter", func(t *testing.T) {
		conn, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformWhatsApp, "waba-1001", "token")
		conn.MarkDisconnected()

		repo := new(MockConnectionRepository)
		repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformWhatsApp).Return(conn, nil)

		factory := new(MockIntegrationFactory)
		manager := NewIntegrationManager(repo, factory, new(MockMessageStore), zap.NewNop())
		_, err := manager.SendMessage(context.Background(), tenantID, messaging.PlatformWhatsApp, &messaging.UnifiedMessage{})

		assert.ErrorIs(t, err, messaging.ErrPlatformNotConfigured)
		factory.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
	})
}

func TestIntegrationManager_SyncMessages(t *testing.T) {
	tenantID := uuid.New()
	syncedAt := time.Now()

	newConnectedConn := func() *messaging.IntegrationConnection {
		conn, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformInstagram, "ig-2002", "token")
		conn.MarkConnected("beanshop")
		return conn
	}

	t.Run("stores pulled messages and records the watermark", func(t *testing.T) {
		conn := newConnectedConn()
		lastSync := syncedAt.Add(-time.Hour)
		conn.LastSyncAt = &lastSync
		conn.LastSyncCursor = "cursor-0"

		repo := new(MockConnectionRepository)
		repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformInstagram).Return(conn, nil)
		repo.On("Save", mock.Anything, conn).Return(nil)

		pulled := []messaging.UnifiedMessage{
			{PlatformMessageID: "mid.1", Platform: messaging.PlatformInstagram, SenderID: "user-1"},
			{PlatformMessageID: "mid.2", Platform: messaging.PlatformInstagram, SenderID: "user-2"},
		}
		adapter := NewMockChannelIntegration(messaging.PlatformInstagram)
		adapter.On("SyncMessages", mock.Anything, mock.MatchedBy(func(r *messaging.SyncRequest) bool {
			// defaults flow from the connection row
			return r.Since.Equal(lastSync) && r.Cursor == "cursor-0"
		})).Return(&messaging.SyncOutcome{
			Messages:           pulled,
			MessagesCount:      2,
			ConversationsCount: 1,
			HasMore:            true,
			NextCursor:         "cursor-1",
			SyncedAt:           syncedAt,
		}, nil)

		factory := new(MockIntegrationFactory)
		factory.On("Build", mock.Anything, conn).Return(adapter, nil)

		store := new(MockMessageStore)
		store.On("Store", mock.Anything, mock.Anything).Return(&messaging.StoreOutcome{Stored: true}, nil).Once()
		store.On("Store", mock.Anything, mock.Anything).Return(&messaging.StoreOutcome{Stored: false}, nil).Once()

		manager := NewIntegrationManager(repo, factory, store, zap.NewNop())
		report, err := manager.SyncMessages(context.Background(), tenantID, messaging.PlatformInstagram, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, report.MessagesCount)
		assert.Equal(t, 1, report.MessagesStored, "duplicates absorbed by the store do not count")
		assert.Equal(t, 1, report.ConversationsCount)
		assert.True(t, report.HasMore)
		assert.Equal(t, "cursor-1", report.NextCursor)

		assert.False(t, conn.SyncInProgress, "the liveness flag never survives the call")
		assert.Equal(t, "cursor-1", conn.LastSyncCursor)
		require.NotNil(t, conn.LastSyncAt)
		assert.True(t, conn.LastSyncAt.Equal(syncedAt))
	})

	t.Run("sync failure records the error and clears the liveness flag", func(t *testing.T) {
		conn := newConnectedConn()

		repo := new(MockConnectionRepository)
		repo.On("FindByTenantAndPlatform", mock.Anything, tenantID, messaging.PlatformInstagram).Return(conn, nil)
		repo.On("Save", mock.Anything, conn).Return(nil)

		adapter := NewMockChannelIntegration(messaging.PlatformInstagram)
		adapter.On("SyncMessages", mock.Anything, mock.Anything).Return(nil, messaging.ErrPlatformUnavailable)

		factory := new(MockIntegrationFactory)
		factory.On("Build", mock.Anything, conn).Return(adapter, nil)

		manager := NewIntegrationManager(repo, factory, new(MockMessageStore), zap.NewNop())
		_, err := manager.SyncMessages(context.Background(), tenantID, messaging.PlatformInstagram, nil)

		assert.ErrorIs(t, err, messaging.ErrPlatformUnavailable)
		assert.Equal(t, messaging.ConnectionStatusError, conn.Status)
		assert.False(t, conn.SyncInProgress)
		assert.Equal(t, 1, conn.ConsecutiveErrors)
	})
}

func TestIntegrationManager_HealthCheck(t *testing.T) {
	tenantID := uuid.New()

	whatsapp, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformWhatsApp, "waba-1001", "token")
	whatsapp.MarkConnected("Bean Shop")
	instagram, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformInstagram, "ig-2002", "token")
	instagram.MarkConnected("beanshop")

	repo := new(MockConnectionRepository)
	repo.On("FindAllForTenant", mock.Anything, tenantID).Return([]messaging.IntegrationConnection{*whatsapp, *instagram}, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	healthy := NewMockChannelIntegration(messaging.PlatformWhatsApp)
	healthy.On("HealthCheck", mock.Anything).Return(&messaging.HealthStatus{Healthy: true, APIReachable: true, TokenValid: true, WebhookRegistered: true}, nil)

	factory := new(MockIntegrationFactory)
	factory.On("Build", mock.Anything, mock.MatchedBy(func(c *messaging.IntegrationConnection) bool {
		return c.Platform == messaging.PlatformWhatsApp
	})).Return(healthy, nil)
	// the instagram adapter fails to build; the fan-out degrades that entry only
	factory.On("Build", mock.Anything, mock.MatchedBy(func(c *messaging.IntegrationConnection) bool {
		return c.Platform == messaging.PlatformInstagram
	})).Return(nil, errors.New("token rejected"))

	manager := NewIntegrationManager(repo, factory, new(MockMessageStore), zap.NewNop())
	results, err := manager.HealthCheck(context.Background(), tenantID)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Health.Healthy)
	assert.Empty(t, results[0].Error)
	assert.Nil(t, results[1].Health)
	assert.Contains(t, results[1].Error, "token rejected")
}

func TestIntegrationManager_RefreshTokens(t *testing.T) {
	tenantID := uuid.New()
	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(30 * 24 * time.Hour)

	expiring, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformWhatsApp, "waba-1001", "token")
	expiring.MarkConnected("Bean Shop")
	expiring.TokenExpiresAt = &soon
	fresh, _ := messaging.NewIntegrationConnection(tenantID, messaging.PlatformInstagram, "ig-2002", "token")
	fresh.MarkConnected("beanshop")
	fresh.TokenExpiresAt = &later

	repo := new(MockConnectionRepository)
	repo.On("FindAllForTenant", mock.Anything, tenantID).Return([]messaging.IntegrationConnection{*expiring, *fresh}, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	adapter := NewMockChannelIntegration(messaging.PlatformWhatsApp)
	adapter.On("RefreshToken", mock.Anything).Return("token-new", newExpiry, nil)

	factory := new(MockIntegrationFactory)
	factory.On("Build", mock.Anything, mock.Anything).Return(adapter, nil)

	manager := NewIntegrationManager(repo, factory, new(MockMessageStore), zap.NewNop())
	outcomes, err := manager.RefreshTokens(context.Background(), tenantID, 72*time.Hour)

	require.NoError(t, err)
	require.Len(t, outcomes, 1, "only tokens inside the window refresh")
	assert.Equal(t, messaging.PlatformWhatsApp.String(), outcomes[0].Platform)
	assert.True(t, outcomes[0].Refreshed)
	adapter.AssertNumberOfCalls(t, "RefreshToken", 1)
}
