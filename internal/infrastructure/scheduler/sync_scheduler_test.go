package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appmessaging "github.com/chatwire/backend/internal/application/messaging"
	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/infrastructure/config"
)

// fakeConnectionRepository is an in-memory ConnectionRepository for scheduler tests
type fakeConnectionRepository struct {
	mu    sync.Mutex
	due   []messaging.IntegrationConnection
	byID  map[uuid.UUID]*messaging.IntegrationConnection
	saves int
}

func newFakeConnectionRepository(due ...*messaging.IntegrationConnection) *fakeConnectionRepository {
	repo := &fakeConnectionRepository{byID: map[uuid.UUID]*messaging.IntegrationConnection{}}
	for _, conn := range due {
		repo.due = append(repo.due, *conn)
		repo.byID[conn.ID] = conn
	}
	return repo
}

func (r *fakeConnectionRepository) FindByTenantAndPlatform(ctx context.Context, tenantID uuid.UUID, platform messaging.Platform) (*messaging.IntegrationConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.byID {
		if conn.TenantID == tenantID && conn.Platform == platform {
			return conn, nil
		}
	}
	return nil, messaging.ErrConnectionNotFound
}

func (r *fakeConnectionRepository) FindByBusinessAccount(ctx context.Context, platform messaging.Platform, businessAccountID string) (*messaging.IntegrationConnection, error) {
	return nil, nil
}

func (r *fakeConnectionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]messaging.IntegrationConnection, error) {
	return nil, nil
}

func (r *fakeConnectionRepository) FindAutoSyncDue(ctx context.Context, now time.Time) ([]messaging.IntegrationConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.due, nil
}

func (r *fakeConnectionRepository) Save(ctx context.Context, conn *messaging.IntegrationConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return nil
}

// fakeAdapter counts syncs; everything else is inert
type fakeAdapter struct {
	messaging.ChannelIntegration
	platform messaging.Platform
	mu       sync.Mutex
	syncs    int
	syncErr  error
}

func (a *fakeAdapter) Platform() messaging.Platform { return a.platform }

func (a *fakeAdapter) SyncMessages(ctx context.Context, req *messaging.SyncRequest) (*messaging.SyncOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.syncs++
	if a.syncErr != nil {
		return nil, a.syncErr
	}
	return &messaging.SyncOutcome{Messages: []messaging.UnifiedMessage{}, SyncedAt: time.Now()}, nil
}

func (a *fakeAdapter) syncCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.syncs
}

type fakeFactory struct {
	adapter *fakeAdapter
}

func (f *fakeFactory) Build(ctx context.Context, conn *messaging.IntegrationConnection) (messaging.ChannelIntegration, error) {
	return f.adapter, nil
}

type fakeStore struct{}

func (fakeStore) Exists(ctx context.Context, platform messaging.Platform, platformMessageID string) (bool, error) {
	return false, nil
}

func (fakeStore) Store(ctx context.Context, record *messaging.MessageRecord) (*messaging.StoreOutcome, error) {
	return &messaging.StoreOutcome{Stored: true}, nil
}

func dueConnection(t *testing.T, platform messaging.Platform) *messaging.IntegrationConnection {
	conn, err := messaging.NewIntegrationConnection(uuid.New(), platform, "acct-1", "token")
	require.NoError(t, err)
	conn.MarkConnected("shop")
	conn.Settings.AutoSync = true
	return conn
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Enabled:      true,
		CronSchedule: "*/5 * * * *",
		BatchLimit:   100,
		JobTimeout:   time.Minute,
	}
}

func TestSyncScheduler_RunOnce(t *testing.T) {
	t.Run("syncs every due connection", func(t *testing.T) {
		first := dueConnection(t, messaging.PlatformInstagram)
		second := dueConnection(t, messaging.PlatformWhatsApp)
		repo := newFakeConnectionRepository(first, second)
		adapter := &fakeAdapter{platform: messaging.PlatformInstagram}

		manager := appmessaging.NewIntegrationManager(repo, &fakeFactory{adapter: adapter}, fakeStore{}, zap.NewNop())
		scheduler := NewSyncScheduler(manager, repo, testSyncConfig(), zap.NewNop())

		scheduler.RunOnce()

		assert.Equal(t, 2, adapter.syncCount())
	})

	t.Run("a failing connection does not block the rest", func(t *testing.T) {
		first := dueConnection(t, messaging.PlatformInstagram)
		second := dueConnection(t, messaging.PlatformInstagram)
		repo := newFakeConnectionRepository(first, second)
		adapter := &fakeAdapter{platform: messaging.PlatformInstagram, syncErr: messaging.ErrPlatformUnavailable}

		manager := appmessaging.NewIntegrationManager(repo, &fakeFactory{adapter: adapter}, fakeStore{}, zap.NewNop())
		scheduler := NewSyncScheduler(manager, repo, testSyncConfig(), zap.NewNop())

		scheduler.RunOnce()

		assert.Equal(t, 2, adapter.syncCount(), "both due connections are attempted")
	})

	t.Run("respects the batch limit", func(t *testing.T) {
		conns := make([]*messaging.IntegrationConnection, 5)
		for i := range conns {
			conns[i] = dueConnection(t, messaging.PlatformInstagram)
		}
		repo := newFakeConnectionRepository(conns...)
		adapter := &fakeAdapter{platform: messaging.PlatformInstagram}

		cfg := testSyncConfig()
		cfg.BatchLimit = 3

		manager := appmessaging.NewIntegrationManager(repo, &fakeFactory{adapter: adapter}, fakeStore{}, zap.NewNop())
		scheduler := NewSyncScheduler(manager, repo, cfg, zap.NewNop())

		scheduler.RunOnce()

		assert.Equal(t, 3, adapter.syncCount())
	})

	t.Run("disabled scheduler registers nothing", func(t *testing.T) {
		cfg := testSyncConfig()
		cfg.Enabled = false

		repo := newFakeConnectionRepository()
		manager := appmessaging.NewIntegrationManager(repo, &fakeFactory{adapter: &fakeAdapter{}}, fakeStore{}, zap.NewNop())
		scheduler := NewSyncScheduler(manager, repo, cfg, zap.NewNop())

		require.NoError(t, scheduler.Start())
	})
}
