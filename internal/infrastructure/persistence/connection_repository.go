package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormConnectionRepository implements messaging.ConnectionRepository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// FindByTenantAndPlatform returns the connection for the (tenant, platform) pair
func (r *GormConnectionRepository) FindByTenantAndPlatform(ctx context.Context, tenantID uuid.UUID, platform messaging.Platform) (*messaging.IntegrationConnection, error) {
	var model models.IntegrationConnectionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, messaging.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByBusinessAccount resolves the connection claiming a platform business
// account ID. Returns (nil, nil) when no tenant claims the account: an
// unclaimed account is an expected outcome, not an error.
func (r *GormConnectionRepository) FindByBusinessAccount(ctx context.Context, platform messaging.Platform, businessAccountID string) (*messaging.IntegrationConnection, error) {
	var model models.IntegrationConnectionModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND business_account_id = ?", platform, businessAccountID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns every connection a tenant owns
func (r *GormConnectionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]messaging.IntegrationConnection, error) {
	var connectionModels []models.IntegrationConnectionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("platform ASC").
		Find(&connectionModels).Error; err != nil {
		return nil, err
	}

	connections := make([]messaging.IntegrationConnection, len(connectionModels))
	for i, model := range connectionModels {
		connections[i] = *model.ToDomain()
	}
	return connections, nil
}

// syncStuckWindow is how long a row may keep sync_in_progress set before it
// is considered abandoned. A sync that crashed between marking the flag and
// clearing it would otherwise keep the row out of scheduling forever.
const syncStuckWindow = 30 * time.Minute

// FindAutoSyncDue returns connected rows whose auto-sync interval has elapsed.
// The interval lives in the settings JSON, so the recency comparison happens
// in SQL against the jsonb field. Rows mid-sync are skipped unless the flag
// has been set longer than syncStuckWindow.
func (r *GormConnectionRepository) FindAutoSyncDue(ctx context.Context, now time.Time) ([]messaging.IntegrationConnection, error) {
	var connectionModels []models.IntegrationConnectionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", messaging.ConnectionStatusConnected).
		Where("settings->>'auto_sync' = 'true'").
		Where("sync_in_progress = false OR updated_at <= ?", now.Add(-syncStuckWindow)).
		Where("last_sync_at IS NULL OR last_sync_at <= ? - ((settings->>'sync_interval_minutes')::int * interval '1 minute')", now).
		Order("last_sync_at ASC NULLS FIRST").
		Find(&connectionModels).Error; err != nil {
		return nil, err
	}

	connections := make([]messaging.IntegrationConnection, len(connectionModels))
	for i, model := range connectionModels {
		connections[i] = *model.ToDomain()
	}
	return connections, nil
}

// Save upserts the connection keyed by (tenant, platform); the latest state
// wins for the whole row.
func (r *GormConnectionRepository) Save(ctx context.Context, conn *messaging.IntegrationConnection) error {
	model := models.IntegrationConnectionModelFromDomain(conn)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "business_account_id", "business_account_name",
				"access_token", "connected_at", "last_sync_at", "last_sync_cursor",
				"last_error", "last_error_at", "consecutive_errors",
				"token_expires_at", "sync_in_progress", "settings", "updated_at",
			}),
		}).
		Create(model).Error
}

var _ messaging.ConnectionRepository = (*GormConnectionRepository)(nil)
