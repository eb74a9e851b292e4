package persistence

import (
	"context"

	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMessageRepository implements messaging.MessageStore using GORM.
// Deduplication happens at the insert: ON CONFLICT DO NOTHING on the
// (platform, platform_message_id) unique index absorbs concurrent
// at-least-once deliveries without failing either writer.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GormMessageRepository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Exists checks the deduplication key
func (r *GormMessageRepository) Exists(ctx context.Context, platform messaging.Platform, platformMessageID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("platform = ? AND platform_message_id = ?", platform, platformMessageID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Store persists the record with insert-if-absent semantics. A duplicate key
// reports Stored=false instead of an error.
func (r *GormMessageRepository) Store(ctx context.Context, record *messaging.MessageRecord) (*messaging.StoreOutcome, error) {
	model := models.MessageModelFromDomain(record)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "platform_message_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return nil, result.Error
	}

	return &messaging.StoreOutcome{
		Stored:      result.RowsAffected > 0,
		OrderIntent: record.OrderIntent,
	}, nil
}

var _ messaging.MessageStore = (*GormMessageRepository)(nil)
