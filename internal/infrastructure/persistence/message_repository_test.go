package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockMessageRepository creates a GormMessageRepository with a mocked SQL connection
func newMockMessageRepository(t *testing.T) (*GormMessageRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormMessageRepository(gormDB), mock, mockDB
}

func testMessageRecord() *messaging.MessageRecord {
	return messaging.NewMessageRecord(uuid.New(), &messaging.UnifiedMessage{
		PlatformMessageID: "wamid.abc123",
		Platform:          messaging.PlatformWhatsApp,
		SenderID:          "15550001111",
		SenderName:        "Alice",
		RecipientID:       "15550009999",
		Content:           "2 bags of coffee please",
		Type:              messaging.MessageTypeText,
		Direction:         messaging.DirectionInbound,
		Status:            messaging.MessageStatusReceived,
		Timestamp:         time.Now(),
	})
}

func TestGormMessageRepository_Exists(t *testing.T) {
	t.Run("returns true when key present", func(t *testing.T) {
		repo, mock, mockDB := newMockMessageRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "platform_messages" WHERE platform = \$1 AND platform_message_id = \$2`).
			WithArgs(messaging.PlatformWhatsApp, "wamid.abc123").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := repo.Exists(context.Background(), messaging.PlatformWhatsApp, "wamid.abc123")

		require.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns false when key absent", func(t *testing.T) {
		repo, mock, mockDB := newMockMessageRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "platform_messages" WHERE platform = \$1 AND platform_message_id = \$2`).
			WithArgs(messaging.PlatformInstagram, "mid.unknown").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		exists, err := repo.Exists(context.Background(), messaging.PlatformInstagram, "mid.unknown")

		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormMessageRepository_Store(t *testing.T) {
	t.Run("stores a new message", func(t *testing.T) {
		repo, mock, mockDB := newMockMessageRepository(t)
		defer mockDB.Close()

		record := testMessageRecord()
		record.OrderIntent = true

		mock.ExpectExec(`INSERT INTO "platform_messages" .* ON CONFLICT \("platform","platform_message_id"\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		outcome, err := repo.Store(context.Background(), record)

		require.NoError(t, err)
		assert.True(t, outcome.Stored)
		assert.True(t, outcome.OrderIntent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absorbs a duplicate without error", func(t *testing.T) {
		repo, mock, mockDB := newMockMessageRepository(t)
		defer mockDB.Close()

		record := testMessageRecord()

		// conflict on the unique index: zero rows affected, no error
		mock.ExpectExec(`INSERT INTO "platform_messages" .* ON CONFLICT \("platform","platform_message_id"\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		outcome, err := repo.Store(context.Background(), record)

		require.NoError(t, err)
		assert.False(t, outcome.Stored, "duplicate insert must report Stored=false")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates database errors", func(t *testing.T) {
		repo, mock, mockDB := newMockMessageRepository(t)
		defer mockDB.Close()

		record := testMessageRecord()

		mock.ExpectExec(`INSERT INTO "platform_messages" .*`).
			WillReturnError(sql.ErrConnDone)

		outcome, err := repo.Store(context.Background(), record)

		assert.Error(t, err)
		assert.Nil(t, outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
