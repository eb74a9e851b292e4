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

// newMockConnectionRepository creates a GormConnectionRepository with a mocked SQL connection
func newMockConnectionRepository(t *testing.T) (*GormConnectionRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormConnectionRepository(gormDB), mock, mockDB
}

func connectionRows(id, tenantID uuid.UUID, platform messaging.Platform, businessAccountID string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "platform", "status", "business_account_id",
		"business_account_name", "access_token", "consecutive_errors",
		"sync_in_progress", "settings", "created_at", "updated_at",
	}).AddRow(
		id, tenantID, platform, "connected", businessAccountID,
		"Acme Store", "token-1", 0,
		false, `{"auto_sync":true,"sync_interval_minutes":15}`, now, now,
	)
}

func TestGormConnectionRepository_FindByTenantAndPlatform(t *testing.T) {
	t.Run("finds existing connection", func(t *testing.T) {
		repo, mock, mockDB := newMockConnectionRepository(t)
		defer mockDB.Close()

		connID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "integration_connections" WHERE tenant_id = \$1 AND platform = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, messaging.PlatformWhatsApp, 1).
			WillReturnRows(connectionRows(connID, tenantID, messaging.PlatformWhatsApp, "123456"))

		conn, err := repo.FindByTenantAndPlatform(context.Background(), tenantID, messaging.PlatformWhatsApp)

		require.NoError(t, err)
		require.NotNil(t, conn)
		assert.Equal(t, connID, conn.ID)
		assert.Equal(t, messaging.ConnectionStatusConnected, conn.Status)
		assert.Equal(t, "123456", conn.BusinessAccountID)
		// settings come back out of the jsonb column
		assert.True(t, conn.Settings.AutoSync)
		assert.Equal(t, 15, conn.Settings.SyncIntervalMinutes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrConnectionNotFound for missing pair", func(t *testing.T) {
		repo, mock, mockDB := newMockConnectionRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "integration_connections" WHERE tenant_id = \$1 AND platform = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, messaging.PlatformInstagram, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		conn, err := repo.FindByTenantAndPlatform(context.Background(), tenantID, messaging.PlatformInstagram)

		assert.ErrorIs(t, err, messaging.ErrConnectionNotFound)
		assert.Nil(t, conn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormConnectionRepository_FindByBusinessAccount(t *testing.T) {
	t.Run("resolves claimed account", func(t *testing.T) {
		repo, mock, mockDB := newMockConnectionRepository(t)
		defer mockDB.Close()

		connID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "integration_connections" WHERE platform = \$1 AND business_account_id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(messaging.PlatformWhatsApp, "555001", 1).
			WillReturnRows(connectionRows(connID, tenantID, messaging.PlatformWhatsApp, "555001"))

		conn, err := repo.FindByBusinessAccount(context.Background(), messaging.PlatformWhatsApp, "555001")

		require.NoError(t, err)
		require.NotNil(t, conn)
		assert.Equal(t, tenantID, conn.TenantID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil, nil for unclaimed account", func(t *testing.T) {
		repo, mock, mockDB := newMockConnectionRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "integration_connections" WHERE platform = \$1 AND business_account_id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(messaging.PlatformInstagram, "nobody-claims-this", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		conn, err := repo.FindByBusinessAccount(context.Background(), messaging.PlatformInstagram, "nobody-claims-this")

		assert.NoError(t, err, "unclaimed account is not an error")
		assert.Nil(t, conn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormConnectionRepository_FindAllForTenant(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	tenantID := uuid.New()
	rows := connectionRows(uuid.New(), tenantID, messaging.PlatformInstagram, "ig-1")
	now := time.Now()
	rows.AddRow(
		uuid.New(), tenantID, messaging.PlatformWhatsApp, "connected", "wa-1",
		"Acme Store", "token-2", 0,
		false, "{}", now, now,
	)

	mock.ExpectQuery(`SELECT \* FROM "integration_connections" WHERE tenant_id = \$1 ORDER BY platform ASC`).
		WithArgs(tenantID).
		WillReturnRows(rows)

	connections, err := repo.FindAllForTenant(context.Background(), tenantID)

	require.NoError(t, err)
	require.Len(t, connections, 2)
	assert.Equal(t, messaging.PlatformInstagram, connections[0].Platform)
	assert.Equal(t, messaging.PlatformWhatsApp, connections[1].Platform)
	// missing settings fall back to defaults
	assert.Equal(t, 30, connections[1].Settings.SyncIntervalMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormConnectionRepository_FindAutoSyncDue(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	tenantID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "integration_connections" WHERE status = \$1 AND settings->>'auto_sync' = 'true' AND \(sync_in_progress = false OR updated_at <= \$2\) AND .*last_sync_at.*`).
		WithArgs(messaging.ConnectionStatusConnected, now.Add(-syncStuckWindow), now).
		WillReturnRows(connectionRows(uuid.New(), tenantID, messaging.PlatformInstagram, "ig-2"))

	due, err := repo.FindAutoSyncDue(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.True(t, due[0].Settings.AutoSync)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A row whose sync_in_progress flag outlived the stuck window must come back
// as due again, so a crash mid-sync cannot retire a connection from
// scheduling permanently.
func TestGormConnectionRepository_FindAutoSyncDue_ReclaimsStuckRows(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	tenantID := uuid.New()
	connID := uuid.New()
	now := time.Now()
	staleUpdate := now.Add(-syncStuckWindow - time.Hour)

	stuck := sqlmock.NewRows([]string{
		"id", "tenant_id", "platform", "status", "business_account_id",
		"business_account_name", "access_token", "consecutive_errors",
		"sync_in_progress", "settings", "created_at", "updated_at",
	}).AddRow(
		connID, tenantID, messaging.PlatformWhatsApp, "connected", "555001",
		"Acme Store", "token-1", 0,
		true, `{"auto_sync":true,"sync_interval_minutes":15}`, staleUpdate, staleUpdate,
	)

	mock.ExpectQuery(`SELECT \* FROM "integration_connections" WHERE status = \$1 AND settings->>'auto_sync' = 'true' AND \(sync_in_progress = false OR updated_at <= \$2\) AND .*last_sync_at.*`).
		WithArgs(messaging.ConnectionStatusConnected, now.Add(-syncStuckWindow), now).
		WillReturnRows(stuck)

	due, err := repo.FindAutoSyncDue(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, connID, due[0].ID)
	assert.True(t, due[0].SyncInProgress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormConnectionRepository_Save(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	conn, err := messaging.NewIntegrationConnection(uuid.New(), messaging.PlatformWhatsApp, "123456", "tok")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO "integration_connections" .* ON CONFLICT \("tenant_id","platform"\) DO UPDATE SET .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Save(context.Background(), conn)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
