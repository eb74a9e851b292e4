package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ConnectionStatus
// ---------------------------------------------------------------------------

// ConnectionStatus represents the lifecycle state of a platform connection
type ConnectionStatus string

const (
	// ConnectionStatusDisconnected indicates no active connection
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	// ConnectionStatusPending indicates a connection being established
	ConnectionStatusPending ConnectionStatus = "pending"
	// ConnectionStatusConnected indicates an operational connection
	ConnectionStatusConnected ConnectionStatus = "connected"
	// ConnectionStatusError indicates the last operation failed; the next
	// successful operation transitions back to connected (self-healing)
	ConnectionStatusError ConnectionStatus = "error"
)

// IsValid returns true if the status is known
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusDisconnected, ConnectionStatusPending,
		ConnectionStatusConnected, ConnectionStatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// ConnectionSettings
// ---------------------------------------------------------------------------

// ConnectionSettings holds per-connection sync preferences
type ConnectionSettings struct {
	// AutoSync enables the scheduled background sync for this connection
	AutoSync bool `json:"auto_sync"`
	// SyncIntervalMinutes is how often the background sync runs
	SyncIntervalMinutes int `json:"sync_interval_minutes"`
	// PlatformFlags holds platform-specific toggles
	PlatformFlags map[string]string `json:"platform_flags,omitempty"`
}

// DefaultConnectionSettings returns settings applied on connect
func DefaultConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		AutoSync:            false,
		SyncIntervalMinutes: 30,
	}
}

// ---------------------------------------------------------------------------
// IntegrationConnection aggregate
// ---------------------------------------------------------------------------

// IntegrationConnection is the persisted connection/sync state for one
// (tenant, platform) pair. It is unique per pair, created on connect, mutated
// by every sync/health/error event, and soft-reset on disconnect.
//
// SyncInProgress is a liveness flag for observability, not a mutual-exclusion
// primitive: it must never remain true after a sync call returns, and
// concurrent sync triggers are reconciled by the message store's uniqueness
// constraint, not by this flag.
type IntegrationConnection struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	Platform            Platform
	Status              ConnectionStatus
	BusinessAccountID   string
	BusinessAccountName string
	AccessToken         string
	ConnectedAt         *time.Time
	LastSyncAt          *time.Time
	LastSyncCursor      string
	LastError           string
	LastErrorAt         *time.Time
	ConsecutiveErrors   int
	TokenExpiresAt      *time.Time
	SyncInProgress      bool
	Settings            ConnectionSettings
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewIntegrationConnection creates a pending connection for a tenant
func NewIntegrationConnection(tenantID uuid.UUID, platform Platform, businessAccountID, accessToken string) (*IntegrationConnection, error) {
	if tenantID == uuid.Nil {
		return nil, ErrConfigMissingTenant
	}
	if !platform.IsValid() {
		return nil, ErrInvalidPlatform
	}
	if businessAccountID == "" {
		return nil, ErrConfigMissingBusinessAccount
	}
	if accessToken == "" {
		return nil, ErrConfigMissingAccessToken
	}
	now := time.Now()
	return &IntegrationConnection{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Platform:          platform,
		Status:            ConnectionStatusPending,
		BusinessAccountID: businessAccountID,
		AccessToken:       accessToken,
		Settings:          DefaultConnectionSettings(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// MarkConnected transitions the connection to connected and clears error state
func (c *IntegrationConnection) MarkConnected(accountName string) {
	now := time.Now()
	c.Status = ConnectionStatusConnected
	if accountName != "" {
		c.BusinessAccountName = accountName
	}
	if c.ConnectedAt == nil {
		c.ConnectedAt = &now
	}
	c.LastError = ""
	c.LastErrorAt = nil
	c.ConsecutiveErrors = 0
	c.UpdatedAt = now
}

// MarkDisconnected soft-resets the connection state. The row survives so the
// tenant's settings and history remain, but credentials and sync state are
// cleared.
func (c *IntegrationConnection) MarkDisconnected() {
	c.Status = ConnectionStatusDisconnected
	c.AccessToken = ""
	c.ConnectedAt = nil
	c.LastSyncCursor = ""
	c.TokenExpiresAt = nil
	c.SyncInProgress = false
	c.UpdatedAt = time.Now()
}

// RecordError moves the connection to the error state and bumps the failure
// counter. The counter is monotonic across failures and reset on success.
func (c *IntegrationConnection) RecordError(err error) {
	now := time.Now()
	c.Status = ConnectionStatusError
	if err != nil {
		c.LastError = err.Error()
	}
	c.LastErrorAt = &now
	c.ConsecutiveErrors++
	c.SyncInProgress = false
	c.UpdatedAt = now
}

// RecordSuccess self-heals an errored connection after any successful operation
func (c *IntegrationConnection) RecordSuccess() {
	if c.Status == ConnectionStatusError {
		c.Status = ConnectionStatusConnected
	}
	c.ConsecutiveErrors = 0
	c.LastError = ""
	c.LastErrorAt = nil
	c.UpdatedAt = time.Now()
}

// BeginSync flags a sync as running. Best-effort: callers must pair it with
// FinishSync in a defer so the flag never survives the call.
func (c *IntegrationConnection) BeginSync() {
	c.SyncInProgress = true
	c.UpdatedAt = time.Now()
}

// FinishSync clears the liveness flag and records the sync watermark
func (c *IntegrationConnection) FinishSync(cursor string, at time.Time) {
	c.SyncInProgress = false
	c.LastSyncAt = &at
	if cursor != "" {
		c.LastSyncCursor = cursor
	}
	c.UpdatedAt = time.Now()
}

// UpdateToken records a refreshed access token and its expiry
func (c *IntegrationConnection) UpdateToken(token string, expiresAt time.Time) {
	c.AccessToken = token
	c.TokenExpiresAt = &expiresAt
	c.UpdatedAt = time.Now()
}

// TokenExpiringWithin reports whether the stored token expires inside d
func (c *IntegrationConnection) TokenExpiringWithin(d time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return time.Now().Add(d).After(*c.TokenExpiresAt)
}

// IsConnected returns true when the connection is usable for API calls
func (c *IntegrationConnection) IsConnected() bool {
	return c.Status == ConnectionStatusConnected && c.AccessToken != ""
}

// ---------------------------------------------------------------------------
// Repository
// ---------------------------------------------------------------------------

// ConnectionRepository is the persistence port for integration connections
type ConnectionRepository interface {
	// FindByTenantAndPlatform returns the connection for the pair, or
	// ErrConnectionNotFound
	FindByTenantAndPlatform(ctx context.Context, tenantID uuid.UUID, platform Platform) (*IntegrationConnection, error)

	// FindByBusinessAccount resolves the connection claiming a platform
	// business account ID. Returns (nil, nil) when no tenant claims it.
	FindByBusinessAccount(ctx context.Context, platform Platform, businessAccountID string) (*IntegrationConnection, error)

	// FindAllForTenant returns every connection a tenant owns
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]IntegrationConnection, error)

	// FindAutoSyncDue returns connected rows with auto-sync enabled whose
	// last sync is older than their configured interval
	FindAutoSyncDue(ctx context.Context, now time.Time) ([]IntegrationConnection, error)

	// Save upserts the connection (last-write-wins, per pair)
	Save(ctx context.Context, conn *IntegrationConnection) error
}
