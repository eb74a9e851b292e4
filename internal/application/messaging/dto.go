package messaging

import (
	"time"

	"github.com/chatwire/backend/internal/domain/messaging"
)

// ConnectionDTO is the API-facing projection of an integration connection.
// Credentials never leave the application layer.
type ConnectionDTO struct {
	Platform            string     `json:"platform"`
	DisplayName         string     `json:"display_name"`
	Status              string     `json:"status"`
	BusinessAccountID   string     `json:"business_account_id"`
	BusinessAccountName string     `json:"business_account_name,omitempty"`
	ConnectedAt         *time.Time `json:"connected_at,omitempty"`
	LastSyncAt          *time.Time `json:"last_sync_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveErrors   int        `json:"consecutive_errors,omitempty"`
	SyncInProgress      bool       `json:"sync_in_progress"`
	TokenExpiresAt      *time.Time `json:"token_expires_at,omitempty"`
	AutoSync            bool       `json:"auto_sync"`
	SyncIntervalMinutes int        `json:"sync_interval_minutes"`
}

// ConnectionToDTO projects a connection aggregate for API responses
func ConnectionToDTO(conn *messaging.IntegrationConnection) ConnectionDTO {
	return ConnectionDTO{
		Platform:            conn.Platform.String(),
		DisplayName:         conn.Platform.DisplayName(),
		Status:              conn.Status.String(),
		BusinessAccountID:   conn.BusinessAccountID,
		BusinessAccountName: conn.BusinessAccountName,
		ConnectedAt:         conn.ConnectedAt,
		LastSyncAt:          conn.LastSyncAt,
		LastError:           conn.LastError,
		ConsecutiveErrors:   conn.ConsecutiveErrors,
		SyncInProgress:      conn.SyncInProgress,
		TokenExpiresAt:      conn.TokenExpiresAt,
		AutoSync:            conn.Settings.AutoSync,
		SyncIntervalMinutes: conn.Settings.SyncIntervalMinutes,
	}
}

// PlatformHealth is one adapter's health entry in a tenant-wide fan-out.
// A failed probe becomes a degraded entry, never an error for the whole call.
type PlatformHealth struct {
	Platform string                  `json:"platform"`
	Health   *messaging.HealthStatus `json:"health,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// TokenRefreshOutcome reports one connection's result in a batch refresh
type TokenRefreshOutcome struct {
	Platform  string     `json:"platform"`
	Refreshed bool       `json:"refreshed"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// SyncReport is the result of one manual or scheduled sync run
type SyncReport struct {
	Platform           string    `json:"platform"`
	MessagesCount      int       `json:"messages_count"`
	ConversationsCount int       `json:"conversations_count"`
	MessagesStored     int       `json:"messages_stored"`
	HasMore            bool      `json:"has_more"`
	NextCursor         string    `json:"next_cursor,omitempty"`
	SyncedAt           time.Time `json:"synced_at"`
}
