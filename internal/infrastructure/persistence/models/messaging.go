package models

import (
	"encoding/json"
	"time"

	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/google/uuid"
)

// IntegrationConnectionModel is the persistence model for the
// IntegrationConnection aggregate. One row per (tenant, platform) pair.
type IntegrationConnectionModel struct {
	ID                  uuid.UUID                  `gorm:"type:uuid;primary_key"`
	TenantID            uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:uq_connection_tenant_platform,priority:1"`
	Platform            messaging.Platform         `gorm:"type:varchar(20);not null;uniqueIndex:uq_connection_tenant_platform,priority:2;index:idx_connection_business_account,priority:1"`
	Status              messaging.ConnectionStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	BusinessAccountID   string                     `gorm:"type:varchar(100);not null;index:idx_connection_business_account,priority:2"`
	BusinessAccountName string                     `gorm:"type:varchar(255)"`
	AccessToken         string                     `gorm:"type:text"`
	ConnectedAt         *time.Time
	LastSyncAt          *time.Time `gorm:"index"`
	LastSyncCursor      string     `gorm:"type:varchar(500)"`
	LastError           string     `gorm:"type:text"`
	LastErrorAt         *time.Time
	ConsecutiveErrors   int `gorm:"not null;default:0"`
	TokenExpiresAt      *time.Time
	SyncInProgress      bool      `gorm:"not null;default:false"`
	SettingsJSON        string    `gorm:"type:jsonb;column:settings"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationConnectionModel) TableName() string {
	return "integration_connections"
}

// ToDomain converts the persistence model to a domain IntegrationConnection
func (m *IntegrationConnectionModel) ToDomain() *messaging.IntegrationConnection {
	conn := &messaging.IntegrationConnection{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		Platform:            m.Platform,
		Status:              m.Status,
		BusinessAccountID:   m.BusinessAccountID,
		BusinessAccountName: m.BusinessAccountName,
		AccessToken:         m.AccessToken,
		ConnectedAt:         m.ConnectedAt,
		LastSyncAt:          m.LastSyncAt,
		LastSyncCursor:      m.LastSyncCursor,
		LastError:           m.LastError,
		LastErrorAt:         m.LastErrorAt,
		ConsecutiveErrors:   m.ConsecutiveErrors,
		TokenExpiresAt:      m.TokenExpiresAt,
		SyncInProgress:      m.SyncInProgress,
		Settings:            messaging.DefaultConnectionSettings(),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}

	if m.SettingsJSON != "" {
		var settings messaging.ConnectionSettings
		if err := json.Unmarshal([]byte(m.SettingsJSON), &settings); err == nil {
			conn.Settings = settings
		}
	}

	return conn
}

// FromDomain populates the persistence model from a domain IntegrationConnection
func (m *IntegrationConnectionModel) FromDomain(c *messaging.IntegrationConnection) {
	m.ID = c.ID
	m.TenantID = c.TenantID
	m.Platform = c.Platform
	m.Status = c.Status
	m.BusinessAccountID = c.BusinessAccountID
	m.BusinessAccountName = c.BusinessAccountName
	m.AccessToken = c.AccessToken
	m.ConnectedAt = c.ConnectedAt
	m.LastSyncAt = c.LastSyncAt
	m.LastSyncCursor = c.LastSyncCursor
	m.LastError = c.LastError
	m.LastErrorAt = c.LastErrorAt
	m.ConsecutiveErrors = c.ConsecutiveErrors
	m.TokenExpiresAt = c.TokenExpiresAt
	m.SyncInProgress = c.SyncInProgress
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt

	if jsonBytes, err := json.Marshal(c.Settings); err == nil {
		m.SettingsJSON = string(jsonBytes)
	} else {
		m.SettingsJSON = "{}"
	}
}

// IntegrationConnectionModelFromDomain creates a new persistence model from a
// domain IntegrationConnection.
func IntegrationConnectionModelFromDomain(c *messaging.IntegrationConnection) *IntegrationConnectionModel {
	m := &IntegrationConnectionModel{}
	m.FromDomain(c)
	return m
}

// MessageModel is the persistence model for stored platform messages.
// The unique index on (platform, platform_message_id) is the deduplication
// boundary for at-least-once webhook deliveries.
type MessageModel struct {
	ID                uuid.UUID                  `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID                  `gorm:"type:uuid;not null;index:idx_message_tenant,priority:1"`
	Platform          messaging.Platform         `gorm:"type:varchar(20);not null;uniqueIndex:uq_message_platform_mid,priority:1"`
	PlatformMessageID string                     `gorm:"type:varchar(255);not null;uniqueIndex:uq_message_platform_mid,priority:2"`
	SenderID          string                     `gorm:"type:varchar(100);not null;index"`
	SenderName        string                     `gorm:"type:varchar(255)"`
	RecipientID       string                     `gorm:"type:varchar(100)"`
	Content           string                     `gorm:"type:text"`
	Type              messaging.MessageType      `gorm:"type:varchar(20);not null;default:'text'"`
	Direction         messaging.MessageDirection `gorm:"type:varchar(10);not null;default:'inbound'"`
	Status            messaging.MessageStatus    `gorm:"type:varchar(20);not null;default:'received'"`
	Timestamp         time.Time                  `gorm:"not null;index"`
	MetadataJSON      string                     `gorm:"type:jsonb;column:metadata"`
	OrderIntent       bool                       `gorm:"not null;default:false"`
	CreatedAt         time.Time                  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "platform_messages"
}

// ToDomain converts the persistence model to a domain MessageRecord
func (m *MessageModel) ToDomain() *messaging.MessageRecord {
	record := &messaging.MessageRecord{
		ID:                m.ID,
		TenantID:          m.TenantID,
		Platform:          m.Platform,
		PlatformMessageID: m.PlatformMessageID,
		SenderID:          m.SenderID,
		SenderName:        m.SenderName,
		RecipientID:       m.RecipientID,
		Content:           m.Content,
		Type:              m.Type,
		Direction:         m.Direction,
		Status:            m.Status,
		Timestamp:         m.Timestamp,
		OrderIntent:       m.OrderIntent,
		CreatedAt:         m.CreatedAt,
	}

	if m.MetadataJSON != "" {
		var meta messaging.MessageMetadata
		if err := json.Unmarshal([]byte(m.MetadataJSON), &meta); err == nil {
			record.Metadata = meta
		}
	}

	return record
}

// FromDomain populates the persistence model from a domain MessageRecord
func (m *MessageModel) FromDomain(r *messaging.MessageRecord) {
	m.ID = r.ID
	m.TenantID = r.TenantID
	m.Platform = r.Platform
	m.PlatformMessageID = r.PlatformMessageID
	m.SenderID = r.SenderID
	m.SenderName = r.SenderName
	m.RecipientID = r.RecipientID
	m.Content = r.Content
	m.Type = r.Type
	m.Direction = r.Direction
	m.Status = r.Status
	m.Timestamp = r.Timestamp
	m.OrderIntent = r.OrderIntent
	m.CreatedAt = r.CreatedAt

	if jsonBytes, err := json.Marshal(r.Metadata); err == nil {
		m.MetadataJSON = string(jsonBytes)
	} else {
		m.MetadataJSON = "{}"
	}
}

// MessageModelFromDomain creates a new persistence model from a domain MessageRecord
func MessageModelFromDomain(r *messaging.MessageRecord) *MessageModel {
	m := &MessageModel{}
	m.FromDomain(r)
	return m
}
