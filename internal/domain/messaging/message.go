package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Stored message
// ---------------------------------------------------------------------------

// MessageRecord is the persisted form of a unified message after attribution
// to a tenant. The (platform, platform_message_id) pair is unique; concurrent
// at-least-once deliveries of the same event reconcile to a single row via
// the storage-layer constraint.
type MessageRecord struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Platform          Platform
	PlatformMessageID string
	SenderID          string
	SenderName        string
	RecipientID       string
	Content           string
	Type              MessageType
	Direction         MessageDirection
	Status            MessageStatus
	Timestamp         time.Time
	Metadata          MessageMetadata
	// OrderIntent is the downstream analysis signal attached at storage time
	OrderIntent bool
	CreatedAt   time.Time
}

// NewMessageRecord builds a record from a unified message owned by a tenant
func NewMessageRecord(tenantID uuid.UUID, msg *UnifiedMessage) *MessageRecord {
	return &MessageRecord{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Platform:          msg.Platform,
		PlatformMessageID: msg.PlatformMessageID,
		SenderID:          msg.SenderID,
		SenderName:        msg.SenderName,
		RecipientID:       msg.RecipientID,
		Content:           msg.Content,
		Type:              msg.Type,
		Direction:         msg.Direction,
		Status:            msg.Status,
		Timestamp:         msg.Timestamp,
		Metadata:          msg.Metadata,
		CreatedAt:         time.Now(),
	}
}

// StoreOutcome reports what happened to one message at the store
type StoreOutcome struct {
	// Stored is false when the uniqueness constraint absorbed a duplicate
	Stored bool
	// OrderIntent mirrors the analysis signal recorded with the message
	OrderIntent bool
}

// MessageStore is the storage collaborator the orchestrator hands messages
// to. Ownership of the message passes to the store; the ingestion core only
// guarantees the message reaches it effectively once.
type MessageStore interface {
	// Exists checks the deduplication key
	Exists(ctx context.Context, platform Platform, platformMessageID string) (bool, error)

	// Store persists the record. Implementations must absorb duplicate keys
	// (insert-if-absent) and report Stored=false rather than failing.
	Store(ctx context.Context, record *MessageRecord) (*StoreOutcome, error)
}

// ---------------------------------------------------------------------------
// Analysis collaborator
// ---------------------------------------------------------------------------

// AnalysisResult is the opaque scoring the AI collaborator returns. The
// ingestion core consumes it only as a counter; business semantics stay
// downstream.
type AnalysisResult struct {
	// OrderIntent flags a detected purchase intent
	OrderIntent bool
	// Amount is the detected order amount, zero when none
	Amount decimal.Decimal
	// Confidence is the model's confidence in [0,1]
	Confidence float64
}

// MessageAnalyzer is the AI hook invoked after storage. Failures never block
// storage; they surface as retryable analysis errors.
type MessageAnalyzer interface {
	Analyze(ctx context.Context, tenantID uuid.UUID, msg *UnifiedMessage) (*AnalysisResult, error)
}
