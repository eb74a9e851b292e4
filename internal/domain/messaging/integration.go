package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Adapter configuration
// ---------------------------------------------------------------------------

// IntegrationConfig is the per-tenant configuration handed to an adapter's
// Initialize. Validation happens before any network call; a validation
// failure is immediate and non-retryable.
type IntegrationConfig struct {
	// TenantID is the tenant owning the connection
	TenantID uuid.UUID
	// Platform must match the adapter receiving the config
	Platform Platform
	// BusinessAccountID is the platform-assigned account identifier
	BusinessAccountID string
	// AccessToken authorizes API calls on behalf of the tenant
	AccessToken string
	// TokenExpiresAt is the known token expiry, zero when unknown
	TokenExpiresAt time.Time
}

// Validate checks required fields and the platform match
func (c *IntegrationConfig) Validate(adapterPlatform Platform) error {
	if c.TenantID == uuid.Nil {
		return ErrConfigMissingTenant
	}
	if c.BusinessAccountID == "" {
		return ErrConfigMissingBusinessAccount
	}
	if c.AccessToken == "" {
		return ErrConfigMissingAccessToken
	}
	if c.Platform != adapterPlatform {
		return ErrConfigPlatformMismatch
	}
	return nil
}

// ---------------------------------------------------------------------------
// Operation results
// ---------------------------------------------------------------------------

// HealthStatus reports three orthogonal probes so failures are diagnosable.
// Overall health is the conjunction.
type HealthStatus struct {
	APIReachable      bool      `json:"api_reachable"`
	TokenValid        bool      `json:"token_valid"`
	WebhookRegistered bool      `json:"webhook_registered"`
	Healthy           bool      `json:"healthy"`
	Detail            string    `json:"detail,omitempty"`
	CheckedAt         time.Time `json:"checked_at"`
}

// SyncRequest describes an incremental history pull
type SyncRequest struct {
	// Since filters messages to those newer than this instant (zero = all)
	Since time.Time
	// Cursor continues a previous page (platform-opaque)
	Cursor string
	// Limit caps conversations per page; adapters apply their own default
	Limit int
}

// SyncOutcome is the result of one SyncMessages call
type SyncOutcome struct {
	// Messages are the unified messages pulled in this page
	Messages []UnifiedMessage
	// MessagesCount is len(Messages), surfaced for API responses
	MessagesCount int
	// ConversationsCount is how many conversations were visited
	ConversationsCount int
	// HasMore indicates another page is available
	HasMore bool
	// NextCursor continues the pull when HasMore is true
	NextCursor string
	// SyncedAt is when the pull completed
	SyncedAt time.Time
}

// SendResult is the result of an outbound send
type SendResult struct {
	// PlatformMessageID is the ID the platform assigned to the sent message
	PlatformMessageID string
	// SentAt is when the platform accepted the message
	SentAt time.Time
}

// ---------------------------------------------------------------------------
// ChannelIntegration port
// ---------------------------------------------------------------------------

// ChannelIntegration is the port implemented by each platform adapter. It is
// defined in the domain layer; concrete adapters (WhatsApp Cloud, Instagram
// Direct) live in the infrastructure layer and share a composition helper for
// lifecycle, retry and rate-limit bookkeeping.
//
// State machine: Disconnected -> Pending -> Connected, with a side transition
// to Error from any state on failure and Error -> Connected on the next
// successful operation.
type ChannelIntegration interface {
	// Platform returns the platform this adapter handles
	Platform() Platform

	// Initialize validates the config and prepares the adapter for API calls.
	// Validation failures return before any network activity.
	Initialize(ctx context.Context, cfg *IntegrationConfig) error

	// IsConfigured reports whether Initialize succeeded
	IsConfigured() bool

	// State returns the adapter's lifecycle state
	State() ConnectionStatus

	// VerifySubscription handles the registration handshake: it returns the
	// challenge to echo when mode and token match, ErrVerifyTokenMismatch
	// otherwise.
	VerifySubscription(mode, token, challenge string) (string, error)

	// VerifyWebhook checks the HMAC-SHA256 signature header against the raw
	// body. It must be called before any parsing.
	VerifyWebhook(signatureHeader string, body []byte) error

	// ExtractBusinessAccount pulls the platform's business-account identifier
	// out of a raw webhook payload using best-effort structural extraction.
	ExtractBusinessAccount(body []byte) (string, error)

	// ParseWebhook flattens a raw webhook body (entries x events) into
	// unified messages. Purely structural; tolerant of missing optional
	// fields.
	ParseWebhook(body []byte) ([]UnifiedMessage, error)

	// SendMessage delivers an outbound message, wrapped in retry
	SendMessage(ctx context.Context, msg *UnifiedMessage) (*SendResult, error)

	// SyncMessages pulls historical messages where the platform supports it.
	// Adapters without pull history return an empty outcome that still
	// stamps SyncedAt.
	SyncMessages(ctx context.Context, req *SyncRequest) (*SyncOutcome, error)

	// HealthCheck probes API reachability, token validity and webhook
	// registration independently
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// RefreshToken exchanges the current token for a fresh long-lived one and
	// returns the new token and its expiry
	RefreshToken(ctx context.Context) (string, time.Time, error)

	// RateLimit returns the advisory rate-limit snapshot
	RateLimit() RateLimitInfo

	// Disconnect releases adapter-side state
	Disconnect(ctx context.Context) error
}

// IntegrationFactory builds an initialized adapter from a persisted
// connection row. Each request resolves its own tenant-scoped set; there is
// no process-wide adapter registry.
type IntegrationFactory interface {
	Build(ctx context.Context, conn *IntegrationConnection) (ChannelIntegration, error)
}
