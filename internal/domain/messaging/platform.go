package messaging

import (
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies an external messaging platform
type Platform string

const (
	// PlatformWhatsApp represents the WhatsApp Business Cloud API
	PlatformWhatsApp Platform = "WHATSAPP"
	// PlatformInstagram represents Instagram Direct messaging
	PlatformInstagram Platform = "INSTAGRAM"
)

// IsValid returns true if the platform is known
func (p Platform) IsValid() bool {
	switch p {
	case PlatformWhatsApp, PlatformInstagram:
		return true
	default:
		return false
	}
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform
func (p Platform) DisplayName() string {
	switch p {
	case PlatformWhatsApp:
		return "WhatsApp Business"
	case PlatformInstagram:
		return "Instagram Direct"
	default:
		return string(p)
	}
}

// ParsePlatform converts an external identifier (route parameter, config key)
// to a Platform, case-insensitively.
func ParsePlatform(s string) (Platform, bool) {
	switch {
	case strings.EqualFold(s, "whatsapp"):
		return PlatformWhatsApp, true
	case strings.EqualFold(s, "instagram"):
		return PlatformInstagram, true
	default:
		return "", false
	}
}

// ---------------------------------------------------------------------------
// Message value objects
// ---------------------------------------------------------------------------

// MessageType classifies the content of a message
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeLocation MessageType = "location"
	MessageTypeContact  MessageType = "contact"
	MessageTypeSticker  MessageType = "sticker"
)

// IsValid returns true if the message type is known
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio,
		MessageTypeDocument, MessageTypeLocation, MessageTypeContact, MessageTypeSticker:
		return true
	default:
		return false
	}
}

// Placeholder returns the documented substitute content used when a media
// message arrives without a caption.
func (t MessageType) Placeholder() string {
	switch t {
	case MessageTypeImage:
		return "[Image]"
	case MessageTypeVideo:
		return "[Video]"
	case MessageTypeAudio:
		return "[Audio]"
	case MessageTypeDocument:
		return "[Document]"
	case MessageTypeLocation:
		return "[Location]"
	case MessageTypeContact:
		return "[Contact]"
	case MessageTypeSticker:
		return "[Sticker]"
	default:
		return ""
	}
}

// MessageDirection indicates whether a message flows into or out of the system
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageStatus represents the delivery status of a message
type MessageStatus string

const (
	MessageStatusReceived  MessageStatus = "received"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// MessageMetadata carries optional platform-specific attributes
type MessageMetadata struct {
	// MediaURL is the URL of the attached media, if any
	MediaURL string `json:"media_url,omitempty"`
	// MediaID is the platform-side media identifier used for downloads
	MediaID string `json:"media_id,omitempty"`
	// ReplyToID is the platform message ID this message replies to
	ReplyToID string `json:"reply_to_id,omitempty"`
	// Subtype is a platform-specific refinement of the message type
	Subtype string `json:"subtype,omitempty"`
}

// UnifiedMessage is the platform-agnostic message representation produced by
// adapter parsing. PlatformMessageID is globally unique per platform and is
// the sole deduplication key; identity is never re-derived from
// content+timestamp.
type UnifiedMessage struct {
	PlatformMessageID string
	Platform          Platform
	SenderID          string
	SenderName        string
	RecipientID       string
	Content           string
	Type              MessageType
	Direction         MessageDirection
	Status            MessageStatus
	Timestamp         time.Time
	Metadata          MessageMetadata
}

// Validate checks the minimal invariants required before a message can be
// deduplicated and stored.
func (m *UnifiedMessage) Validate() error {
	if m.PlatformMessageID == "" {
		return ErrMessageMissingID
	}
	if !m.Platform.IsValid() {
		return ErrInvalidPlatform
	}
	if m.SenderID == "" {
		return ErrMessageMissingSender
	}
	return nil
}

// ---------------------------------------------------------------------------
// Rate limit bookkeeping
// ---------------------------------------------------------------------------

// RateLimitInfo is the advisory per-adapter quota state derived from the last
// API response headers. It is never persisted.
type RateLimitInfo struct {
	// Remaining is the number of calls left in the current window (-1 when unknown)
	Remaining int
	// ResetAt is when the window resets
	ResetAt time.Time
	// UpdatedAt is when this snapshot was taken
	UpdatedAt time.Time
}

// Exhausted returns true when the quota is known to be used up and the window
// has not reset yet.
func (r RateLimitInfo) Exhausted(now time.Time) bool {
	return r.Remaining == 0 && now.Before(r.ResetAt)
}

// WaitDuration returns how long a caller should wait before the next attempt,
// zero when no wait is needed.
func (r RateLimitInfo) WaitDuration(now time.Time) time.Duration {
	if !r.Exhausted(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}
