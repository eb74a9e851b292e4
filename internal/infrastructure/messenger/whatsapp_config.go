package messenger

import (
	"errors"
	"fmt"
	"time"

	"github.com/chatwire/backend/internal/infrastructure/retry"
)

// WhatsAppConfig holds application-level configuration for the WhatsApp
// Business Cloud API. Tenant credentials arrive separately via Initialize.
type WhatsAppConfig struct {
	// AppID is the platform application ID used for token exchange
	AppID string
	// AppSecret signs webhook payloads and authorizes token refresh
	AppSecret string
	// VerifyToken gates the webhook subscription handshake
	VerifyToken string
	// APIBaseURL is the Graph API host
	APIBaseURL string
	// APIVersion is the Graph API version segment
	APIVersion string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// Retry bounds the backoff for outbound API calls; zero means defaults
	Retry retry.Config
}

// WhatsAppProductionAPIURL is the production Graph API endpoint
const WhatsAppProductionAPIURL = "https://graph.facebook.com"

// Errors for WhatsApp configuration
var (
	ErrWhatsAppConfigMissingSecret      = errors.New("whatsapp: app secret is required")
	ErrWhatsAppConfigMissingVerifyToken = errors.New("whatsapp: verify token is required")
)

// NewWhatsAppConfig creates a WhatsApp configuration with defaults
func NewWhatsAppConfig(appID, appSecret, verifyToken string) *WhatsAppConfig {
	return &WhatsAppConfig{
		AppID:       appID,
		AppSecret:   appSecret,
		VerifyToken: verifyToken,
		APIBaseURL:  WhatsAppProductionAPIURL,
		APIVersion:  "v19.0",
		Timeout:     30 * time.Second,
	}
}

// Validate validates the WhatsApp configuration
func (c *WhatsAppConfig) Validate() error {
	if c.AppSecret == "" {
		return ErrWhatsAppConfigMissingSecret
	}
	if c.VerifyToken == "" {
		return ErrWhatsAppConfigMissingVerifyToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = WhatsAppProductionAPIURL
	}
	if c.APIVersion == "" {
		c.APIVersion = "v19.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// endpoint builds a versioned API URL for the given path
func (c *WhatsAppConfig) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.APIBaseURL, c.APIVersion, path)
}
