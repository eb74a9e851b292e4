package messenger

import (
	"errors"
	"fmt"
	"time"

	"github.com/chatwire/backend/internal/infrastructure/retry"
)

// InstagramConfig holds application-level configuration for the Instagram
// Messaging API. Tenant credentials arrive separately via Initialize.
type InstagramConfig struct {
	// AppSecret signs webhook payloads
	AppSecret string
	// VerifyToken gates the webhook subscription handshake
	VerifyToken string
	// APIBaseURL is the Instagram Graph API host
	APIBaseURL string
	// APIVersion is the API version segment
	APIVersion string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// Retry bounds the backoff for outbound API calls; zero means defaults
	Retry retry.Config
}

// InstagramProductionAPIURL is the production Instagram Graph API endpoint
const InstagramProductionAPIURL = "https://graph.instagram.com"

// defaultSyncPageLimit caps conversations per sync page when the caller
// leaves the limit unset.
const defaultSyncPageLimit = 25

// Errors for Instagram configuration
var (
	ErrInstagramConfigMissingSecret      = errors.New("instagram: app secret is required")
	ErrInstagramConfigMissingVerifyToken = errors.New("instagram: verify token is required")
)

// NewInstagramConfig creates an Instagram configuration with defaults
func NewInstagramConfig(appSecret, verifyToken string) *InstagramConfig {
	return &InstagramConfig{
		AppSecret:   appSecret,
		VerifyToken: verifyToken,
		APIBaseURL:  InstagramProductionAPIURL,
		APIVersion:  "v19.0",
		Timeout:     30 * time.Second,
	}
}

// Validate validates the Instagram configuration
func (c *InstagramConfig) Validate() error {
	if c.AppSecret == "" {
		return ErrInstagramConfigMissingSecret
	}
	if c.VerifyToken == "" {
		return ErrInstagramConfigMissingVerifyToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = InstagramProductionAPIURL
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
func (c *InstagramConfig) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.APIBaseURL, c.APIVersion, path)
}
