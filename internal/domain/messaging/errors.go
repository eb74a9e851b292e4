package messaging

import "errors"

var (
	// Platform/adapter errors
	ErrInvalidPlatform          = errors.New("messaging: invalid platform")
	ErrPlatformNotConfigured    = errors.New("messaging: platform not configured")
	ErrPlatformNotRegistered    = errors.New("messaging: platform not registered for tenant")
	ErrPlatformUnavailable      = errors.New("messaging: platform temporarily unavailable")
	ErrPlatformRequestFailed    = errors.New("messaging: platform request failed")
	ErrPlatformInvalidResponse  = errors.New("messaging: invalid platform response")
	ErrPlatformAuthFailed       = errors.New("messaging: platform authentication failed")
	ErrPlatformTokenExpired     = errors.New("messaging: platform token expired")
	ErrPlatformRateLimited      = errors.New("messaging: platform rate limited")
	ErrPlatformInvalidSignature = errors.New("messaging: invalid webhook signature")
	ErrVerifyTokenMismatch      = errors.New("messaging: verify token mismatch")
	ErrSyncNotSupported         = errors.New("messaging: platform does not support pull sync")

	// Configuration errors (immediate, non-retryable)
	ErrConfigMissingTenant          = errors.New("messaging: tenant ID is required")
	ErrConfigMissingBusinessAccount = errors.New("messaging: business account ID is required")
	ErrConfigMissingAccessToken     = errors.New("messaging: access token is required")
	ErrConfigPlatformMismatch       = errors.New("messaging: config platform does not match adapter")

	// Connection errors
	ErrConnectionNotFound = errors.New("messaging: integration connection not found")
	ErrConnectionExists   = errors.New("messaging: integration connection already exists")

	// Message errors
	ErrMessageMissingID     = errors.New("messaging: platform message ID is required")
	ErrMessageMissingSender = errors.New("messaging: sender ID is required")
	ErrDuplicateMessage     = errors.New("messaging: message already stored")

	// Webhook errors
	ErrPayloadMissingAccount = errors.New("messaging: payload carries no business account identifier")
)
