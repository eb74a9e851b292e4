// Package messenger contains the platform adapters for external messaging
// APIs. Each adapter implements the messaging.ChannelIntegration port over a
// shared core providing lifecycle state, webhook signature verification,
// retry wrapping and rate-limit bookkeeping.
package messenger

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/infrastructure/retry"
)

// maxResponseSize is the maximum allowed response size from platform APIs (10MB)
const maxResponseSize = 10 * 1024 * 1024

// signaturePrefix is the scheme tag carried by the webhook signature header
const signaturePrefix = "sha256="

// integrationCore is the composition helper shared by all adapters. It owns
// the lifecycle state machine (disconnected -> pending -> connected, error as
// a side state that self-heals on the next success), the HMAC verification of
// inbound webhooks, the retry executor wrapping outbound calls, and the
// advisory rate-limit snapshot.
type integrationCore struct {
	platform    messaging.Platform
	appSecret   string
	verifyToken string
	httpClient  *http.Client
	executor    *retry.Executor
	logger      *zap.Logger

	mu    sync.RWMutex
	state messaging.ConnectionStatus
	cfg   *messaging.IntegrationConfig
	rate  messaging.RateLimitInfo
}

// newIntegrationCore builds the shared core for one adapter instance. The
// policy carries the operator-tuned backoff bounds; a zero policy falls back
// to the package defaults. Which failures retry is fixed here regardless.
func newIntegrationCore(platform messaging.Platform, appSecret, verifyToken string, timeout time.Duration, policy retry.Config, logger *zap.Logger) *integrationCore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	core := &integrationCore{
		platform:    platform,
		appSecret:   appSecret,
		verifyToken: verifyToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.With(zap.String("platform", platform.String())),
		state:       messaging.ConnectionStatusDisconnected,
		rate:        messaging.RateLimitInfo{Remaining: -1},
	}

	// network, 429 and 5xx conditions retry; auth and validation failures stop
	retryCfg := retry.DefaultConfig()
	if policy.MaxRetries != 0 || policy.BaseDelay != 0 || policy.MaxDelay != 0 {
		retryCfg.MaxRetries = policy.MaxRetries
		retryCfg.BaseDelay = policy.BaseDelay
		retryCfg.MaxDelay = policy.MaxDelay
	}
	retryCfg.RetryableErrors = []error{
		messaging.ErrPlatformUnavailable,
		messaging.ErrPlatformRateLimited,
	}
	retryCfg.RetryableSubstrings = []string{
		"timeout",
		"connection reset",
		"connection refused",
	}
	retryCfg.WaitHint = core.rateWaitHint
	core.executor = retry.New(retryCfg, core.logger)

	return core
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// initialize validates the tenant config before any network activity
func (c *integrationCore) initialize(cfg *messaging.IntegrationConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = messaging.ConnectionStatusPending
	if err := cfg.Validate(c.platform); err != nil {
		c.state = messaging.ConnectionStatusError
		return err
	}

	c.cfg = cfg
	c.state = messaging.ConnectionStatusConnected
	return nil
}

// isConfigured reports whether initialize succeeded
func (c *integrationCore) isConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg != nil
}

// currentState returns the adapter lifecycle state
func (c *integrationCore) currentState() messaging.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// config returns the tenant config, or an error when not initialized
func (c *integrationCore) config() (*messaging.IntegrationConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cfg == nil {
		return nil, messaging.ErrPlatformNotConfigured
	}
	return c.cfg, nil
}

// recordFailure transitions to the error state
func (c *integrationCore) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = messaging.ConnectionStatusError
}

// recordSuccess self-heals the error state
func (c *integrationCore) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == messaging.ConnectionStatusError {
		c.state = messaging.ConnectionStatusConnected
	}
}

// setToken swaps the access token after a refresh
func (c *integrationCore) setToken(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		c.cfg.AccessToken = token
		c.cfg.TokenExpiresAt = expiresAt
	}
}

// disconnect releases adapter-side state
func (c *integrationCore) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = nil
	c.state = messaging.ConnectionStatusDisconnected
}

// ---------------------------------------------------------------------------
// Webhook verification
// ---------------------------------------------------------------------------

// verifySubscription handles the registration handshake: the challenge is
// echoed when the mode and the preset verify-token match.
func (c *integrationCore) verifySubscription(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token == "" || token != c.verifyToken {
		return "", messaging.ErrVerifyTokenMismatch
	}
	return challenge, nil
}

// verifyWebhook matches the header-supplied HMAC-SHA256 signature against the
// raw body. It must run before any parsing of the payload.
func (c *integrationCore) verifyWebhook(signatureHeader string, body []byte) error {
	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return messaging.ErrPlatformInvalidSignature
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil {
		return messaging.ErrPlatformInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return messaging.ErrPlatformInvalidSignature
	}
	return nil
}

// ---------------------------------------------------------------------------
// Rate-limit bookkeeping
// ---------------------------------------------------------------------------

// updateRateLimit opportunistically refreshes the advisory snapshot from
// response headers.
func (c *integrationCore) updateRateLimit(resp *http.Response) {
	now := time.Now()

	info := messaging.RateLimitInfo{Remaining: -1, UpdatedAt: now}
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil {
			info.Remaining = remaining
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.ResetAt = time.Unix(epoch, 0)
		}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		info.Remaining = 0
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil {
				info.ResetAt = now.Add(time.Duration(seconds) * time.Second)
			}
		}
		if info.ResetAt.IsZero() {
			info.ResetAt = now.Add(time.Minute)
		}
	}

	c.mu.Lock()
	c.rate = info
	c.mu.Unlock()
}

// rateLimit returns the advisory snapshot
func (c *integrationCore) rateLimit() messaging.RateLimitInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate
}

// rateWaitHint feeds the retry executor: when the quota is known exhausted,
// the next attempt waits for the window to reset.
func (c *integrationCore) rateWaitHint() time.Duration {
	return c.rateLimit().WaitDuration(time.Now())
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

// graphError is the error envelope platform APIs wrap failures in
type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
	} `json:"error"`
}

// tokenExpiredCode is the platform error code for an expired access token
const tokenExpiredCode = 190

// doRequest performs one authenticated JSON request and classifies the
// response status into the domain error taxonomy.
func (c *integrationCore) doRequest(ctx context.Context, method, url, accessToken string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("messenger: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("messenger: failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", messaging.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	c.updateRateLimit(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("messenger: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		var envelope graphError
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error.Code == tokenExpiredCode {
			return nil, fmt.Errorf("%w: %s", messaging.ErrPlatformTokenExpired, envelope.Error.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", messaging.ErrPlatformAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d", messaging.ErrPlatformRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", messaging.ErrPlatformUnavailable, resp.StatusCode)
	default:
		detail := platformErrorMessage(body)
		if detail != "" {
			return nil, fmt.Errorf("%w: HTTP %d - %s", messaging.ErrPlatformRequestFailed, resp.StatusCode, detail)
		}
		return nil, fmt.Errorf("%w: HTTP %d", messaging.ErrPlatformRequestFailed, resp.StatusCode)
	}
}

// execute runs an outbound API call wrapped in the shared retry policy,
// updating the lifecycle state from the outcome.
func (c *integrationCore) execute(ctx context.Context, op retry.Operation) (any, error) {
	data, err := c.executor.ExecuteOrError(ctx, op)
	if err != nil {
		c.recordFailure()
		return nil, err
	}
	c.recordSuccess()
	return data, nil
}

// isAuthError reports whether the failure came from credential rejection
// rather than from the network or the platform being down.
func isAuthError(err error) bool {
	return errors.Is(err, messaging.ErrPlatformAuthFailed) || errors.Is(err, messaging.ErrPlatformTokenExpired)
}

// platformErrorMessage extracts the error message from an API error envelope
func platformErrorMessage(body []byte) string {
	var envelope graphError
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Error.Message
}

// parseUnixTimestamp converts a platform's epoch-seconds string to a time,
// falling back to now for absent or malformed values.
func parseUnixTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(epoch, 0)
}
