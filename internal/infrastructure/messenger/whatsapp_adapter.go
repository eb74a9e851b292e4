package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/domain/messaging"
)

// WhatsAppAdapter implements the ChannelIntegration port for the WhatsApp
// Business Cloud API. All inbound messages arrive via webhook; the platform
// exposes no pull-based history, so SyncMessages is a stamped no-op.
type WhatsAppAdapter struct {
	core   *integrationCore
	config *WhatsAppConfig

	mu            sync.RWMutex
	phoneNumberID string
	accountName   string
}

// NewWhatsAppAdapter creates a WhatsApp adapter with the given configuration
func NewWhatsAppAdapter(config *WhatsAppConfig, logger *zap.Logger) (*WhatsAppAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &WhatsAppAdapter{
		core:   newIntegrationCore(messaging.PlatformWhatsApp, config.AppSecret, config.VerifyToken, config.Timeout, config.Retry, logger),
		config: config,
	}, nil
}

// Platform returns the platform this adapter handles
func (a *WhatsAppAdapter) Platform() messaging.Platform {
	return messaging.PlatformWhatsApp
}

// Initialize validates the tenant config and resolves the phone-number
// sub-identifier under the business account. Validation failures return
// before any network call.
func (a *WhatsAppAdapter) Initialize(ctx context.Context, cfg *messaging.IntegrationConfig) error {
	if err := a.core.initialize(cfg); err != nil {
		return err
	}

	phoneURL := a.config.endpoint(cfg.BusinessAccountID + "/phone_numbers")
	body, err := a.core.doRequest(ctx, http.MethodGet, phoneURL, cfg.AccessToken, nil)
	if err != nil {
		a.core.recordFailure()
		return fmt.Errorf("whatsapp: failed to resolve phone number: %w", err)
	}

	var resp whatsAppPhoneNumbersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		a.core.recordFailure()
		return fmt.Errorf("%w: %v", messaging.ErrPlatformInvalidResponse, err)
	}
	if len(resp.Data) == 0 {
		a.core.recordFailure()
		return fmt.Errorf("%w: business account has no phone numbers", messaging.ErrPlatformInvalidResponse)
	}

	a.mu.Lock()
	a.phoneNumberID = resp.Data[0].ID
	a.accountName = resp.Data[0].VerifiedName
	a.mu.Unlock()

	return nil
}

// IsConfigured reports whether Initialize succeeded
func (a *WhatsAppAdapter) IsConfigured() bool {
	return a.core.isConfigured()
}

// State returns the adapter's lifecycle state
func (a *WhatsAppAdapter) State() messaging.ConnectionStatus {
	return a.core.currentState()
}

// AccountName returns the verified business name resolved at initialization
func (a *WhatsAppAdapter) AccountName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.accountName
}

// VerifySubscription handles the webhook registration handshake
func (a *WhatsAppAdapter) VerifySubscription(mode, token, challenge string) (string, error) {
	return a.core.verifySubscription(mode, token, challenge)
}

// VerifyWebhook checks the HMAC-SHA256 signature header against the raw body
func (a *WhatsAppAdapter) VerifyWebhook(signatureHeader string, body []byte) error {
	return a.core.verifyWebhook(signatureHeader, body)
}

// ExtractBusinessAccount pulls the business-account ID out of a raw webhook
// payload without full parsing.
func (a *WhatsAppAdapter) ExtractBusinessAccount(body []byte) (string, error) {
	var payload whatsAppWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", messaging.ErrPayloadMissingAccount
	}
	if len(payload.Entry) == 0 || payload.Entry[0].ID == "" {
		return "", messaging.ErrPayloadMissingAccount
	}
	return payload.Entry[0].ID, nil
}

// ParseWebhook flattens a raw webhook body into unified messages. One
// delivery may carry several entries, each with several changes, each with
// several message events; status-only changes contribute nothing.
func (a *WhatsAppAdapter) ParseWebhook(body []byte) ([]messaging.UnifiedMessage, error) {
	var payload whatsAppWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", messaging.ErrPlatformInvalidResponse, err)
	}

	messages := make([]messaging.UnifiedMessage, 0)
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, inbound := range change.Value.Messages {
				msg := a.convertInboundMessage(&inbound, change.Value.Metadata.PhoneNumberID)
				msg.SenderName = names[inbound.From]
				messages = append(messages, msg)
			}
		}
	}

	return messages, nil
}

// convertInboundMessage maps one platform message event to the unified form,
// substituting placeholders when media arrives without a caption.
func (a *WhatsAppAdapter) convertInboundMessage(inbound *whatsAppInboundMessage, recipientID string) messaging.UnifiedMessage {
	msg := messaging.UnifiedMessage{
		PlatformMessageID: inbound.ID,
		Platform:          messaging.PlatformWhatsApp,
		SenderID:          inbound.From,
		RecipientID:       recipientID,
		Direction:         messaging.DirectionInbound,
		Status:            messaging.MessageStatusReceived,
		Timestamp:         parseUnixTimestamp(inbound.Timestamp),
	}

	if inbound.Context != nil {
		msg.Metadata.ReplyToID = inbound.Context.ID
	}

	setMedia := func(t messaging.MessageType, media *whatsAppMedia) {
		msg.Type = t
		msg.Metadata.MediaID = media.ID
		msg.Metadata.Subtype = media.MimeType
		if media.Caption != "" {
			msg.Content = media.Caption
		} else {
			msg.Content = t.Placeholder()
		}
	}

	switch inbound.Type {
	case "text":
		msg.Type = messaging.MessageTypeText
		if inbound.Text != nil {
			msg.Content = inbound.Text.Body
		}
	case "image":
		if inbound.Image != nil {
			setMedia(messaging.MessageTypeImage, inbound.Image)
		}
	case "video":
		if inbound.Video != nil {
			setMedia(messaging.MessageTypeVideo, inbound.Video)
		}
	case "audio":
		if inbound.Audio != nil {
			setMedia(messaging.MessageTypeAudio, inbound.Audio)
		}
	case "document":
		if inbound.Document != nil {
			setMedia(messaging.MessageTypeDocument, inbound.Document)
			if inbound.Document.Caption == "" && inbound.Document.Filename != "" {
				msg.Content = inbound.Document.Filename
			}
		}
	case "sticker":
		if inbound.Sticker != nil {
			setMedia(messaging.MessageTypeSticker, inbound.Sticker)
		}
	case "location":
		msg.Type = messaging.MessageTypeLocation
		msg.Content = messaging.MessageTypeLocation.Placeholder()
		if inbound.Location != nil && inbound.Location.Name != "" {
			msg.Content = inbound.Location.Name
		}
	case "contacts":
		msg.Type = messaging.MessageTypeContact
		msg.Content = messaging.MessageTypeContact.Placeholder()
		if len(inbound.Contacts) > 0 && inbound.Contacts[0].Name.FormattedName != "" {
			msg.Content = inbound.Contacts[0].Name.FormattedName
		}
	default:
		msg.Type = messaging.MessageTypeText
		msg.Metadata.Subtype = inbound.Type
	}

	return msg
}

// SendMessage delivers an outbound message through the phone-number
// sub-identifier, wrapped in the shared retry policy.
func (a *WhatsAppAdapter) SendMessage(ctx context.Context, msg *messaging.UnifiedMessage) (*messaging.SendResult, error) {
	cfg, err := a.core.config()
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	phoneNumberID := a.phoneNumberID
	a.mu.RUnlock()
	if phoneNumberID == "" {
		return nil, messaging.ErrPlatformNotConfigured
	}

	request := a.buildSendRequest(msg)
	sendURL := a.config.endpoint(phoneNumberID + "/messages")

	data, err := a.core.execute(ctx, func(ctx context.Context) (any, error) {
		body, reqErr := a.core.doRequest(ctx, http.MethodPost, sendURL, cfg.AccessToken, request)
		if reqErr != nil {
			return nil, reqErr
		}

		var resp whatsAppSendResponse
		if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", messaging.ErrPlatformInvalidResponse, jsonErr)
		}
		if len(resp.Messages) == 0 {
			return nil, fmt.Errorf("%w: send response carried no message ID", messaging.ErrPlatformInvalidResponse)
		}
		return &messaging.SendResult{
			PlatformMessageID: resp.Messages[0].ID,
			SentAt:            time.Now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return data.(*messaging.SendResult), nil
}

// buildSendRequest maps a unified message to the platform's typed payload
func (a *WhatsAppAdapter) buildSendRequest(msg *messaging.UnifiedMessage) *whatsAppSendRequest {
	request := &whatsAppSendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.RecipientID,
	}

	if msg.Metadata.ReplyToID != "" {
		request.Context = &whatsAppSendContext{MessageID: msg.Metadata.ReplyToID}
	}

	switch msg.Type {
	case messaging.MessageTypeImage:
		request.Type = "image"
		request.Image = &whatsAppSendMedia{ID: msg.Metadata.MediaID, Link: msg.Metadata.MediaURL, Caption: msg.Content}
	case messaging.MessageTypeDocument:
		request.Type = "document"
		request.Document = &whatsAppSendMedia{ID: msg.Metadata.MediaID, Link: msg.Metadata.MediaURL, Caption: msg.Content}
	default:
		request.Type = "text"
		request.Text = &whatsAppSendText{Body: msg.Content}
	}

	return request
}

// SyncMessages is a no-op: the platform has no pull-based history. The empty
// outcome still stamps SyncedAt so the caller records the sync watermark.
func (a *WhatsAppAdapter) SyncMessages(ctx context.Context, req *messaging.SyncRequest) (*messaging.SyncOutcome, error) {
	if !a.core.isConfigured() {
		return nil, messaging.ErrPlatformNotConfigured
	}
	return &messaging.SyncOutcome{
		Messages: []messaging.UnifiedMessage{},
		SyncedAt: time.Now(),
	}, nil
}

// HealthCheck probes API reachability, token validity and webhook
// registration independently.
func (a *WhatsAppAdapter) HealthCheck(ctx context.Context) (*messaging.HealthStatus, error) {
	cfg, err := a.core.config()
	if err != nil {
		return nil, err
	}

	status := &messaging.HealthStatus{CheckedAt: time.Now()}

	accountURL := a.config.endpoint(cfg.BusinessAccountID)
	if _, err := a.core.doRequest(ctx, http.MethodGet, accountURL, cfg.AccessToken, nil); err != nil {
		// auth failures still prove the API answered
		if isAuthError(err) {
			status.APIReachable = true
			status.Detail = err.Error()
		} else {
			status.Detail = err.Error()
		}
	} else {
		status.APIReachable = true
		status.TokenValid = true
	}

	if status.TokenValid {
		appsURL := a.config.endpoint(cfg.BusinessAccountID + "/subscribed_apps")
		if body, err := a.core.doRequest(ctx, http.MethodGet, appsURL, cfg.AccessToken, nil); err == nil {
			var resp whatsAppSubscribedAppsResponse
			if json.Unmarshal(body, &resp) == nil && len(resp.Data) > 0 {
				status.WebhookRegistered = true
			}
		}
	}

	status.Healthy = status.APIReachable && status.TokenValid && status.WebhookRegistered
	if status.Healthy {
		a.core.recordSuccess()
	}
	return status, nil
}

// RefreshToken exchanges the current token for a fresh long-lived one
func (a *WhatsAppAdapter) RefreshToken(ctx context.Context) (string, time.Time, error) {
	cfg, err := a.core.config()
	if err != nil {
		return "", time.Time{}, err
	}

	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", a.config.AppID)
	query.Set("client_secret", a.config.AppSecret)
	query.Set("fb_exchange_token", cfg.AccessToken)
	exchangeURL := a.config.endpoint("oauth/access_token") + "?" + query.Encode()

	body, err := a.core.doRequest(ctx, http.MethodGet, exchangeURL, "", nil)
	if err != nil {
		a.core.recordFailure()
		return "", time.Time{}, fmt.Errorf("whatsapp: token refresh failed: %w", err)
	}

	var resp whatsAppTokenExchangeResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.AccessToken == "" {
		a.core.recordFailure()
		return "", time.Time{}, fmt.Errorf("%w: token exchange response", messaging.ErrPlatformInvalidResponse)
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	a.core.setToken(resp.AccessToken, expiresAt)
	a.core.recordSuccess()
	return resp.AccessToken, expiresAt, nil
}

// RateLimit returns the advisory rate-limit snapshot
func (a *WhatsAppAdapter) RateLimit() messaging.RateLimitInfo {
	return a.core.rateLimit()
}

// Disconnect releases adapter-side state
func (a *WhatsAppAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.phoneNumberID = ""
	a.accountName = ""
	a.mu.Unlock()
	a.core.disconnect()
	return nil
}

// Ensure WhatsAppAdapter implements the ChannelIntegration port
var _ messaging.ChannelIntegration = (*WhatsAppAdapter)(nil)
