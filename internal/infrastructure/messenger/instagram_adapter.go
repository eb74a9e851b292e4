package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/domain/messaging"
)

// instagramCreatedTimeLayout is the timestamp format of conversation history
const instagramCreatedTimeLayout = "2006-01-02T15:04:05-0700"

// InstagramAdapter implements the ChannelIntegration port for Instagram
// Direct messaging. Unlike WhatsApp, the platform exposes conversation
// history, so SyncMessages performs a real paginated pull.
type InstagramAdapter struct {
	core   *integrationCore
	config *InstagramConfig

	mu       sync.RWMutex
	username string
}

// NewInstagramAdapter creates an Instagram adapter with the given configuration
func NewInstagramAdapter(config *InstagramConfig, logger *zap.Logger) (*InstagramAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &InstagramAdapter{
		core:   newIntegrationCore(messaging.PlatformInstagram, config.AppSecret, config.VerifyToken, config.Timeout, config.Retry, logger),
		config: config,
	}, nil
}

// Platform returns the platform this adapter handles
func (a *InstagramAdapter) Platform() messaging.Platform {
	return messaging.PlatformInstagram
}

// Initialize validates the tenant config and confirms the account is
// reachable with the supplied token.
func (a *InstagramAdapter) Initialize(ctx context.Context, cfg *messaging.IntegrationConfig) error {
	if err := a.core.initialize(cfg); err != nil {
		return err
	}

	profileURL := a.config.endpoint(cfg.BusinessAccountID) + "?fields=id,username"
	body, err := a.core.doRequest(ctx, http.MethodGet, profileURL, cfg.AccessToken, nil)
	if err != nil {
		a.core.recordFailure()
		return fmt.Errorf("instagram: failed to resolve account: %w", err)
	}

	var profile instagramProfileResponse
	if err := json.Unmarshal(body, &profile); err != nil {
		a.core.recordFailure()
		return fmt.Errorf("%w: %v", messaging.ErrPlatformInvalidResponse, err)
	}

	a.mu.Lock()
	a.username = profile.Username
	a.mu.Unlock()

	return nil
}

// IsConfigured reports whether Initialize succeeded
func (a *InstagramAdapter) IsConfigured() bool {
	return a.core.isConfigured()
}

// State returns the adapter's lifecycle state
func (a *InstagramAdapter) State() messaging.ConnectionStatus {
	return a.core.currentState()
}

// Username returns the account handle resolved at initialization
func (a *InstagramAdapter) Username() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.username
}

// VerifySubscription handles the webhook registration handshake
func (a *InstagramAdapter) VerifySubscription(mode, token, challenge string) (string, error) {
	return a.core.verifySubscription(mode, token, challenge)
}

// VerifyWebhook checks the HMAC-SHA256 signature header against the raw body
func (a *InstagramAdapter) VerifyWebhook(signatureHeader string, body []byte) error {
	return a.core.verifyWebhook(signatureHeader, body)
}

// ExtractBusinessAccount pulls the account ID out of a raw webhook payload
// without full parsing.
func (a *InstagramAdapter) ExtractBusinessAccount(body []byte) (string, error) {
	var payload instagramWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", messaging.ErrPayloadMissingAccount
	}
	if len(payload.Entry) == 0 || payload.Entry[0].ID == "" {
		return "", messaging.ErrPayloadMissingAccount
	}
	return payload.Entry[0].ID, nil
}

// ParseWebhook flattens a raw webhook body into unified messages. Entries
// carry messaging events; events without a message payload (reads, postbacks)
// and echoes of our own sends contribute nothing.
func (a *InstagramAdapter) ParseWebhook(body []byte) ([]messaging.UnifiedMessage, error) {
	var payload instagramWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", messaging.ErrPlatformInvalidResponse, err)
	}

	messages := make([]messaging.UnifiedMessage, 0)
	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			if event.Message == nil || event.Message.IsEcho {
				continue
			}
			messages = append(messages, a.convertMessagingEvent(&event))
		}
	}

	return messages, nil
}

// convertMessagingEvent maps one DM event to the unified form. The platform
// timestamps events in epoch milliseconds.
func (a *InstagramAdapter) convertMessagingEvent(event *instagramMessagingEvent) messaging.UnifiedMessage {
	msg := messaging.UnifiedMessage{
		PlatformMessageID: event.Message.MID,
		Platform:          messaging.PlatformInstagram,
		SenderID:          event.Sender.ID,
		RecipientID:       event.Recipient.ID,
		Type:              messaging.MessageTypeText,
		Content:           event.Message.Text,
		Direction:         messaging.DirectionInbound,
		Status:            messaging.MessageStatusReceived,
		Timestamp:         time.UnixMilli(event.Timestamp),
	}
	if event.Timestamp == 0 {
		msg.Timestamp = time.Now()
	}
	if event.Message.ReplyTo != nil {
		msg.Metadata.ReplyToID = event.Message.ReplyTo.MID
	}

	if len(event.Message.Attachments) > 0 {
		attachment := event.Message.Attachments[0]
		msg.Type = instagramAttachmentType(attachment.Type)
		msg.Metadata.MediaURL = attachment.Payload.URL
		msg.Metadata.Subtype = attachment.Type
		if msg.Content == "" {
			msg.Content = msg.Type.Placeholder()
		}
	}

	return msg
}

// instagramAttachmentType maps the platform's attachment type names
func instagramAttachmentType(t string) messaging.MessageType {
	switch t {
	case "image":
		return messaging.MessageTypeImage
	case "video":
		return messaging.MessageTypeVideo
	case "audio":
		return messaging.MessageTypeAudio
	case "file":
		return messaging.MessageTypeDocument
	case "location":
		return messaging.MessageTypeLocation
	default:
		return messaging.MessageTypeText
	}
}

// SendMessage delivers an outbound DM, wrapped in the shared retry policy
func (a *InstagramAdapter) SendMessage(ctx context.Context, msg *messaging.UnifiedMessage) (*messaging.SendResult, error) {
	cfg, err := a.core.config()
	if err != nil {
		return nil, err
	}

	request := a.buildSendRequest(msg)
	sendURL := a.config.endpoint("me/messages")

	data, err := a.core.execute(ctx, func(ctx context.Context) (any, error) {
		body, reqErr := a.core.doRequest(ctx, http.MethodPost, sendURL, cfg.AccessToken, request)
		if reqErr != nil {
			return nil, reqErr
		}

		var resp instagramSendResponse
		if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", messaging.ErrPlatformInvalidResponse, jsonErr)
		}
		if resp.MessageID == "" {
			return nil, fmt.Errorf("%w: send response carried no message ID", messaging.ErrPlatformInvalidResponse)
		}
		return &messaging.SendResult{
			PlatformMessageID: resp.MessageID,
			SentAt:            time.Now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return data.(*messaging.SendResult), nil
}

// buildSendRequest maps a unified message to the platform's send payload
func (a *InstagramAdapter) buildSendRequest(msg *messaging.UnifiedMessage) *instagramSendRequest {
	request := &instagramSendRequest{
		Recipient: instagramSendRecipient{ID: msg.RecipientID},
	}

	switch msg.Type {
	case messaging.MessageTypeImage, messaging.MessageTypeVideo, messaging.MessageTypeAudio:
		attachment := &instagramSendAttachment{Type: string(msg.Type)}
		attachment.Payload.URL = msg.Metadata.MediaURL
		request.Message.Attachment = attachment
	default:
		request.Message.Text = msg.Content
	}

	return request
}

// SyncMessages pulls one page of conversation history. The cursor is the
// platform's opaque paging token; Since filters messages client-side because
// the conversations endpoint has no server-side time filter.
func (a *InstagramAdapter) SyncMessages(ctx context.Context, req *messaging.SyncRequest) (*messaging.SyncOutcome, error) {
	cfg, err := a.core.config()
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &messaging.SyncRequest{}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSyncPageLimit
	}

	query := url.Values{}
	query.Set("fields", "messages{id,from,to,message,created_time}")
	query.Set("limit", strconv.Itoa(limit))
	if req.Cursor != "" {
		query.Set("after", req.Cursor)
	}
	syncURL := a.config.endpoint(cfg.BusinessAccountID+"/conversations") + "?" + query.Encode()

	data, err := a.core.execute(ctx, func(ctx context.Context) (any, error) {
		body, reqErr := a.core.doRequest(ctx, http.MethodGet, syncURL, cfg.AccessToken, nil)
		if reqErr != nil {
			return nil, reqErr
		}

		var resp instagramConversationsResponse
		if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", messaging.ErrPlatformInvalidResponse, jsonErr)
		}
		return a.buildSyncOutcome(&resp, cfg.BusinessAccountID, req.Since), nil
	})
	if err != nil {
		return nil, err
	}

	return data.(*messaging.SyncOutcome), nil
}

// buildSyncOutcome converts one conversations page into unified messages,
// dropping anything at or before the since watermark.
func (a *InstagramAdapter) buildSyncOutcome(resp *instagramConversationsResponse, accountID string, since time.Time) *messaging.SyncOutcome {
	outcome := &messaging.SyncOutcome{
		Messages: make([]messaging.UnifiedMessage, 0),
		SyncedAt: time.Now(),
	}

	for _, conversation := range resp.Data {
		outcome.ConversationsCount++
		for _, history := range conversation.Messages.Data {
			timestamp, err := time.Parse(instagramCreatedTimeLayout, history.CreatedTime)
			if err != nil {
				timestamp = time.Now()
			}
			if !since.IsZero() && !timestamp.After(since) {
				continue
			}

			msg := messaging.UnifiedMessage{
				PlatformMessageID: history.ID,
				Platform:          messaging.PlatformInstagram,
				SenderID:          history.From.ID,
				SenderName:        history.From.Username,
				Content:           history.Message,
				Type:              messaging.MessageTypeText,
				Status:            messaging.MessageStatusReceived,
				Timestamp:         timestamp,
			}
			msg.Direction = messaging.DirectionInbound
			if history.From.ID == accountID {
				msg.Direction = messaging.DirectionOutbound
				msg.Status = messaging.MessageStatusSent
			}
			if len(history.To.Data) > 0 {
				msg.RecipientID = history.To.Data[0].ID
			}
			outcome.Messages = append(outcome.Messages, msg)
		}
	}

	outcome.MessagesCount = len(outcome.Messages)
	if resp.Paging.Next != "" && resp.Paging.Cursors.After != "" {
		outcome.HasMore = true
		outcome.NextCursor = resp.Paging.Cursors.After
	}
	return outcome
}

// HealthCheck probes API reachability, token validity and webhook
// subscription independently.
func (a *InstagramAdapter) HealthCheck(ctx context.Context) (*messaging.HealthStatus, error) {
	cfg, err := a.core.config()
	if err != nil {
		return nil, err
	}

	status := &messaging.HealthStatus{CheckedAt: time.Now()}

	profileURL := a.config.endpoint(cfg.BusinessAccountID) + "?fields=id"
	if _, err := a.core.doRequest(ctx, http.MethodGet, profileURL, cfg.AccessToken, nil); err != nil {
		if isAuthError(err) {
			status.APIReachable = true
		}
		status.Detail = err.Error()
	} else {
		status.APIReachable = true
		status.TokenValid = true
	}

	if status.TokenValid {
		subsURL := a.config.endpoint(cfg.BusinessAccountID + "/subscribed_apps")
		if body, err := a.core.doRequest(ctx, http.MethodGet, subsURL, cfg.AccessToken, nil); err == nil {
			var resp instagramSubscriptionsResponse
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

// RefreshToken extends the current long-lived token
func (a *InstagramAdapter) RefreshToken(ctx context.Context) (string, time.Time, error) {
	cfg, err := a.core.config()
	if err != nil {
		return "", time.Time{}, err
	}

	query := url.Values{}
	query.Set("grant_type", "ig_refresh_token")
	query.Set("access_token", cfg.AccessToken)
	refreshURL := fmt.Sprintf("%s/refresh_access_token?%s", a.config.APIBaseURL, query.Encode())

	body, err := a.core.doRequest(ctx, http.MethodGet, refreshURL, "", nil)
	if err != nil {
		a.core.recordFailure()
		return "", time.Time{}, fmt.Errorf("instagram: token refresh failed: %w", err)
	}

	var resp instagramRefreshResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.AccessToken == "" {
		a.core.recordFailure()
		return "", time.Time{}, fmt.Errorf("%w: token refresh response", messaging.ErrPlatformInvalidResponse)
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	a.core.setToken(resp.AccessToken, expiresAt)
	a.core.recordSuccess()
	return resp.AccessToken, expiresAt, nil
}

// RateLimit returns the advisory rate-limit snapshot
func (a *InstagramAdapter) RateLimit() messaging.RateLimitInfo {
	return a.core.rateLimit()
}

// Disconnect releases adapter-side state
func (a *InstagramAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.username = ""
	a.mu.Unlock()
	a.core.disconnect()
	return nil
}

// Ensure InstagramAdapter implements the ChannelIntegration port
var _ messaging.ChannelIntegration = (*InstagramAdapter)(nil)
