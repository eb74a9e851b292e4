package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appmessaging "github.com/chatwire/backend/internal/application/messaging"
	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/domain/shared"
	"github.com/chatwire/backend/internal/infrastructure/logger"
	"github.com/chatwire/backend/internal/interfaces/http/dto"
)

// SignatureHeader carries the HMAC-SHA256 signature of the raw body
const SignatureHeader = "X-Hub-Signature-256"

// eventReceivedBody is the literal acknowledgement platforms expect
const eventReceivedBody = "EVENT_RECEIVED"

// maxWebhookBodySize caps inbound webhook payloads (1MB)
const maxWebhookBodySize = 1 << 20

// AdapterProvider supplies uninitialized adapters for webhook verification
// and parsing.
type AdapterProvider interface {
	Adapter(platform messaging.Platform) (messaging.ChannelIntegration, error)
}

// WebhookHandler serves the per-platform webhook endpoints: the GET
// subscription handshake and the POST event ingestion.
type WebhookHandler struct {
	BaseHandler
	adapters AdapterProvider
	service  *appmessaging.WebhookProcessingService
	dedup    shared.IdempotencyStore
	dedupTTL time.Duration
	logger   *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler. The dedup store is optional
// and advisory: storage uniqueness remains the real duplicate guarantee.
func NewWebhookHandler(
	adapters AdapterProvider,
	service *appmessaging.WebhookProcessingService,
	dedup shared.IdempotencyStore,
	dedupTTL time.Duration,
	logger *zap.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}
	return &WebhookHandler{
		adapters: adapters,
		service:  service,
		dedup:    dedup,
		dedupTTL: dedupTTL,
		logger:   logger,
	}
}

// RegisterRoutes registers the webhook endpoints. These routes are
// unauthenticated: the caller is the platform, verified by signature.
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks")
	webhooks.GET("/:platform", h.Verify)
	webhooks.POST("/:platform", h.Receive)
}

// Verify handles the subscription handshake: the challenge is echoed as a
// literal string when the mode and verify-token match, 403 otherwise.
func (h *WebhookHandler) Verify(c *gin.Context) {
	adapter, ok := h.resolveAdapter(c)
	if !ok {
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	echoed, err := adapter.VerifySubscription(mode, token, challenge)
	if err != nil {
		logger.FromContext(c.Request.Context(), h.logger).Warn("webhook handshake rejected",
			zap.String("platform", adapter.Platform().String()),
			zap.String("mode", mode))
		c.String(http.StatusForbidden, "verification failed")
		return
	}

	c.String(http.StatusOK, echoed)
}

// Receive ingests one webhook delivery. The signature is verified against
// the raw body before any parsing; after that the delivery is always
// acknowledged with 200 EVENT_RECEIVED, except when the payload carries no
// business-account identifier. Per-message failures never surface to the
// sender: reflecting them would trigger destructive sender-side retries for
// conditions this system intentionally absorbs.
func (h *WebhookHandler) Receive(c *gin.Context) {
	adapter, ok := h.resolveAdapter(c)
	if !ok {
		return
	}
	platform := adapter.Platform()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodySize)
	body, err := c.GetRawData()
	if err != nil {
		h.BadRequest(c, "failed to read request body")
		return
	}

	if err := adapter.VerifyWebhook(c.GetHeader(SignatureHeader), body); err != nil {
		logger.FromContext(c.Request.Context(), h.logger).Warn("webhook signature rejected",
			zap.String("platform", platform.String()))
		h.Forbidden(c, dto.ErrCodeInvalidSignature, "invalid webhook signature")
		return
	}

	if h.alreadyDelivered(c, platform, body) {
		c.String(http.StatusOK, eventReceivedBody)
		return
	}

	result := h.service.ProcessWebhook(c.Request.Context(), adapter, body)
	if batchErr, ok := batchInvalidPayload(result); ok {
		h.BadRequest(c, batchErr.Message)
		return
	}

	c.String(http.StatusOK, eventReceivedBody)
}

// resolveAdapter maps the route parameter to a platform adapter
func (h *WebhookHandler) resolveAdapter(c *gin.Context) (messaging.ChannelIntegration, bool) {
	platform, ok := messaging.ParsePlatform(c.Param("platform"))
	if !ok {
		h.NotFound(c, "unknown platform")
		return nil, false
	}

	adapter, err := h.adapters.Adapter(platform)
	if err != nil {
		h.NotFound(c, "platform not enabled")
		return nil, false
	}
	return adapter, true
}

// alreadyDelivered consults the advisory delivery-dedup store, keyed by a
// digest of the signed body. Errors only disable the fast path.
func (h *WebhookHandler) alreadyDelivered(c *gin.Context, platform messaging.Platform, body []byte) bool {
	if h.dedup == nil {
		return false
	}

	log := logger.FromContext(c.Request.Context(), h.logger)
	digest := sha256.Sum256(body)
	key := platform.String() + ":" + hex.EncodeToString(digest[:])
	isNew, err := h.dedup.MarkProcessed(c.Request.Context(), key, h.dedupTTL)
	if err != nil {
		log.Warn("delivery dedup unavailable", zap.Error(err))
		return false
	}
	if !isNew {
		log.Info("redelivered webhook acknowledged without reprocessing",
			zap.String("platform", platform.String()))
	}
	return !isNew
}

// batchInvalidPayload reports whether the result failed at the batch level
// before any per-message work, which is the only processing condition the
// sender should see as non-2xx.
func batchInvalidPayload(result *messaging.WebhookResult) (messaging.ProcessingError, bool) {
	if result.MessagesProcessed > 0 {
		return messaging.ProcessingError{}, false
	}
	for _, e := range result.Errors {
		if e.Code == messaging.CodeInvalidPayload && e.PlatformMessageID == "" {
			return e, true
		}
	}
	return messaging.ProcessingError{}, false
}
