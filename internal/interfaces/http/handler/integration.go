package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appmessaging "github.com/chatwire/backend/internal/application/messaging"
	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/interfaces/http/dto"
)

// ConnectRequest is the payload for connecting a platform
type ConnectRequest struct {
	BusinessAccountID string `json:"business_account_id" binding:"required"`
	AccessToken       string `json:"access_token" binding:"required"`
}

// SendMessageRequest is the payload for an outbound message
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	MediaURL    string `json:"media_url"`
	ReplyToID   string `json:"reply_to_id"`
}

// SyncRequest is the payload for a manual sync trigger
type SyncRequest struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
}

// IntegrationHandler serves the tenant-facing integration API: connect,
// disconnect, status, health, manual sync, token refresh and outbound send.
type IntegrationHandler struct {
	BaseHandler
	manager            *appmessaging.IntegrationManager
	tokenRefreshWindow time.Duration
	logger             *zap.Logger
}

// NewIntegrationHandler creates an IntegrationHandler
func NewIntegrationHandler(manager *appmessaging.IntegrationManager, tokenRefreshWindow time.Duration, logger *zap.Logger) *IntegrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrationHandler{
		manager:            manager,
		tokenRefreshWindow: tokenRefreshWindow,
		logger:             logger,
	}
}

// RegisterRoutes registers the integration endpoints
func (h *IntegrationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	integrations := rg.Group("/integrations")
	integrations.GET("", h.List)
	integrations.GET("/health", h.Health)
	integrations.POST("/refresh-tokens", h.RefreshTokens)
	integrations.POST("/:platform/connect", h.Connect)
	integrations.DELETE("/:platform", h.Disconnect)
	integrations.POST("/:platform/sync", h.Sync)
	integrations.POST("/:platform/messages", h.Send)
}

// List returns every connection the tenant owns
func (h *IntegrationHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	connections, err := h.manager.Status(c.Request.Context(), tenantID)
	if err != nil {
		h.Internal(c, "failed to list integrations")
		return
	}
	h.Success(c, connections)
}

// Health fans out health checks across the tenant's connections
func (h *IntegrationHandler) Health(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	results, err := h.manager.HealthCheck(c.Request.Context(), tenantID)
	if err != nil {
		h.Internal(c, "failed to check integration health")
		return
	}
	h.Success(c, results)
}

// Connect establishes a platform connection for the tenant
func (h *IntegrationHandler) Connect(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	platform, ok := h.platform(c)
	if !ok {
		return
	}

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	conn, err := h.manager.Connect(c.Request.Context(), tenantID, platform, req.BusinessAccountID, req.AccessToken)
	if err != nil {
		h.integrationError(c, err)
		return
	}
	h.Created(c, appmessaging.ConnectionToDTO(conn))
}

// Disconnect soft-resets the tenant's platform connection
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	platform, ok := h.platform(c)
	if !ok {
		return
	}

	if err := h.manager.Disconnect(c.Request.Context(), tenantID, platform); err != nil {
		h.integrationError(c, err)
		return
	}
	h.NoContent(c)
}

// Sync triggers a manual history pull for the tenant's platform connection
func (h *IntegrationHandler) Sync(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	platform, ok := h.platform(c)
	if !ok {
		return
	}

	// an empty body means "sync with defaults"
	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
			return
		}
	}

	report, err := h.manager.SyncMessages(c.Request.Context(), tenantID, platform, &messaging.SyncRequest{
		Cursor: req.Cursor,
		Limit:  req.Limit,
	})
	if err != nil {
		h.integrationError(c, err)
		return
	}
	h.Success(c, report)
}

// Send delivers an outbound message through the tenant's platform connection
func (h *IntegrationHandler) Send(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	platform, ok := h.platform(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	msgType := messaging.MessageType(req.Type)
	if req.Type == "" {
		msgType = messaging.MessageTypeText
	}
	if !msgType.IsValid() {
		h.BadRequest(c, "unknown message type")
		return
	}

	result, err := h.manager.SendMessage(c.Request.Context(), tenantID, platform, &messaging.UnifiedMessage{
		Platform:    platform,
		RecipientID: req.RecipientID,
		Content:     req.Content,
		Type:        msgType,
		Direction:   messaging.DirectionOutbound,
		Status:      messaging.MessageStatusSent,
		Timestamp:   time.Now(),
		Metadata:    messaging.MessageMetadata{MediaURL: req.MediaURL, ReplyToID: req.ReplyToID},
	})
	if err != nil {
		h.integrationError(c, err)
		return
	}
	h.Success(c, result)
}

// RefreshTokens refreshes expiring tokens across the tenant's connections
func (h *IntegrationHandler) RefreshTokens(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	outcomes, err := h.manager.RefreshTokens(c.Request.Context(), tenantID, h.tokenRefreshWindow)
	if err != nil {
		h.Internal(c, "failed to refresh tokens")
		return
	}
	h.Success(c, outcomes)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (h *IntegrationHandler) tenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, ok := getTenantID(c)
	if !ok {
		h.Unauthorized(c, "missing tenant context")
		return uuid.Nil, false
	}
	return tenantID, true
}

func (h *IntegrationHandler) platform(c *gin.Context) (messaging.Platform, bool) {
	platform, ok := messaging.ParsePlatform(c.Param("platform"))
	if !ok {
		h.NotFound(c, "unknown platform")
		return "", false
	}
	return platform, true
}

// integrationError maps domain failures to API error codes
func (h *IntegrationHandler) integrationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, messaging.ErrConnectionNotFound):
		h.ErrorWithCode(c, dto.ErrCodeNotFound, "platform is not connected")
	case errors.Is(err, messaging.ErrPlatformNotConfigured),
		errors.Is(err, messaging.ErrPlatformNotRegistered):
		h.ErrorWithCode(c, dto.ErrCodePlatformNotConnected, err.Error())
	case errors.Is(err, messaging.ErrPlatformAuthFailed),
		errors.Is(err, messaging.ErrPlatformTokenExpired):
		h.ErrorWithCode(c, dto.ErrCodePlatformAuthFailed, err.Error())
	case errors.Is(err, messaging.ErrPlatformUnavailable),
		errors.Is(err, messaging.ErrPlatformRateLimited):
		h.ErrorWithCode(c, dto.ErrCodePlatformUnavailable, err.Error())
	case errors.Is(err, messaging.ErrConfigMissingTenant),
		errors.Is(err, messaging.ErrConfigMissingBusinessAccount),
		errors.Is(err, messaging.ErrConfigMissingAccessToken),
		errors.Is(err, messaging.ErrConfigPlatformMismatch):
		h.ErrorWithCode(c, dto.ErrCodeValidation, err.Error())
	default:
		h.Internal(c, err.Error())
	}
}
