package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chatwire/backend/internal/infrastructure/logger"
	"github.com/chatwire/backend/internal/interfaces/http/dto"
)

// TenantHeaderKey is the header carrying the tenant identifier
const TenantHeaderKey = "X-Tenant-ID"

// TenantIDKey is the gin context key for the resolved tenant ID
const TenantIDKey = "tenant_id"

// Tenant extracts the tenant ID from the X-Tenant-ID header and rejects
// requests without a valid one. Webhook routes never pass through this
// middleware: their tenant is resolved from the payload, not the caller.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TenantHeaderKey)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "missing tenant identifier"))
			return
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "invalid tenant identifier"))
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(
			logger.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

// GetTenantID returns the tenant resolved by the Tenant middleware
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	tenantID, ok := v.(uuid.UUID)
	return tenantID, ok
}
