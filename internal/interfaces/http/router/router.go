package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/infrastructure/config"
	"github.com/chatwire/backend/internal/infrastructure/logger"
	"github.com/chatwire/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar is implemented by handlers that register their own routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router assembles the gin engine: shared middleware, the health endpoint,
// the unauthenticated webhook surface, and the tenant-scoped API surface.
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a Router with the standard middleware chain applied
func New(cfg *config.Config, log *zap.Logger) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.HTTP.TrustedProxies)
	}

	engine.Use(middleware.RequestID())
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.App.Name})
	})

	return &Router{engine: engine, cfg: cfg, logger: log}
}

// RegisterWebhooks mounts webhook routes. These are authenticated by payload
// signature, not by tenant header.
func (r *Router) RegisterWebhooks(registrars ...RouteRegistrar) {
	group := r.engine.Group("/api/v1")
	for _, reg := range registrars {
		reg.RegisterRoutes(group)
	}
}

// RegisterAPI mounts tenant-scoped API routes behind the tenant middleware
func (r *Router) RegisterAPI(registrars ...RouteRegistrar) {
	group := r.engine.Group("/api/v1")
	group.Use(middleware.Tenant())
	for _, reg := range registrars {
		reg.RegisterRoutes(group)
	}
}

// Engine exposes the underlying gin engine for the HTTP server
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
