package messenger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatwire/backend/internal/domain/messaging"
	"github.com/chatwire/backend/internal/infrastructure/config"
	"github.com/chatwire/backend/internal/infrastructure/retry"
)

// ChannelFactory builds initialized platform adapters from persisted
// connection rows. Adapters are per-request and tenant-scoped; there is no
// process-wide registry, so one tenant's credentials never leak into
// another's adapter.
type ChannelFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewChannelFactory creates a factory over the application configuration
func NewChannelFactory(cfg *config.Config, logger *zap.Logger) *ChannelFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelFactory{cfg: cfg, logger: logger}
}

// Build constructs and initializes the adapter for the connection's platform.
// A disabled platform or a failed Initialize surfaces as an error; callers
// translate it into their own failure reporting.
func (f *ChannelFactory) Build(ctx context.Context, conn *messaging.IntegrationConnection) (messaging.ChannelIntegration, error) {
	channel, ok := f.cfg.Channel(conn.Platform.String())
	if !ok || !channel.Enabled {
		return nil, fmt.Errorf("%w: %s", messaging.ErrPlatformNotRegistered, conn.Platform)
	}

	adapter, err := f.newAdapter(conn.Platform, channel)
	if err != nil {
		return nil, err
	}

	integrationCfg := &messaging.IntegrationConfig{
		TenantID:          conn.TenantID,
		Platform:          conn.Platform,
		BusinessAccountID: conn.BusinessAccountID,
		AccessToken:       conn.AccessToken,
	}
	if conn.TokenExpiresAt != nil {
		integrationCfg.TokenExpiresAt = *conn.TokenExpiresAt
	}

	if err := adapter.Initialize(ctx, integrationCfg); err != nil {
		return nil, fmt.Errorf("messenger: failed to initialize %s adapter: %w", conn.Platform, err)
	}

	return adapter, nil
}

// Adapter returns an uninitialized adapter for the platform. Webhook
// signature verification, handshake and parsing are purely structural and
// need only application-level secrets, so no connection row is required.
func (f *ChannelFactory) Adapter(platform messaging.Platform) (messaging.ChannelIntegration, error) {
	channel, ok := f.cfg.Channel(platform.String())
	if !ok || !channel.Enabled {
		return nil, fmt.Errorf("%w: %s", messaging.ErrPlatformNotRegistered, platform)
	}
	return f.newAdapter(platform, channel)
}

// newAdapter constructs the uninitialized adapter for one platform
func (f *ChannelFactory) newAdapter(platform messaging.Platform, channel config.ChannelConfig) (messaging.ChannelIntegration, error) {
	switch platform {
	case messaging.PlatformWhatsApp:
		return NewWhatsAppAdapter(f.whatsAppConfig(channel), f.logger)
	case messaging.PlatformInstagram:
		return NewInstagramAdapter(f.instagramConfig(channel), f.logger)
	default:
		return nil, fmt.Errorf("%w: %s", messaging.ErrInvalidPlatform, platform)
	}
}

func (f *ChannelFactory) whatsAppConfig(channel config.ChannelConfig) *WhatsAppConfig {
	return &WhatsAppConfig{
		AppID:       channel.AppID,
		AppSecret:   channel.AppSecret,
		VerifyToken: channel.VerifyToken,
		APIBaseURL:  channel.APIBaseURL,
		APIVersion:  channel.APIVersion,
		Timeout:     timeoutOrDefault(channel.HTTPTimeout),
		Retry:       f.retryPolicy(),
	}
}

func (f *ChannelFactory) instagramConfig(channel config.ChannelConfig) *InstagramConfig {
	return &InstagramConfig{
		AppSecret:   channel.AppSecret,
		VerifyToken: channel.VerifyToken,
		APIBaseURL:  channel.APIBaseURL,
		APIVersion:  channel.APIVersion,
		Timeout:     timeoutOrDefault(channel.HTTPTimeout),
		Retry:       f.retryPolicy(),
	}
}

// retryPolicy maps the operator [retry] section onto adapter backoff bounds
func (f *ChannelFactory) retryPolicy() retry.Config {
	return retry.Config{
		MaxRetries: f.cfg.Retry.MaxRetries,
		BaseDelay:  f.cfg.Retry.BaseDelay,
		MaxDelay:   f.cfg.Retry.MaxDelay,
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Ensure ChannelFactory implements the IntegrationFactory port
var _ messaging.IntegrationFactory = (*ChannelFactory)(nil)
