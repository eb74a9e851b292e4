package messaging

import (
	"github.com/chatwire/backend/internal/infrastructure/retry"
)

// ServiceOption configures the application services at construction time
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	storageRetry retry.Config
}

// WithStorageRetry overrides the backoff bounds used when persisting
// messages. The retryable-failure classification stays fixed: only transient
// storage conditions retry, never constraint or validation failures.
func WithStorageRetry(cfg retry.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.storageRetry = cfg
	}
}

// storagePolicy resolves the configured options into the executor config
func storagePolicy(opts []ServiceOption) retry.Config {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := retry.DatabaseConfig()
	p := o.storageRetry
	if p.MaxRetries != 0 || p.BaseDelay != 0 || p.MaxDelay != 0 {
		cfg.MaxRetries = p.MaxRetries
		cfg.BaseDelay = p.BaseDelay
		cfg.MaxDelay = p.MaxDelay
	}
	return cfg
}
