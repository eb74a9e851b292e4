// Package retry provides the generic retry primitive shared by platform
// adapters and the webhook orchestrator: exponential backoff with jitter and
// signature-based classification of retryable failures.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config controls retry behavior for one executor
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps every computed delay
	MaxDelay time.Duration
	// RetryableErrors are sentinels matched with errors.Is
	RetryableErrors []error
	// RetryableSubstrings are matched case-insensitively against the error text
	RetryableSubstrings []string
	// WaitHint, when set, is consulted before each retry; a positive duration
	// (e.g. from rate-limit headers) extends the wait for that attempt.
	WaitHint func() time.Duration
}

// DefaultConfig returns the baseline retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// DatabaseConfig returns the retryable set for storage operations: transient
// connection and lock conditions, never constraint or validation failures.
func DatabaseConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryableSubstrings = []string{
		"connection reset",
		"connection refused",
		"timeout",
		"timed out",
		"deadlock",
		"lock wait",
		"too many connections",
	}
	return cfg
}

// Result is the outcome of an Execute call
type Result struct {
	Success    bool
	Data       any
	Err        error
	Attempts   int
	TotalDelay time.Duration
}

// Operation is the unit of work being retried. It must be safe to invoke more
// than once; the executor itself mutates no shared state.
type Operation func(ctx context.Context) (any, error)

// Executor retries operations with exponential backoff and jitter
type Executor struct {
	cfg    Config
	logger *zap.Logger

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an executor with the given configuration
func New(cfg Config, logger *zap.Logger) *Executor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Execute runs op, retrying retryable failures up to MaxRetries times.
// Non-retryable errors stop immediately. The returned result always carries
// the attempt count and the total time spent waiting.
func (e *Executor) Execute(ctx context.Context, op Operation) *Result {
	result := &Result{}

	for attempt := 0; ; attempt++ {
		result.Attempts = attempt + 1

		data, err := op(ctx)
		if err == nil {
			result.Success = true
			result.Data = data
			return result
		}
		result.Err = err

		if !e.Retryable(err) {
			e.logger.Debug("operation failed with non-retryable error",
				zap.Int("attempt", result.Attempts),
				zap.Error(err))
			return result
		}
		if attempt >= e.cfg.MaxRetries {
			e.logger.Debug("operation exhausted retries",
				zap.Int("attempts", result.Attempts),
				zap.Error(err))
			return result
		}

		delay := e.Delay(attempt)
		if e.cfg.WaitHint != nil {
			if hint := e.cfg.WaitHint(); hint > delay {
				delay = hint
			}
		}
		result.TotalDelay += delay

		e.logger.Debug("retrying after failure",
			zap.Int("attempt", result.Attempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		if serr := e.sleep(ctx, delay); serr != nil {
			result.Err = serr
			return result
		}
	}
}

// ExecuteOrError is the convenience variant returning the final error instead
// of a result struct.
func (e *Executor) ExecuteOrError(ctx context.Context, op Operation) (any, error) {
	result := e.Execute(ctx, op)
	if !result.Success {
		return nil, result.Err
	}
	return result.Data, nil
}

// Retryable classifies an error against the configured signature set
func (e *Executor) Retryable(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range e.cfg.RetryableErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range e.cfg.RetryableSubstrings {
		if strings.Contains(msg, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Delay computes the backoff before retry number attempt+1:
// min(maxDelay, baseDelay * 2^attempt * (1 +/- 0.25 jitter)).
func (e *Executor) Delay(attempt int) time.Duration {
	raw := float64(e.cfg.BaseDelay) * float64(uint64(1)<<uint(attempt))
	jittered := raw * (0.75 + 0.5*rand.Float64())
	if jittered > float64(e.cfg.MaxDelay) {
		return e.cfg.MaxDelay
	}
	return time.Duration(jittered)
}

// sleepContext waits d or until the context is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
