package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errTransient = errors.New("connection reset by peer")

// newTestExecutor returns an executor that records sleeps instead of waiting
func newTestExecutor(cfg Config) (*Executor, *[]time.Duration) {
	e := New(cfg, zap.NewNop())
	slept := make([]time.Duration, 0)
	e.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return e, &slept
}

func TestExecutor_SucceedsFirstAttempt(t *testing.T) {
	e, slept := newTestExecutor(DefaultConfig())

	result := e.Execute(context.Background(), func(_ context.Context) (any, error) {
		return "ok", nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Data)
	assert.Equal(t, 1, result.Attempts)
	assert.Zero(t, result.TotalDelay)
	assert.Empty(t, *slept)
}

func TestExecutor_RetriesTransientThenSucceeds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryableSubstrings = []string{"connection reset"}
	e, slept := newTestExecutor(cfg)

	calls := 0
	result := e.Execute(context.Background(), func(_ context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errTransient
		}
		return 42, nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 42, result.Data)
	assert.Equal(t, 3, result.Attempts)
	assert.Len(t, *slept, 2)
	assert.Positive(t, result.TotalDelay)
}

func TestExecutor_NonRetryableStopsImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryableSubstrings = []string{"connection reset"}
	e, slept := newTestExecutor(cfg)

	fatal := errors.New("invalid credentials")
	calls := 0
	result := e.Execute(context.Background(), func(_ context.Context) (any, error) {
		calls++
		return nil, fatal
	})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, fatal)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestExecutor_ExhaustsExactlyMaxRetriesPlusOne(t *testing.T) {
	cfg := Config{
		MaxRetries:          5,
		BaseDelay:           time.Second,
		MaxDelay:            30 * time.Second,
		RetryableSubstrings: []string{"connection reset"},
	}
	e, slept := newTestExecutor(cfg)

	calls := 0
	result := e.Execute(context.Background(), func(_ context.Context) (any, error) {
		calls++
		return nil, errTransient
	})

	assert.False(t, result.Success)
	assert.Equal(t, 6, calls, "maxRetries+1 attempts")
	assert.Equal(t, 6, result.Attempts)
	assert.Len(t, *slept, 5)
}

func TestExecutor_DelayBounds(t *testing.T) {
	cfg := Config{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
	e := New(cfg, zap.NewNop())

	// every sampled delay stays inside [0.75*base*2^n, maxDelay]
	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < 50; i++ {
			d := e.Delay(attempt)
			assert.LessOrEqual(t, d, cfg.MaxDelay, "attempt %d", attempt)
			expectedMin := time.Duration(0.75 * float64(cfg.BaseDelay) * float64(uint64(1)<<uint(attempt)))
			if expectedMin > cfg.MaxDelay {
				expectedMin = cfg.MaxDelay
			}
			assert.GreaterOrEqual(t, d, expectedMin, "attempt %d", attempt)
		}
	}

	// expectation is non-decreasing: the jitter-free midpoint doubles until the cap
	prev := time.Duration(0)
	for attempt := 0; attempt < 8; attempt++ {
		mid := time.Duration(float64(cfg.BaseDelay) * float64(uint64(1)<<uint(attempt)))
		if mid > cfg.MaxDelay {
			mid = cfg.MaxDelay
		}
		assert.GreaterOrEqual(t, mid, prev)
		prev = mid
	}
}

func TestExecutor_WaitHintExtendsDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	cfg.RetryableSubstrings = []string{"connection reset"}
	cfg.WaitHint = func() time.Duration { return time.Minute }
	e, slept := newTestExecutor(cfg)

	e.Execute(context.Background(), func(_ context.Context) (any, error) {
		return nil, errTransient
	})

	require.Len(t, *slept, 1)
	assert.Equal(t, time.Minute, (*slept)[0])
}

func TestExecutor_ContextCancellationStopsRetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryableSubstrings = []string{"connection reset"}
	e := New(cfg, zap.NewNop())
	e.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	result := e.Execute(context.Background(), func(_ context.Context) (any, error) {
		return nil, errTransient
	})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestExecutor_ExecuteOrError(t *testing.T) {
	e := New(DefaultConfig(), zap.NewNop())

	data, err := e.ExecuteOrError(context.Background(), func(_ context.Context) (any, error) {
		return "value", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "value", data)

	fatal := errors.New("bad request")
	_, err = e.ExecuteOrError(context.Background(), func(_ context.Context) (any, error) {
		return nil, fatal
	})
	assert.ErrorIs(t, err, fatal)
}

func TestExecutor_RetryableSentinels(t *testing.T) {
	sentinel := errors.New("platform unavailable")
	cfg := DefaultConfig()
	cfg.RetryableErrors = []error{sentinel}
	e := New(cfg, zap.NewNop())

	assert.True(t, e.Retryable(sentinel))
	assert.True(t, e.Retryable(errors.Join(errors.New("wrap"), sentinel)))
	assert.False(t, e.Retryable(errors.New("unrelated")))
	assert.False(t, e.Retryable(nil))
}

func TestDatabaseConfig_Signatures(t *testing.T) {
	e := New(DatabaseConfig(), zap.NewNop())

	assert.True(t, e.Retryable(errors.New("Error 1213: Deadlock found when trying to get lock")))
	assert.True(t, e.Retryable(errors.New("read tcp 10.0.0.1: i/o timeout")))
	assert.True(t, e.Retryable(errors.New("Lock wait timeout exceeded")))
	assert.False(t, e.Retryable(errors.New("duplicate key value violates unique constraint")))
}
