package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phototimer/pkg/config"
	errs "phototimer/pkg/errors"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	cause := errors.New("persistent error")
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		attempts++
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, attempts)
}

func TestDoNonRetryableError(t *testing.T) {
	attempts := 0
	notFound := &errs.Error{Type: errs.ErrorTypeNotFound, Message: "gone", Code: 404}

	cfg := fastConfig(5)
	cfg.RetryIf = DefaultRetryIf

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return notFound
	})

	assert.Same(t, notFound, err)
	assert.Equal(t, 1, attempts)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := fastConfig(5)
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	err := Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("error")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoOnRetryCallback(t *testing.T) {
	var seen []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}

	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return errors.New("fail")
	})

	// No retry is scheduled after the final attempt
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(&errs.ImageLoadError{
		URL: "u", Err: &errs.Error{Type: errs.ErrorTypeDecode},
	}))
	assert.True(t, DefaultRetryIf(&errs.FetchError{
		URL: "u", Err: &errs.Error{Type: errs.ErrorTypeServerError, Code: 502},
	}))
	assert.True(t, DefaultRetryIf(errors.New("unclassified")))
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff()

	rateLimited := &errs.FetchError{URL: "u", Err: &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429}}
	assert.Same(t, etb.RateLimitBackoff, etb.ForError(rateLimited))

	network := &errs.Error{Type: errs.ErrorTypeNetwork}
	assert.Same(t, etb.NetworkErrorBackoff, etb.ForError(network))

	assert.Same(t, etb.DefaultBackoff, etb.ForError(errors.New("plain")))
}

func TestFromSettings(t *testing.T) {
	settings := config.DefaultConfig().Retry

	cfg := FromSettings(settings, nil)
	assert.Equal(t, 3, cfg.MaxAttempts)
	require.NotNil(t, cfg.ByType)
	assert.Same(t, cfg.Backoff, cfg.ByType.DefaultBackoff)

	settings.Enabled = false
	assert.Equal(t, 1, FromSettings(settings, nil).MaxAttempts)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Minute), context.Canceled)
}
