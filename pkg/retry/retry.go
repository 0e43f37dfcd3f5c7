package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"phototimer/pkg/config"
	errs "phototimer/pkg/errors"
	"phototimer/pkg/logger"
)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first (0 means unlimited)
	MaxAttempts int
	// Backoff is used for errors that carry no ErrorType-specific strategy
	Backoff BackoffStrategy
	// ByType optionally overrides Backoff per error classification
	ByType *ErrorTypeBackoff
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// FromSettings builds a retry Config from the user's retry settings. A
// disabled retry section yields a single attempt.
func FromSettings(settings config.RetryConfig, log logger.Logger) *Config {
	if log == nil {
		log = logger.NewNopLogger()
	}

	attempts := settings.MaxAttempts
	if !settings.Enabled || attempts < 1 {
		attempts = 1
	}

	base := &ExponentialBackoff{
		BaseDelay:    settings.BaseDelay,
		MaxDelay:     settings.MaxDelay,
		Multiplier:   settings.Multiplier,
		JitterFactor: 0.1,
	}

	byType := NewErrorTypeBackoff()
	byType.DefaultBackoff = base

	return &Config{
		MaxAttempts: attempts,
		Backoff:     base,
		ByType:      byType,
		RetryIf:     DefaultRetryIf,
		Logger:      log,
	}
}

// DefaultRetryIf retries classified errors according to errs.IsRetryable and
// never retries cancellation.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var classified *errs.Error
	if errors.As(err, &classified) {
		return errs.IsRetryable(classified.Type)
	}

	return true
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is cancelled.
func Do(ctx context.Context, cfg *Config, op func(ctx context.Context) error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			log.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt - 1,
				"last_error": lastErr.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		// Last attempt failed; don't sleep just to report it
		if cfg.MaxAttempts > 0 && attempt == cfg.MaxAttempts {
			continue
		}

		delay := cfg.backoffFor(err).NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, cfg *Config, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func (c *Config) backoffFor(err error) BackoffStrategy {
	if c.ByType != nil {
		return c.ByType.ForError(err)
	}
	if c.Backoff != nil {
		return c.Backoff
	}
	return DefaultExponentialBackoff()
}
