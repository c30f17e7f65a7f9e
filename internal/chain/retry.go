package chain

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// RetryConfig configures retry behavior for transport calls.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including initial)
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns the default retry configuration:
// 4 attempts total with jittered delays around 1s, 2s, 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    4 * time.Second,
	}
}

// NoRetry performs a single attempt.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

// Retry executes the operation with the default retry configuration.
func Retry[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	return RetryWithConfig(ctx, DefaultRetryConfig(), operation)
}

// RetryWithConfig executes the operation with exponential backoff. Only
// errors accepted by IsRetryable are retried; anything else is returned as is.
func RetryWithConfig[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	attempts := 0
	wrapped := func() (T, error) {
		attempts++
		result, err := operation()
		if err != nil && !IsRetryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	result, err := backoff.RetryWithData(wrapped, newBackOff(ctx, cfg))
	if err == nil || !IsRetryable(err) || attempts < cfg.MaxAttempts {
		return result, err
	}
	return result, deployerr.Wrap(err, "operation failed after %d attempts", attempts)
}

func newBackOff(ctx context.Context, cfg RetryConfig) backoff.BackOff {
	maxRetries := uint64(0)
	if cfg.MaxAttempts > 1 {
		maxRetries = uint64(cfg.MaxAttempts - 1)
	}

	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(cfg.BaseDelay),
		backoff.WithMaxInterval(cfg.MaxDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.5),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, maxRetries), ctx)
}

// IsRetryable reports whether the error is a transient transport failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, deployerr.ErrNetworkTransient) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ParseRetryAfter parses the Retry-After header value in seconds.
// Returns 0 if the header is absent or not a number.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

// WrapRetryable marks an error as a transient network failure.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return deployerr.WithCause(deployerr.ErrNetworkTransient, err)
}
