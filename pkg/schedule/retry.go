package schedule

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for per-call retries.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first call.
	// 1 disables retries.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration: one attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 1
	}
	return c
}

// retryWithBackoff calls fn until it yields a non-retryable outcome or the
// attempts run out, and returns the last result. Fetch hands it a context
// detached from the caller, so each wait is bounded only by the backoff.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() FetchResult) FetchResult {
	cfg = cfg.normalized()
	backoff := cfg.InitialBackoff

	var result FetchResult
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result = fn()
		if !retryable(result.Outcome) || attempt == cfg.MaxAttempts {
			if attempt > 1 && result.OK() {
				logger.Info().
					Int64("room_id", result.RoomID).
					Int("attempt", attempt).
					Msg("Fetch succeeded after retry")
			}
			return result
		}

		fetchRetriesTotal.WithLabelValues(string(result.Outcome.Kind)).Inc()

		// ±20% jitter
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		logger.Debug().
			Int64("room_id", result.RoomID).
			Str("outcome", string(result.Outcome.Kind)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying fetch after backoff")

		select {
		case <-ctx.Done():
			return result
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return result
}
