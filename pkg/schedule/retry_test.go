package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", config.MaxAttempts)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name     string
		outcome  Outcome
		expected bool
	}{
		{name: "success", outcome: Success(), expected: false},
		{name: "auth failure", outcome: AuthFailure(403, "x"), expected: false},
		{name: "client error", outcome: HTTPFailure(404), expected: false},
		{name: "too many requests", outcome: HTTPFailure(429), expected: false},
		{name: "server error", outcome: HTTPFailure(502), expected: true},
		{name: "transport", outcome: TransportFailure("eof"), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.outcome); got != tt.expected {
				t.Errorf("retryable(%+v) = %v, want %v", tt.outcome, got, tt.expected)
			}
		})
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	fn := func() FetchResult {
		callCount++
		if callCount < 3 {
			return FetchResult{Outcome: TransportFailure("temporary")}
		}
		return FetchResult{Outcome: Success()}
	}

	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, BackoffMultiplier: 2}
	result := retryWithBackoff(context.Background(), cfg, zerolog.Nop(), fn)

	if !result.OK() {
		t.Errorf("Outcome = %+v, want success", result.Outcome)
	}
	if callCount != 3 {
		t.Errorf("callCount = %d, want 3", callCount)
	}
}

func TestRetryWithBackoff_SingleAttempt(t *testing.T) {
	callCount := 0
	fn := func() FetchResult {
		callCount++
		return FetchResult{Outcome: TransportFailure("down")}
	}

	result := retryWithBackoff(context.Background(), DefaultRetryConfig(), zerolog.Nop(), fn)
	if result.Outcome.Kind != OutcomeTransportFailure {
		t.Errorf("Kind = %q", result.Outcome.Kind)
	}
	if callCount != 1 {
		t.Errorf("callCount = %d, want 1", callCount)
	}
}

func TestRetryWithBackoff_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	fn := func() FetchResult {
		callCount++
		cancel()
		return FetchResult{Outcome: HTTPFailure(503)}
	}

	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffMultiplier: 1}
	start := time.Now()
	result := retryWithBackoff(ctx, cfg, zerolog.Nop(), fn)

	if result.Outcome.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", result.Outcome.StatusCode)
	}
	if callCount != 1 {
		t.Errorf("callCount = %d, want 1", callCount)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("backoff should stop on context cancellation")
	}
}
