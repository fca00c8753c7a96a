// Package ratelimit tracks upstream back-pressure shared by all proxy
// instances. When the booking site answers 429 or 503 the guard records a
// cooldown deadline in Redis, and new runs are refused until it passes.
package ratelimit

import (
	"math"
	"time"
)

// Redis keys for cooldown state storage.
const (
	RedisKeyCooldownUntil  = "occupancy:upstream:cooldown_until"
	RedisKeyCooldownReason = "occupancy:upstream:cooldown_reason"
)

// DefaultCooldown is how long new runs are refused after a trip.
const DefaultCooldown = 60 * time.Second

// CooldownState represents the shared upstream cooldown.
type CooldownState struct {
	// Until is when the cooldown ends. Zero means no cooldown was recorded.
	Until time.Time `json:"until"`

	// Reason is the upstream response that tripped the guard, e.g. "HTTP 429".
	Reason string `json:"reason,omitempty"`
}

// IsActive returns true if the cooldown has not yet ended at now.
func (s *CooldownState) IsActive(now time.Time) bool {
	return !s.Until.IsZero() && now.Before(s.Until)
}

// Remaining returns the time left until the cooldown ends.
// Returns 0 if the cooldown already passed.
func (s *CooldownState) Remaining(now time.Time) time.Duration {
	if !s.IsActive(now) {
		return 0
	}
	return s.Until.Sub(now)
}

// RetryAfterSeconds rounds d up to whole seconds for a Retry-After header.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
