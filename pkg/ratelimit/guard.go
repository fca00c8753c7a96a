package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// Prometheus metrics for the cooldown guard.
var (
	cooldownActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "occupancy_upstream_cooldown_active",
		Help: "1 while new runs are refused because the upstream asked us to back off",
	})

	guardTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_guard_trips_total",
		Help: "Total cooldowns started by upstream status code",
	}, []string{"status"})

	guardRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_guard_rejections_total",
		Help: "Total runs refused during an upstream cooldown",
	})

	guardErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_guard_errors_total",
		Help: "Total Redis errors in the guard (requests were let through)",
	})
)

// Guard gates run admission on the shared upstream cooldown. A nil Guard, or
// one without a Redis client, admits everything.
type Guard struct {
	redis    *redis.Client
	cooldown time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewGuard creates a new cooldown guard.
func NewGuard(redisClient *redis.Client, cooldown time.Duration, logger zerolog.Logger) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Guard{
		redis:    redisClient,
		cooldown: cooldown,
		logger:   logging.Component(logger, "guard"),
		now:      time.Now,
	}
}

// Enabled reports whether the guard is backed by Redis.
func (g *Guard) Enabled() bool {
	return g != nil && g.redis != nil
}

// State retrieves the current cooldown from Redis.
// Returns an empty state if none is recorded.
func (g *Guard) State(ctx context.Context) (*CooldownState, error) {
	if !g.Enabled() {
		return &CooldownState{}, nil
	}

	vals, err := g.redis.MGet(ctx, RedisKeyCooldownUntil, RedisKeyCooldownReason).Result()
	if err != nil {
		return nil, fmt.Errorf("get cooldown state: %w", err)
	}

	state := &CooldownState{}
	if s, ok := vals[0].(string); ok && s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse cooldown deadline: %w", err)
		}
		state.Until = time.UnixMilli(ms)
	}
	if s, ok := vals[1].(string); ok {
		state.Reason = s
	}
	return state, nil
}

// Allow reports whether a new run may start and, if not, how long the
// caller should wait. Redis errors are logged and the run is let through.
func (g *Guard) Allow(ctx context.Context) (bool, time.Duration) {
	if !g.Enabled() {
		return true, 0
	}

	state, err := g.State(ctx)
	if err != nil {
		guardErrorsTotal.Inc()
		g.logger.Warn().Err(err).Msg("Cooldown state unavailable - allowing run")
		return true, 0
	}

	now := g.now()
	if !state.IsActive(now) {
		cooldownActive.Set(0)
		return true, 0
	}

	wait := state.Remaining(now)
	cooldownActive.Set(1)
	guardRejectionsTotal.Inc()
	g.logger.Warn().
		Str("reason", state.Reason).
		Dur("retry_after", wait).
		Msg("Upstream cooldown active - refusing run")

	return false, wait
}

// Observe trips the guard when any result carries a back-off status (429 or
// 503). It returns whether a cooldown was started.
func (g *Guard) Observe(ctx context.Context, results []schedule.FetchResult) (bool, error) {
	if !g.Enabled() {
		return false, nil
	}

	for _, r := range results {
		if r.Outcome.Kind != schedule.OutcomeHTTPFailure {
			continue
		}
		if !IsBackoffStatus(r.Outcome.StatusCode) {
			continue
		}
		if err := g.Trip(ctx, r.Outcome.StatusCode); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Trip starts a cooldown because the upstream answered status.
func (g *Guard) Trip(ctx context.Context, status int) error {
	if !g.Enabled() {
		return nil
	}

	until := g.now().Add(g.cooldown)
	reason := fmt.Sprintf("HTTP %d", status)

	pipe := g.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyCooldownUntil, until.UnixMilli(), g.cooldown)
	pipe.Set(ctx, RedisKeyCooldownReason, reason, g.cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		guardErrorsTotal.Inc()
		return fmt.Errorf("store cooldown in redis: %w", err)
	}

	guardTripsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	cooldownActive.Set(1)
	g.logger.Error().
		Int("status_code", status).
		Time("until", until).
		Msg("Upstream asked to back off - cooldown started")

	return nil
}

// Reset clears any recorded cooldown.
func (g *Guard) Reset(ctx context.Context) error {
	if !g.Enabled() {
		return nil
	}
	if err := g.redis.Del(ctx, RedisKeyCooldownUntil, RedisKeyCooldownReason).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear cooldown: %w", err)
	}
	cooldownActive.Set(0)
	return nil
}

// IsBackoffStatus reports whether status asks the client to slow down.
func IsBackoffStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}
