// Command occupancy-proxy serves the room occupancy API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stayrate/occupancy-proxy/internal/api"
	"github.com/stayrate/occupancy-proxy/internal/config"
	"github.com/stayrate/occupancy-proxy/internal/service"
	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/metrics"
	"github.com/stayrate/occupancy-proxy/pkg/ratelimit"
)

// shutdownTimeout leaves room for a download run of a few hundred items.
const shutdownTimeout = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	guard, closeRedis, err := newGuard(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	router, err := newRouter(cfg, guard, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("upstream", cfg.UpstreamBaseURL).
			Int("batch_size", cfg.BatchSize).
			Dur("batch_delay", cfg.BatchDelay).
			Bool("cooldown_guard", guard.Enabled()).
			Msg("Starting occupancy proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newGuard connects to Redis when REDIS_URL is set. Without it the guard is
// disabled and every run is admitted.
func newGuard(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*ratelimit.Guard, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

	guard := ratelimit.NewGuard(redisClient, cfg.UpstreamCooldown, logger)
	return guard, func() { redisClient.Close() }, nil
}

func newRouter(cfg *config.Config, guard *ratelimit.Guard, logger zerolog.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	svc, err := service.NewFromConfig(cfg, guard, logger)
	if err != nil {
		return nil, err
	}

	handler := api.NewHandler(svc, cfg.SessionCookie, metrics.Handler(), logger)
	return api.SetupRoutes(handler, cfg.CORSAllowedOrigins, logger), nil
}
