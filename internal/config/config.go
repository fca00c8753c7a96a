package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"

	"github.com/stayrate/occupancy-proxy/pkg/batch"
	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/ratelimit"
	"github.com/stayrate/occupancy-proxy/pkg/report"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// Config holds the application configuration
type Config struct {
	// API Server
	Port               string
	Host               string
	CORSAllowedOrigins []string
	SessionCookie      string

	// Logging
	LogLevel  logging.LogLevel
	LogPretty bool

	// Upstream
	UpstreamBaseURL      string
	UpstreamSchedulePath string
	UpstreamUserAgent    string
	FetchTimeout         time.Duration
	FetchMaxAttempts     int

	// Scheduler
	BatchSize  int
	BatchDelay time.Duration

	// Reporting
	Timezone      string
	DetailURLBase string
	StrictDates   bool

	// Cooldown guard (disabled when RedisURL is empty)
	RedisURL         string
	UpstreamCooldown time.Duration
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	upstream := schedule.DefaultConfig()
	cfg := &Config{
		Port:                 getEnv("PORT", "8000"),
		Host:                 getEnv("HOST", "0.0.0.0"),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:5174"}),
		SessionCookie:        getEnv("SESSION_COOKIE", "session"),
		LogLevel:             logging.LogLevel(getEnv("LOG_LEVEL", string(logging.LevelInfo))),
		UpstreamBaseURL:      getEnv("UPSTREAM_BASE_URL", upstream.BaseURL),
		UpstreamSchedulePath: getEnv("UPSTREAM_SCHEDULE_PATH", upstream.SchedulePath),
		UpstreamUserAgent:    getEnv("UPSTREAM_USER_AGENT", upstream.UserAgent),
		Timezone:             getEnv("TIMEZONE", "Asia/Seoul"),
		DetailURLBase:        getEnv("DETAIL_URL_BASE", report.DefaultDetailURLBase),
		RedisURL:             getEnv("REDIS_URL", ""),
	}

	var err error
	if cfg.LogPretty, err = getEnvBool("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.StrictDates, err = getEnvBool("STRICT_DATES", false); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getEnvDuration("FETCH_TIMEOUT", upstream.Timeout); err != nil {
		return nil, err
	}
	if cfg.FetchMaxAttempts, err = getEnvInt("FETCH_MAX_ATTEMPTS", upstream.Retry.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getEnvInt("BATCH_SIZE", batch.DefaultBatchSize); err != nil {
		return nil, err
	}
	if cfg.BatchDelay, err = getEnvDuration("BATCH_DELAY", batch.DefaultBatchDelay); err != nil {
		return nil, err
	}
	if cfg.UpstreamCooldown, err = getEnvDuration("UPSTREAM_COOLDOWN", ratelimit.DefaultCooldown); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port == "" {
		return &ConfigError{Field: "PORT", Message: "port is required"}
	}
	if c.UpstreamBaseURL == "" {
		return &ConfigError{Field: "UPSTREAM_BASE_URL", Message: "upstream base URL is required"}
	}
	if c.FetchTimeout <= 0 {
		return &ConfigError{Field: "FETCH_TIMEOUT", Message: "must be positive"}
	}
	if c.FetchMaxAttempts < 1 {
		return &ConfigError{Field: "FETCH_MAX_ATTEMPTS", Message: "must be at least 1"}
	}
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "BATCH_SIZE", Message: "must be positive"}
	}
	if c.BatchDelay < 0 {
		return &ConfigError{Field: "BATCH_DELAY", Message: "must not be negative"}
	}
	if c.UpstreamCooldown <= 0 {
		return &ConfigError{Field: "UPSTREAM_COOLDOWN", Message: "must be positive"}
	}
	if !logging.ValidLevel(c.LogLevel) {
		return &ConfigError{Field: "LOG_LEVEL", Message: "must be one of debug, info, warn, error"}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &ConfigError{Field: "TIMEZONE", Message: "unknown time zone " + strconv.Quote(c.Timezone)}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Location returns the time zone used for the reference date.
// Falls back to UTC when Timezone does not load; Validate reports that case.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ScheduleConfig returns the fetcher configuration.
func (c *Config) ScheduleConfig() schedule.Config {
	cfg := schedule.DefaultConfig()
	cfg.BaseURL = c.UpstreamBaseURL
	cfg.SchedulePath = c.UpstreamSchedulePath
	cfg.UserAgent = c.UpstreamUserAgent
	cfg.Timeout = c.FetchTimeout
	cfg.Retry.MaxAttempts = c.FetchMaxAttempts
	return cfg
}

// BatchConfig returns the scheduler configuration.
func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		BatchSize:  c.BatchSize,
		BatchDelay: c.BatchDelay,
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "must be an integer"}
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "must be a duration such as 1s or 500ms"}
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, &ConfigError{Field: key, Message: "must be true or false"}
	}
	return b, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
