package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/stayrate/occupancy-proxy/pkg/logging"
)

// Prometheus metrics for schedule fetches.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_fetch_requests_total",
		Help: "Total upstream schedule fetches by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "occupancy_fetch_duration_seconds",
		Help:    "Upstream schedule fetch duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_fetch_retries_total",
		Help: "Total number of fetch retry attempts by outcome",
	}, []string{"outcome"})
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 2048

// Fetcher makes one remote call for a WorkItem. Implementations never return
// an error: every failure is encoded in FetchResult.Outcome. They must be safe
// for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, item WorkItem, session string) FetchResult
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the upstream site origin, e.g. "https://33m2.co.kr".
	BaseURL string

	// SchedulePath is the schedule endpoint path.
	SchedulePath string

	// UserAgent header sent with every call.
	UserAgent string

	// SessionCookie is the cookie name the upstream expects the token in.
	SessionCookie string

	// Timeout bounds each call. It must be finite.
	Timeout time.Duration

	// Retry controls per-call retries (default: none).
	Retry RetryConfig
}

// DefaultConfig returns the configuration for the production upstream.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://33m2.co.kr",
		SchedulePath:  "/app/room/schedule",
		UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
		SessionCookie: "SESSION",
		Timeout:       30 * time.Second,
		Retry:         DefaultRetryConfig(),
	}
}

// Client is the HTTP Schedule Fetcher. One Client, and its connection pool,
// is shared read-only by all concurrent fetches.
type Client struct {
	httpClient *http.Client
	endpoint   string
	config     Config
	logger     zerolog.Logger
}

// New creates a new schedule client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "SESSION"
	}
	if cfg.SchedulePath == "" {
		cfg.SchedulePath = DefaultConfig().SchedulePath
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	endpoint, err := url.JoinPath(base, cfg.SchedulePath)
	if err != nil {
		return nil, fmt.Errorf("build schedule endpoint: %w", err)
	}
	cfg.BaseURL = base

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint: endpoint,
		config:   cfg,
		logger:   logging.Component(logger, "schedule-client"),
	}, nil
}

// Endpoint returns the resolved schedule URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Fetch retrieves the schedule for one room and month. Caller cancellation
// does not interrupt a dispatched call; the per-call timeout still applies.
func (c *Client) Fetch(ctx context.Context, item WorkItem, session string) FetchResult {
	ctx = context.WithoutCancel(ctx)
	return retryWithBackoff(ctx, c.config.Retry, c.logger, func() FetchResult {
		return c.fetchOnce(ctx, item, session)
	})
}

func (c *Client) fetchOnce(ctx context.Context, item WorkItem, session string) FetchResult {
	start := time.Now()
	result := c.do(ctx, item, session)
	fetchDuration.Observe(time.Since(start).Seconds())
	fetchRequestsTotal.WithLabelValues(string(result.Outcome.Kind)).Inc()

	event := c.logger.Debug()
	if !result.OK() {
		event = c.logger.Warn().Str("error", result.Outcome.Message)
	}
	event.
		Int64("room_id", item.RoomID).
		Int("year", item.Year).
		Int("month", item.Month).
		Str("outcome", string(result.Outcome.Kind)).
		Int("status_code", result.Outcome.StatusCode).
		Int("entries", len(result.Entries)).
		Dur("duration", time.Since(start)).
		Msg("Schedule fetch finished")

	return result
}

func (c *Client) do(ctx context.Context, item WorkItem, session string) FetchResult {
	result := FetchResult{
		RoomID: item.RoomID,
		Year:   item.Year,
		Month:  item.Month,
	}

	form := url.Values{}
	form.Set("rid", strconv.FormatInt(item.RoomID, 10))
	form.Set("year", strconv.Itoa(item.Year))
	form.Set("month", fmt.Sprintf("%02d", item.Month))

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return withFailure(result, TransportFailure(fmt.Sprintf("create request: %v", err)))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Referer", fmt.Sprintf("%s/room/detail/%d", c.config.BaseURL, item.RoomID))
	req.Header.Set("Origin", c.config.BaseURL)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.AddCookie(&http.Cookie{Name: c.config.SessionCookie, Value: session})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return withFailure(result, TransportFailure(err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		body := readDiagnostic(resp.Body)
		result.Outcome = AuthFailure(resp.StatusCode, "session expired")
		result.RawPayload = errorPayload("session expired", body)
		return result
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readDiagnostic(resp.Body)
		result.Outcome = HTTPFailure(resp.StatusCode)
		result.RawPayload = errorPayload(fmt.Sprintf("HTTP %d", resp.StatusCode), body)
		return result
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return withFailure(result, TransportFailure(fmt.Sprintf("read response body: %v", err)))
	}

	entries, err := parseScheduleBody(raw)
	if err != nil {
		return withFailure(result, TransportFailure(fmt.Sprintf("decode response body: %v", err)))
	}

	result.Entries = entries
	result.Outcome = Success()
	result.RawPayload = json.RawMessage(raw)
	return result
}

// parseScheduleBody extracts schedule_list from a JSON object. A missing,
// null or non-list field yields zero entries; items missing a string "date"
// or "status" are skipped.
func parseScheduleBody(raw []byte) ([]ScheduleEntry, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	list, ok := body["schedule_list"]
	if !ok {
		return []ScheduleEntry{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return []ScheduleEntry{}, nil
	}

	entries := make([]ScheduleEntry, 0, len(items))
	for _, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		date, ok := fields["date"].(string)
		if !ok {
			continue
		}
		status, ok := fields["status"].(string)
		if !ok {
			continue
		}
		entries = append(entries, ScheduleEntry{Date: date, Status: Status(status)})
	}
	return entries, nil
}

func withFailure(result FetchResult, outcome Outcome) FetchResult {
	result.Outcome = outcome
	result.Entries = nil
	result.RawPayload = errorPayload(outcome.Message, "")
	return result
}

func errorPayload(message, body string) json.RawMessage {
	payload := map[string]string{"error": message}
	if body != "" {
		payload["body"] = body
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

func readDiagnostic(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
