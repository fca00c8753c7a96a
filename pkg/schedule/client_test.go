package schedule

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stayrate/occupancy-proxy/internal/testutil"
)

func newTestClient(t *testing.T, mock *testutil.MockRemote, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 2 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "default config",
			config: DefaultConfig(),
		},
		{
			name: "missing base url",
			config: Config{
				Timeout: time.Second,
			},
			errorMsg: "base url is required",
		},
		{
			name: "zero timeout",
			config: Config{
				BaseURL: "https://example.com",
			},
			errorMsg: "timeout must be positive (got 0s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config, zerolog.Nop())
			if tt.errorMsg != "" {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.Endpoint() != "https://33m2.co.kr/app/room/schedule" {
				t.Errorf("Endpoint() = %q", c.Endpoint())
			}
		})
	}
}

func TestClient_Fetch_Success(t *testing.T) {
	mock := testutil.NewMockRemote()
	defer mock.Close()

	mock.SetRoomResponse(101, testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body: `{"schedule_list":[
			{"date":"2024-03-01","status":"booking"},
			{"date":"2024-03-02","status":"available"},
			{"date":"2024-03-03"},
			{"status":"disable"},
			{"date":5,"status":"booking"},
			{"date":"2024-03-04","status":"disable"}
		],"error_code":0}`,
	})

	c := newTestClient(t, mock, nil)
	result := c.Fetch(context.Background(), WorkItem{RoomID: 101, RoomLabel: "A", Year: 2024, Month: 3}, "token-abc")

	if !result.OK() {
		t.Fatalf("Outcome = %+v, want success", result.Outcome)
	}
	if result.RoomID != 101 || result.Year != 2024 || result.Month != 3 {
		t.Errorf("identity = %d %d-%d", result.RoomID, result.Year, result.Month)
	}

	want := []ScheduleEntry{
		{Date: "2024-03-01", Status: StatusBooking},
		{Date: "2024-03-02", Status: "available"},
		{Date: "2024-03-04", Status: StatusDisabled},
	}
	if len(result.Entries) != len(want) {
		t.Fatalf("len(Entries) = %d, want %d (%+v)", len(result.Entries), len(want), result.Entries)
	}
	for i := range want {
		if result.Entries[i] != want[i] {
			t.Errorf("Entries[%d] = %+v, want %+v", i, result.Entries[i], want[i])
		}
	}
	if len(result.RawPayload) == 0 {
		t.Error("RawPayload should hold the upstream body")
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("RequestCount = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.RoomID != 101 || req.Year != "2024" || req.Month != "03" {
		t.Errorf("form = rid %d year %s month %s, want 101 2024 03", req.RoomID, req.Year, req.Month)
	}
	if req.Session != "token-abc" {
		t.Errorf("session cookie = %q, want token-abc", req.Session)
	}
	if got := req.Header.Get("X-Requested-With"); got != "XMLHttpRequest" {
		t.Errorf("X-Requested-With = %q", got)
	}
	if got := req.Header.Get("Referer"); got != mock.URL()+"/room/detail/101" {
		t.Errorf("Referer = %q", got)
	}
	if got := req.Header.Get("Content-Type"); !strings.HasPrefix(got, "application/x-www-form-urlencoded") {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestClient_Fetch_MissingOrEmptyList(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing field", body: `{"error_code":0}`},
		{name: "null list", body: `{"schedule_list":null}`},
		{name: "empty list", body: `{"schedule_list":[]}`},
		{name: "not a list", body: `{"schedule_list":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockRemote()
			defer mock.Close()
			mock.SetDefaultResponse(testutil.MockResponse{StatusCode: http.StatusOK, Body: tt.body})

			c := newTestClient(t, mock, nil)
			result := c.Fetch(context.Background(), WorkItem{RoomID: 1, Year: 2024, Month: 1}, "s")

			if !result.OK() {
				t.Fatalf("Outcome = %+v, want success", result.Outcome)
			}
			if len(result.Entries) != 0 {
				t.Errorf("len(Entries) = %d, want 0", len(result.Entries))
			}
		})
	}
}

func TestClient_Fetch_Classification(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantKind   OutcomeKind
		wantStatus int
		wantCode   int
	}{
		{
			name:       "forbidden is auth failure",
			response:   testutil.NewForbiddenResponse(),
			wantKind:   OutcomeAuthFailure,
			wantStatus: 403,
			wantCode:   403,
		},
		{
			name:       "server error",
			response:   testutil.NewServerErrorResponse(),
			wantKind:   OutcomeHTTPFailure,
			wantStatus: 500,
			wantCode:   500,
		},
		{
			name:       "not found",
			response:   testutil.MockResponse{StatusCode: http.StatusNotFound},
			wantKind:   OutcomeHTTPFailure,
			wantStatus: 404,
			wantCode:   404,
		},
		{
			name:       "malformed body",
			response:   testutil.MockResponse{StatusCode: http.StatusOK, Body: `<html>login</html>`},
			wantKind:   OutcomeTransportFailure,
			wantStatus: 0,
			wantCode:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockRemote()
			defer mock.Close()
			mock.SetDefaultResponse(tt.response)

			c := newTestClient(t, mock, nil)
			result := c.Fetch(context.Background(), WorkItem{RoomID: 7, Year: 2024, Month: 2}, "s")

			if result.Outcome.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", result.Outcome.Kind, tt.wantKind)
			}
			if result.Outcome.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", result.Outcome.StatusCode, tt.wantStatus)
			}
			if result.ErrorCode() != tt.wantCode {
				t.Errorf("ErrorCode() = %d, want %d", result.ErrorCode(), tt.wantCode)
			}
			if len(result.Entries) != 0 {
				t.Errorf("failed result should have no entries, got %d", len(result.Entries))
			}
			if len(result.RawPayload) == 0 {
				t.Error("failed result should carry diagnostic payload")
			}
		})
	}
}

func TestClient_Fetch_TransportFailure(t *testing.T) {
	mock := testutil.NewMockRemote()
	url := mock.URL()
	mock.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result := c.Fetch(context.Background(), WorkItem{RoomID: 1, Year: 2024, Month: 1}, "s")
	if result.Outcome.Kind != OutcomeTransportFailure {
		t.Errorf("Kind = %q, want transport_failure", result.Outcome.Kind)
	}
	if result.Outcome.Message == "" {
		t.Error("transport failure should carry a message")
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	mock := testutil.NewMockRemote()
	defer mock.Close()
	mock.SetDefaultResponse(testutil.MockResponse{StatusCode: http.StatusOK, Body: `{}`, Delay: 500 * time.Millisecond})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
	})

	start := time.Now()
	result := c.Fetch(context.Background(), WorkItem{RoomID: 1, Year: 2024, Month: 1}, "s")
	if result.Outcome.Kind != OutcomeTransportFailure {
		t.Errorf("Kind = %q, want transport_failure", result.Outcome.Kind)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("Fetch took %v, timeout not enforced", elapsed)
	}
}

func TestClient_Fetch_IgnoresCallerCancellation(t *testing.T) {
	mock := testutil.NewMockRemote()
	defer mock.Close()
	mock.SetDefaultResponse(testutil.NewScheduleResponse("2024-01-05", "booking"))

	c := newTestClient(t, mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.Fetch(ctx, WorkItem{RoomID: 1, Year: 2024, Month: 1}, "s")
	if !result.OK() {
		t.Errorf("Outcome = %+v, want success despite cancelled caller", result.Outcome)
	}
}

func TestClient_Fetch_RetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockRemote()
	defer mock.Close()
	mock.SetDefaultResponse(testutil.NewServerErrorResponse())

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Retry = RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}
	})

	result := c.Fetch(context.Background(), WorkItem{RoomID: 1, Year: 2024, Month: 1}, "s")
	if result.Outcome.Kind != OutcomeHTTPFailure {
		t.Errorf("Kind = %q, want http_failure", result.Outcome.Kind)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3", mock.RequestCount())
	}
}

func TestClient_Fetch_RetriesDespiteCallerCancellation(t *testing.T) {
	mock := testutil.NewMockRemote()
	defer mock.Close()
	mock.SetDefaultResponse(testutil.NewServerErrorResponse())

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Retry = RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.Fetch(ctx, WorkItem{RoomID: 1, Year: 2024, Month: 1}, "s")
	if result.Outcome.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", result.Outcome.StatusCode)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3 (backoff is not cut short by the caller)", mock.RequestCount())
	}
}

func TestClient_Fetch_NeverRetriesForbidden(t *testing.T) {
	mock := testutil.NewMockRemote()
	defer mock.Close()
	mock.SetDefaultResponse(testutil.NewForbiddenResponse())

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Retry = RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	})

	result := c.Fetch(context.Background(), WorkItem{RoomID: 1, Year: 2024, Month: 1}, "s")
	if result.Outcome.Kind != OutcomeAuthFailure {
		t.Errorf("Kind = %q, want auth_failure", result.Outcome.Kind)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", mock.RequestCount())
	}
}

func TestClient_Fetch_Concurrent(t *testing.T) {
	mock := testutil.NewMockRemote()
	defer mock.Close()
	mock.SetDefaultResponse(testutil.NewScheduleResponse("2024-01-01", "booking"))

	c := newTestClient(t, mock, nil)

	var wg sync.WaitGroup
	results := make([]FetchResult, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Fetch(context.Background(), WorkItem{RoomID: int64(i), Year: 2024, Month: 1}, "s")
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if !r.OK() {
			t.Errorf("results[%d] outcome = %+v", i, r.Outcome)
		}
		if r.RoomID != int64(i) {
			t.Errorf("results[%d].RoomID = %d", i, r.RoomID)
		}
	}
}

func TestParseScheduleBody_InvalidJSON(t *testing.T) {
	if _, err := parseScheduleBody([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if _, err := parseScheduleBody([]byte(`[1,2]`)); err == nil {
		t.Error("Expected error for non-object body")
	}
}
