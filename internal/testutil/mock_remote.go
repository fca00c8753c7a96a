// Package testutil provides testing utilities for the occupancy proxy.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mocked schedule response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// ScheduleRequest records what the mock received.
type ScheduleRequest struct {
	RoomID  int64
	Year    string
	Month   string
	Session string
	Header  http.Header
}

// MockRemote is a configurable mock of the upstream schedule endpoint.
type MockRemote struct {
	server *httptest.Server

	// SchedulePath is the path the mock serves schedules on.
	SchedulePath string

	// SessionCookie is the cookie read as the session token.
	SessionCookie string

	mu          sync.Mutex
	rooms       map[int64]MockResponse
	months      map[string]MockResponse
	fallback    MockResponse
	requests    []ScheduleRequest
	inFlight    int
	maxInFlight int
}

// NewMockRemote starts a mock upstream. Unconfigured rooms answer 200 with
// an empty schedule_list.
func NewMockRemote() *MockRemote {
	m := &MockRemote{
		SchedulePath:  "/app/room/schedule",
		SessionCookie: "SESSION",
		rooms:         make(map[int64]MockResponse),
		months:        make(map[string]MockResponse),
		fallback:      NewScheduleResponse(),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock server origin.
func (m *MockRemote) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRemote) Close() {
	m.server.Close()
}

// SetRoomResponse configures the response for every month of a room.
func (m *MockRemote) SetRoomResponse(roomID int64, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[roomID] = resp
}

// SetMonthResponse configures the response for one room and month.
// It takes precedence over SetRoomResponse.
func (m *MockRemote) SetMonthResponse(roomID int64, year, month int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.months[monthKey(roomID, strconv.Itoa(year), fmt.Sprintf("%02d", month))] = resp
}

// SetDefaultResponse configures the response for unconfigured rooms.
func (m *MockRemote) SetDefaultResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// Requests returns a copy of the recorded requests in arrival order.
func (m *MockRemote) Requests() []ScheduleRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ScheduleRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of schedule requests received.
func (m *MockRemote) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// MaxInFlight returns the highest number of concurrent requests observed.
func (m *MockRemote) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func (m *MockRemote) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != m.SchedulePath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	roomID, _ := strconv.ParseInt(r.PostForm.Get("rid"), 10, 64)
	year := r.PostForm.Get("year")
	month := r.PostForm.Get("month")
	session := ""
	if c, err := r.Cookie(m.SessionCookie); err == nil {
		session = c.Value
	}

	m.mu.Lock()
	m.requests = append(m.requests, ScheduleRequest{
		RoomID:  roomID,
		Year:    year,
		Month:   month,
		Session: session,
		Header:  r.Header.Clone(),
	})
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	resp, ok := m.months[monthKey(roomID, year, month)]
	if !ok {
		resp, ok = m.rooms[roomID]
	}
	if !ok {
		resp = m.fallback
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func monthKey(roomID int64, year, month string) string {
	return fmt.Sprintf("%d:%s:%s", roomID, year, month)
}

// NewScheduleResponse creates a 200 response whose schedule_list holds the
// given date/status pairs, e.g. NewScheduleResponse("2024-06-20", "booking").
func NewScheduleResponse(pairs ...string) MockResponse {
	body := `{"schedule_list":[`
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"date":%q,"status":%q}`, pairs[i], pairs[i+1])
	}
	body += `]}`
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// NewForbiddenResponse creates the upstream's invalid-session response.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error": "forbidden"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewTooManyRequestsResponse creates a 429 response.
func NewTooManyRequestsResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Too many requests"}`,
	}
}
