// Package schedule fetches per-month room schedules from the upstream booking
// site and classifies every call into a tagged Outcome.
package schedule

import (
	"encoding/json"
	"fmt"
)

// Room is one roster entry. Label is display-only; identity is ID.
type Room struct {
	ID    int64  `json:"rid"`
	Label string `json:"rname"`
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Key returns the "YYYY-MM" bucket key.
func (ym YearMonth) Key() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Next returns the following calendar month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month >= 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// DateRange is an inclusive month range.
type DateRange struct {
	StartYear  int `json:"start_year"`
	StartMonth int `json:"start_month"`
	EndYear    int `json:"end_year"`
	EndMonth   int `json:"end_month"`
}

// Start returns the first month of the range.
func (r DateRange) Start() YearMonth {
	return YearMonth{Year: r.StartYear, Month: r.StartMonth}
}

// End returns the last month of the range.
func (r DateRange) End() YearMonth {
	return YearMonth{Year: r.EndYear, Month: r.EndMonth}
}

// Months lists every month from Start to End inclusive.
// A range whose start is after its end is empty.
func (r DateRange) Months() []YearMonth {
	var months []YearMonth
	end := r.End()
	for ym := r.Start(); !end.Before(ym); ym = ym.Next() {
		months = append(months, ym)
	}
	return months
}

// Validate checks that both endpoints name a real month.
func (r DateRange) Validate() error {
	if r.StartMonth < 1 || r.StartMonth > 12 {
		return fmt.Errorf("start_month must be between 1 and 12 (got %d)", r.StartMonth)
	}
	if r.EndMonth < 1 || r.EndMonth > 12 {
		return fmt.Errorf("end_month must be between 1 and 12 (got %d)", r.EndMonth)
	}
	if r.StartYear <= 0 || r.EndYear <= 0 {
		return fmt.Errorf("start_year and end_year must be positive")
	}
	return nil
}

// WorkItem is a single (room, year, month) fetch.
type WorkItem struct {
	RoomID    int64
	RoomLabel string
	Year      int
	Month     int
}

// YearMonth returns the month the item covers.
func (w WorkItem) YearMonth() YearMonth {
	return YearMonth{Year: w.Year, Month: w.Month}
}

// Status is the raw per-day status string returned by the upstream site.
type Status string

const (
	// StatusDisabled marks a day the host made unavailable.
	StatusDisabled Status = "disable"

	// StatusBooking marks a day with an active booking.
	StatusBooking Status = "booking"
)

// IsReserved reports whether the day counts as occupied.
// Anything other than the two reserved-like codes is not counted.
func (s Status) IsReserved() bool {
	return s == StatusDisabled || s == StatusBooking
}

// ScheduleEntry is one day of a room schedule, in upstream order.
type ScheduleEntry struct {
	Date   string `json:"date"`
	Status Status `json:"status"`
}

// FetchResult is the normalized result of one WorkItem.
type FetchResult struct {
	RoomID     int64
	Year       int
	Month      int
	Entries    []ScheduleEntry
	Outcome    Outcome
	RawPayload json.RawMessage
}

// YearMonth returns the month the result covers.
func (r FetchResult) YearMonth() YearMonth {
	return YearMonth{Year: r.Year, Month: r.Month}
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.Outcome.Kind == OutcomeSuccess
}

// Err returns the failure as an error, or nil on success.
func (r FetchResult) Err() error {
	if r.OK() {
		return nil
	}
	return &FetchError{
		RoomID:     r.RoomID,
		Year:       r.Year,
		Month:      r.Month,
		Kind:       r.Outcome.Kind,
		StatusCode: r.Outcome.StatusCode,
		Message:    r.Outcome.Message,
	}
}

// ErrorCode is the legacy numeric code exposed to API clients:
// 0 on success, the HTTP status for HTTP-level failures, -1 for transport failures.
func (r FetchResult) ErrorCode() int {
	switch r.Outcome.Kind {
	case OutcomeSuccess:
		return 0
	case OutcomeAuthFailure, OutcomeHTTPFailure:
		return r.Outcome.StatusCode
	default:
		return -1
	}
}

// MarshalJSON renders the result in the shape API clients already consume.
func (r FetchResult) MarshalJSON() ([]byte, error) {
	entries := r.Entries
	if entries == nil {
		entries = []ScheduleEntry{}
	}
	return json.Marshal(struct {
		RoomID      int64           `json:"rid"`
		Year        int             `json:"year"`
		Month       int             `json:"month"`
		Entries     []ScheduleEntry `json:"schedule_list"`
		ErrorCode   int             `json:"error_code"`
		Outcome     OutcomeKind     `json:"outcome"`
		RawResponse json.RawMessage `json:"raw_response,omitempty"`
	}{
		RoomID:      r.RoomID,
		Year:        r.Year,
		Month:       r.Month,
		Entries:     entries,
		ErrorCode:   r.ErrorCode(),
		Outcome:     r.Outcome.Kind,
		RawResponse: r.RawPayload,
	})
}

// ApplicationErrorCode extracts the upstream "error_code" field from a
// successful payload. It returns 0 when absent or not numeric.
func (r FetchResult) ApplicationErrorCode() int {
	if len(r.RawPayload) == 0 {
		return 0
	}
	var body struct {
		ErrorCode json.Number `json:"error_code"`
	}
	if err := json.Unmarshal(r.RawPayload, &body); err != nil {
		return 0
	}
	code, err := body.ErrorCode.Int64()
	if err != nil {
		return 0
	}
	return int(code)
}
