// Package occupancy folds fetched schedules into per-room, per-month
// reserved-day counts.
package occupancy

import (
	"time"

	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// DateLayout is the upstream's per-day date format. Month and day may omit
// the leading zero.
const DateLayout = "2006-1-2"

// Row holds the reserved-day counts of one roster room, keyed by "YYYY-MM".
type Row struct {
	RoomID int64          `json:"rid"`
	Label  string         `json:"rname"`
	Counts map[string]int `json:"counts"`
}

// Count returns the reserved days for ym.
func (r Row) Count(ym schedule.YearMonth) int {
	return r.Counts[ym.Key()]
}

// Total returns the reserved days across all months.
func (r Row) Total() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Aggregate is the MonthlyAggregate of one report. Rows follow roster order.
// It is not modified after Aggregator.Aggregate returns.
type Aggregate struct {
	Rows          []Row                `json:"rows"`
	Months        []schedule.YearMonth `json:"months"`
	Range         schedule.DateRange   `json:"range"`
	ReferenceDate time.Time            `json:"reference_date"`
}

// Room returns the row for (roomID, label).
func (a *Aggregate) Room(roomID int64, label string) (Row, bool) {
	for _, row := range a.Rows {
		if row.RoomID == roomID && row.Label == label {
			return row, true
		}
	}
	return Row{}, false
}

// MonthTotal returns the reserved days of all rooms for ym.
func (a *Aggregate) MonthTotal(ym schedule.YearMonth) int {
	total := 0
	for _, row := range a.Rows {
		total += row.Count(ym)
	}
	return total
}

// ReservedDays returns the reserved days of all rooms and months.
func (a *Aggregate) ReservedDays() int {
	total := 0
	for _, row := range a.Rows {
		total += row.Total()
	}
	return total
}
