// Package report turns an occupancy aggregate into the monthly occupancy
// spreadsheet and its summary figures.
package report

import (
	"fmt"
	"time"

	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// DaysInMonth returns the number of days in ym.
func DaysInMonth(ym schedule.YearMonth) int {
	return time.Date(ym.Year, time.Month(ym.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// PossibleDays returns the bookable days of ym as seen from ref: the whole
// month, except ref's own month which counts from ref's day to month end.
func PossibleDays(ym schedule.YearMonth, ref time.Time) int {
	days := DaysInMonth(ym)
	if ym.Year == ref.Year() && ym.Month == int(ref.Month()) {
		return days - ref.Day() + 1
	}
	return days
}

// Rate returns reserved/possible as a percentage, or 0 when possible is 0.
func Rate(reserved, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return float64(reserved) / float64(possible) * 100
}

// FormatRate renders a rate with one decimal place, e.g. "16.7%".
func FormatRate(reserved, possible int) string {
	return fmt.Sprintf("%.1f%%", Rate(reserved, possible))
}
