package report

import (
	"fmt"
	"time"

	"github.com/stayrate/occupancy-proxy/pkg/batch"
	"github.com/stayrate/occupancy-proxy/pkg/occupancy"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// RoomLine is one room's figures.
type RoomLine struct {
	RoomID       int64  `json:"rid"`
	Label        string `json:"rname"`
	Counts       []int  `json:"counts"`
	ReservedDays int    `json:"reserved_days"`
	PossibleDays int    `json:"possible_days"`
	Rate         string `json:"rate"`
}

// Summary carries every number the spreadsheet shows.
type Summary struct {
	GeneratedAt   time.Time            `json:"generated_at"`
	Range         schedule.DateRange   `json:"range"`
	Months        []schedule.YearMonth `json:"months"`
	Rooms         []RoomLine           `json:"rooms"`
	MonthTotals   []int                `json:"month_totals"`
	RoomCount     int                  `json:"room_count"`
	TotalRequests int                  `json:"total_requests"`
	Completed     int                  `json:"completed_requests"`
	Failed        int                  `json:"failed_requests"`
	ReservedDays  int                  `json:"reserved_days"`
	PossibleDays  int                  `json:"possible_days"`
	Rate          string               `json:"rate"`
}

// Summarize computes the per-room and overall figures of agg. Possible days
// are taken relative to agg.ReferenceDate.
func Summarize(agg *occupancy.Aggregate, run *batch.Report, generatedAt time.Time) Summary {
	s := Summary{
		GeneratedAt: generatedAt,
		Range:       agg.Range,
		Months:      agg.Months,
		Rooms:       make([]RoomLine, 0, len(agg.Rows)),
		MonthTotals: make([]int, len(agg.Months)),
		RoomCount:   len(agg.Rows),
	}
	if run != nil {
		s.TotalRequests = run.TotalRequested
		s.Completed = run.Completed
		s.Failed = run.Failed
	}

	possible := make([]int, len(agg.Months))
	for i, ym := range agg.Months {
		possible[i] = PossibleDays(ym, agg.ReferenceDate)
	}

	for _, row := range agg.Rows {
		line := RoomLine{
			RoomID: row.RoomID,
			Label:  row.Label,
			Counts: make([]int, len(agg.Months)),
		}
		for i, ym := range agg.Months {
			n := row.Count(ym)
			line.Counts[i] = n
			line.ReservedDays += n
			line.PossibleDays += possible[i]
			s.MonthTotals[i] += n
		}
		line.Rate = FormatRate(line.ReservedDays, line.PossibleDays)

		s.ReservedDays += line.ReservedDays
		s.PossibleDays += line.PossibleDays
		s.Rooms = append(s.Rooms, line)
	}
	s.Rate = FormatRate(s.ReservedDays, s.PossibleDays)

	return s
}

// PeriodLabel renders the queried range, e.g. "2024년 1월 ~ 2024년 3월".
func (s Summary) PeriodLabel() string {
	return fmt.Sprintf("%d년 %d월 ~ %d년 %d월", s.Range.StartYear, s.Range.StartMonth, s.Range.EndYear, s.Range.EndMonth)
}

// MonthLabel renders a month header, e.g. "2024년 6월".
func MonthLabel(ym schedule.YearMonth) string {
	return fmt.Sprintf("%d년 %d월", ym.Year, ym.Month)
}

// Filename returns the download name for a report over rng generated at now.
func Filename(rng schedule.DateRange, now time.Time) string {
	return fmt.Sprintf("월별예약률_%04d%02d_%04d%02d_%s.xlsx",
		rng.StartYear, rng.StartMonth, rng.EndYear, rng.EndMonth, now.Format("20060102_150405"))
}
