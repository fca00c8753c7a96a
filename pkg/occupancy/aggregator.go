package occupancy

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/stayrate/occupancy-proxy/pkg/batch"
	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithStrictDates skips entries whose date does not parse. By default such
// entries are counted toward their result's month.
func WithStrictDates() Option {
	return func(a *Aggregator) {
		a.strict = true
	}
}

// Aggregator builds Aggregates. It keeps no state between calls.
type Aggregator struct {
	logger zerolog.Logger
	strict bool
}

// NewAggregator creates a new aggregator.
func NewAggregator(logger zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		logger: logging.Component(logger, "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate counts reserved days per roster room and month.
//
// Every roster room gets a row, even without results. Only successful
// results for rooms in the roster contribute; a result is credited to the
// first roster entry with its room id. In the month of ref only days on or
// after ref's day are counted.
func (a *Aggregator) Aggregate(report *batch.Report, roster []schedule.Room, rng schedule.DateRange, ref time.Time) *Aggregate {
	agg := &Aggregate{
		Rows:          make([]Row, 0, len(roster)),
		Months:        rng.Months(),
		Range:         rng,
		ReferenceDate: ref,
	}

	rowIndex := make(map[int64]int, len(roster))
	seen := make(map[schedule.Room]bool, len(roster))
	for _, room := range roster {
		if seen[room] {
			continue
		}
		seen[room] = true

		agg.Rows = append(agg.Rows, Row{
			RoomID: room.ID,
			Label:  room.Label,
			Counts: make(map[string]int),
		})
		if _, ok := rowIndex[room.ID]; !ok {
			rowIndex[room.ID] = len(agg.Rows) - 1
		}
	}

	if report == nil {
		return agg
	}

	refMonth := schedule.YearMonth{Year: ref.Year(), Month: int(ref.Month())}
	var counted, failed, foreign, malformed int

	for _, result := range report.Results {
		idx, ok := rowIndex[result.RoomID]
		if !ok {
			foreign++
			continue
		}
		if !result.OK() {
			failed++
			continue
		}
		counted++

		ym := result.YearMonth()
		current := ym == refMonth
		row := &agg.Rows[idx]

		for _, entry := range result.Entries {
			if !entry.Status.IsReserved() {
				continue
			}

			day, err := time.Parse(DateLayout, entry.Date)
			if err != nil {
				malformed++
				if a.strict {
					continue
				}
				row.Counts[ym.Key()]++
				continue
			}

			if current && day.Day() < ref.Day() {
				continue
			}
			row.Counts[ym.Key()]++
		}
	}

	a.logger.Debug().
		Int("rooms", len(agg.Rows)).
		Int("counted", counted).
		Int("failed", failed).
		Int("foreign", foreign).
		Int("malformed_dates", malformed).
		Bool("strict", a.strict).
		Msg("Aggregation complete")

	return agg
}
