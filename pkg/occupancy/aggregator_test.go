package occupancy

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayrate/occupancy-proxy/pkg/batch"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

var june2024 = schedule.DateRange{StartYear: 2024, StartMonth: 6, EndYear: 2024, EndMonth: 6}

func success(roomID int64, year, month int, entries ...schedule.ScheduleEntry) schedule.FetchResult {
	return schedule.FetchResult{
		RoomID:  roomID,
		Year:    year,
		Month:   month,
		Entries: entries,
		Outcome: schedule.Success(),
	}
}

func entry(date string, status schedule.Status) schedule.ScheduleEntry {
	return schedule.ScheduleEntry{Date: date, Status: status}
}

func refDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 9, 0, 0, 0, time.UTC)
}

func TestAggregate_CurrentMonthTruncation(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}}
	report := &batch.Report{Results: []schedule.FetchResult{
		success(1, 2024, 6,
			entry("2024-06-10", schedule.StatusBooking),
			entry("2024-06-15", schedule.StatusDisabled),
			entry("2024-06-20", schedule.StatusBooking),
		),
	}}

	agg := NewAggregator(zerolog.Nop()).Aggregate(report, roster, june2024, refDate(2024, time.June, 15))

	row, ok := agg.Room(1, "A")
	require.True(t, ok)
	assert.Equal(t, 2, row.Count(schedule.YearMonth{Year: 2024, Month: 6}), "day 10 is before the reference day")
}

func TestAggregate_UnpaddedDates(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}}
	report := &batch.Report{Results: []schedule.FetchResult{
		success(1, 2024, 6,
			entry("2024-6-5", schedule.StatusBooking),
			entry("2024-06-10", schedule.StatusBooking),
			entry("2024-6-20", schedule.StatusBooking),
		),
	}}
	june := schedule.YearMonth{Year: 2024, Month: 6}

	for name, agg := range map[string]*Aggregator{
		"lenient": NewAggregator(zerolog.Nop()),
		"strict":  NewAggregator(zerolog.Nop(), WithStrictDates()),
	} {
		t.Run(name, func(t *testing.T) {
			got := agg.Aggregate(report, roster, june2024, refDate(2024, time.June, 15))
			assert.Equal(t, 1, got.Rows[0].Count(june), "days 5 and 10 are before the reference day")
		})
	}
}

func TestAggregate_LogsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	NewAggregator(logger).Aggregate(&batch.Report{}, []schedule.Room{{ID: 1, Label: "A"}}, june2024, refDate(2024, time.June, 15))

	assert.Contains(t, buf.String(), `"component":"aggregator"`)
	assert.Contains(t, buf.String(), "Aggregation complete")
}

func TestAggregate_OtherMonthsCountAllDays(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}}
	rng := schedule.DateRange{StartYear: 2024, StartMonth: 5, EndYear: 2024, EndMonth: 7}
	report := &batch.Report{Results: []schedule.FetchResult{
		success(1, 2024, 5, entry("2024-05-01", schedule.StatusBooking), entry("2024-05-31", schedule.StatusBooking)),
		success(1, 2024, 7, entry("2024-07-01", schedule.StatusDisabled), entry("2024-07-02", "available")),
	}}

	agg := NewAggregator(zerolog.Nop()).Aggregate(report, roster, rng, refDate(2024, time.June, 15))

	row, ok := agg.Room(1, "A")
	require.True(t, ok)
	assert.Equal(t, 2, row.Count(schedule.YearMonth{Year: 2024, Month: 5}))
	assert.Equal(t, 0, row.Count(schedule.YearMonth{Year: 2024, Month: 6}))
	assert.Equal(t, 1, row.Count(schedule.YearMonth{Year: 2024, Month: 7}))
	assert.Equal(t, 3, row.Total())
	assert.Len(t, agg.Months, 3)
}

func TestAggregate_ReservedStatusFilter(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}}
	report := &batch.Report{Results: []schedule.FetchResult{
		success(1, 2024, 6,
			entry("2024-06-20", schedule.StatusBooking),
			entry("2024-06-21", schedule.StatusDisabled),
			entry("2024-06-22", "available"),
			entry("2024-06-23", "blocked"),
			entry("2024-06-24", "booked"),
			entry("2024-06-25", "mystery"),
		),
	}}

	agg := NewAggregator(zerolog.Nop()).Aggregate(report, roster, june2024, refDate(2024, time.January, 1))

	assert.Equal(t, 2, agg.ReservedDays())
}

func TestAggregate_RosterRowsWithoutResults(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}, {ID: 2, Label: "B"}, {ID: 3, Label: "C"}}
	empty := schedule.DateRange{StartYear: 2024, StartMonth: 6, EndYear: 2024, EndMonth: 1}

	agg := NewAggregator(zerolog.Nop()).Aggregate(&batch.Report{}, roster, empty, refDate(2024, time.June, 1))

	require.Len(t, agg.Rows, 3)
	for i, row := range agg.Rows {
		assert.Equal(t, roster[i].ID, row.RoomID)
		assert.Equal(t, roster[i].Label, row.Label)
		assert.Zero(t, row.Total())
	}
	assert.Empty(t, agg.Months)
}

func TestAggregate_DiscardsForeignAndFailedResults(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}}
	failed := success(1, 2024, 6, entry("2024-06-20", schedule.StatusBooking))
	failed.Outcome = schedule.HTTPFailure(500)

	report := &batch.Report{Results: []schedule.FetchResult{
		success(99, 2024, 6, entry("2024-06-20", schedule.StatusBooking)),
		failed,
		{RoomID: 1, Year: 2024, Month: 6, Outcome: schedule.AuthFailure(403, "session expired")},
	}}

	agg := NewAggregator(zerolog.Nop()).Aggregate(report, roster, june2024, refDate(2024, time.January, 1))

	require.Len(t, agg.Rows, 1)
	assert.Zero(t, agg.ReservedDays())
	_, ok := agg.Room(99, "")
	assert.False(t, ok)
}

func TestAggregate_MalformedDates(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}}
	report := &batch.Report{Results: []schedule.FetchResult{
		success(1, 2024, 6,
			entry("not-a-date", schedule.StatusBooking),
			entry("2024/06/01", schedule.StatusDisabled),
			entry("2024-06-20", schedule.StatusBooking),
		),
	}}
	ref := refDate(2024, time.June, 15)
	june := schedule.YearMonth{Year: 2024, Month: 6}

	lenient := NewAggregator(zerolog.Nop()).Aggregate(report, roster, june2024, ref)
	assert.Equal(t, 3, lenient.Rows[0].Count(june), "malformed dates count toward the result's month")

	strict := NewAggregator(zerolog.Nop(), WithStrictDates()).Aggregate(report, roster, june2024, ref)
	assert.Equal(t, 1, strict.Rows[0].Count(june))
}

func TestAggregate_DuplicateDatesDoubleCount(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}}
	report := &batch.Report{Results: []schedule.FetchResult{
		success(1, 2024, 6, entry("2024-06-20", schedule.StatusBooking), entry("2024-06-20", schedule.StatusBooking)),
	}}

	agg := NewAggregator(zerolog.Nop()).Aggregate(report, roster, june2024, refDate(2023, time.January, 1))

	assert.Equal(t, 2, agg.ReservedDays())
}

func TestAggregate_DuplicateRosterEntries(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}, {ID: 1, Label: "A"}, {ID: 1, Label: "Alias"}}
	report := &batch.Report{Results: []schedule.FetchResult{
		success(1, 2024, 6, entry("2024-06-20", schedule.StatusBooking)),
	}}

	agg := NewAggregator(zerolog.Nop()).Aggregate(report, roster, june2024, refDate(2023, time.January, 1))

	require.Len(t, agg.Rows, 2)
	first, _ := agg.Room(1, "A")
	alias, _ := agg.Room(1, "Alias")
	assert.Equal(t, 1, first.Total())
	assert.Equal(t, 0, alias.Total())
}

func TestAggregate_Idempotent(t *testing.T) {
	roster := []schedule.Room{{ID: 1, Label: "A"}, {ID: 2, Label: "B"}}
	rng := schedule.DateRange{StartYear: 2024, StartMonth: 5, EndYear: 2024, EndMonth: 6}
	report := &batch.Report{Results: []schedule.FetchResult{
		success(1, 2024, 5, entry("2024-05-03", schedule.StatusBooking)),
		success(2, 2024, 6, entry("2024-06-20", schedule.StatusDisabled), entry("bad", schedule.StatusBooking)),
	}}
	ref := refDate(2024, time.June, 15)
	aggregator := NewAggregator(zerolog.Nop())

	first := aggregator.Aggregate(report, roster, rng, ref)
	second := aggregator.Aggregate(report, roster, rng, ref)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.MonthTotal(schedule.YearMonth{Year: 2024, Month: 5}))
	assert.Equal(t, 2, first.MonthTotal(schedule.YearMonth{Year: 2024, Month: 6}))
}

func TestAggregate_NilReport(t *testing.T) {
	roster := []schedule.Room{{ID: 5, Label: "E"}}

	agg := NewAggregator(zerolog.Nop()).Aggregate(nil, roster, june2024, refDate(2024, time.June, 1))

	require.Len(t, agg.Rows, 1)
	assert.Zero(t, agg.ReservedDays())
}
