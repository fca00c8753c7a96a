package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/stayrate/occupancy-proxy/pkg/batch"
	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/occupancy"
)

// Sheet layout.
const (
	SheetName = "월별 예약률"

	// DefaultDetailURLBase prefixes the room id in the URL column.
	DefaultDetailURLBase = "https://33m2.co.kr/room/detail/"

	maxColumnWidth = 20
)

// Renderer writes occupancy spreadsheets.
type Renderer struct {
	detailURLBase string
	logger        zerolog.Logger
}

// NewRenderer creates a renderer. An empty detailURLBase uses
// DefaultDetailURLBase.
func NewRenderer(detailURLBase string, logger zerolog.Logger) *Renderer {
	if detailURLBase == "" {
		detailURLBase = DefaultDetailURLBase
	}
	return &Renderer{
		detailURLBase: detailURLBase,
		logger:        logging.Component(logger, "renderer"),
	}
}

// DetailURL returns the listing page of a room.
func (r *Renderer) DetailURL(roomID int64) string {
	return r.detailURLBase + strconv.FormatInt(roomID, 10)
}

// Render builds the workbook: a header row, one row per room, a totals row
// and a summary block.
func (r *Renderer) Render(agg *occupancy.Aggregate, run *batch.Report, generatedAt time.Time) (*excelize.File, error) {
	summary := Summarize(agg, run, generatedAt)

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	w := &sheetWriter{file: f, sheet: SheetName, widths: make(map[int]int)}
	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	rateCol := len(summary.Months) + 3
	urlCol := rateCol + 1

	// header
	headers := []any{"방 ID", "방 이름"}
	for _, ym := range summary.Months {
		headers = append(headers, MonthLabel(ym))
	}
	headers = append(headers, "예약률", "URL")
	for i, h := range headers {
		w.set(i+1, 1, h)
	}
	w.style(1, 1, urlCol, 1, styles.header)

	// rooms
	row := 2
	for _, line := range summary.Rooms {
		w.set(1, row, line.RoomID)
		w.set(2, row, line.Label)
		for i, n := range line.Counts {
			w.set(i+3, row, n)
		}
		w.set(rateCol, row, line.Rate)
		w.set(urlCol, row, r.DetailURL(line.RoomID))
		row++
	}

	// totals
	row++
	w.set(1, row, "총 예약률")
	for i, n := range summary.MonthTotals {
		w.set(i+3, row, n)
	}
	w.set(rateCol, row, summary.Rate)
	w.set(urlCol, row, "")
	w.style(1, row, 1, row, styles.total)
	if len(summary.Months) > 0 {
		w.style(3, row, rateCol, row, styles.totalCentered)
	} else {
		w.style(rateCol, row, rateCol, row, styles.totalCentered)
	}
	w.style(urlCol, row, urlCol, row, styles.total)

	// summary block
	row += 2
	pairs := [][2]any{
		{"생성 시간", summary.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"조회 기간", summary.PeriodLabel()},
		{"총 방 수", summary.RoomCount},
		{"총 요청 수", summary.TotalRequests},
		{"성공 요청", summary.Completed},
		{"실패 요청", summary.Failed},
		{"총 예약 일수", summary.ReservedDays},
		{"총 가능 일수", summary.PossibleDays},
	}
	for _, p := range pairs {
		w.set(1, row, p[0])
		w.set(2, row, p[1])
		w.style(1, row, 1, row, styles.bold)
		row++
	}

	w.applyWidths()
	if w.err != nil {
		f.Close()
		return nil, w.err
	}

	r.logger.Debug().
		Int("rooms", summary.RoomCount).
		Int("months", len(summary.Months)).
		Int("reserved_days", summary.ReservedDays).
		Int("possible_days", summary.PossibleDays).
		Msg("Workbook rendered")

	return f, nil
}

// Bytes renders the workbook and returns the xlsx file contents.
func (r *Renderer) Bytes(agg *occupancy.Aggregate, run *batch.Report, generatedAt time.Time) ([]byte, error) {
	f, err := r.Render(agg, run, generatedAt)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type styleSet struct {
	header        int
	total         int
	totalCentered int
	bold          int
}

func newStyles(f *excelize.File) (styleSet, error) {
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	totalFont := &excelize.Font{Bold: true, Size: 12}
	totalFill := excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E6F3FF"}}

	var (
		s   styleSet
		err error
	)
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: center,
	}); err != nil {
		return styleSet{}, fmt.Errorf("create header style: %w", err)
	}
	if s.total, err = f.NewStyle(&excelize.Style{Font: totalFont, Fill: totalFill}); err != nil {
		return styleSet{}, fmt.Errorf("create total style: %w", err)
	}
	if s.totalCentered, err = f.NewStyle(&excelize.Style{Font: totalFont, Fill: totalFill, Alignment: center}); err != nil {
		return styleSet{}, fmt.Errorf("create total style: %w", err)
	}
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return styleSet{}, fmt.Errorf("create label style: %w", err)
	}
	return s, nil
}

// sheetWriter keeps the first error and tracks column widths.
type sheetWriter struct {
	file   *excelize.File
	sheet  string
	widths map[int]int
	err    error
}

func (w *sheetWriter) set(col, row int, value any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.file.SetCellValue(w.sheet, cell, value); err != nil {
		w.err = fmt.Errorf("set %s: %w", cell, err)
		return
	}

	n := utf8.RuneCountInString(strings.TrimSpace(fmt.Sprint(value)))
	if n > w.widths[col] {
		w.widths[col] = n
	}
}

func (w *sheetWriter) style(fromCol, fromRow, toCol, toRow, styleID int) {
	if w.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		w.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		w.err = err
		return
	}
	if err := w.file.SetCellStyle(w.sheet, from, to, styleID); err != nil {
		w.err = fmt.Errorf("style %s:%s: %w", from, to, err)
	}
}

func (w *sheetWriter) applyWidths() {
	for col, n := range w.widths {
		if w.err != nil {
			return
		}
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			w.err = err
			return
		}
		width := float64(min(n+2, maxColumnWidth))
		if err := w.file.SetColWidth(w.sheet, name, name, width); err != nil {
			w.err = fmt.Errorf("set width %s: %w", name, err)
		}
	}
}
