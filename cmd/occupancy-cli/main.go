// Command occupancy-cli runs an occupancy report from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stayrate/occupancy-proxy/internal/config"
	"github.com/stayrate/occupancy-proxy/internal/service"
	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/report"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

var (
	session    string
	outputJSON bool
	rooms      []string
	startMonth string
	endMonth   string
	outFile    string
)

var rootCmd = &cobra.Command{
	Use:   "occupancy-cli",
	Short: "Monthly room occupancy reports",
	Long: `A CLI tool for collecting room schedules from the booking site and
computing monthly occupancy rates.

The session token is taken from --session or the SESSION_TOKEN environment
variable.`,
	SilenceUsage: true,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Collect schedules and write the occupancy spreadsheet",
	Long:  `Fetch every room and month in the range, write the xlsx report and print a summary.`,
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check whether the session is still accepted",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&session, "session", "", "upstream session token")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	reportCmd.Flags().StringArrayVar(&rooms, "room", nil, "room as ID=Name (repeatable)")
	reportCmd.Flags().StringVar(&startMonth, "start", "", "first month (YYYY-MM)")
	reportCmd.Flags().StringVar(&endMonth, "end", "", "last month (YYYY-MM), defaults to --start")
	reportCmd.Flags().StringVar(&outFile, "out", "", "output file (default is a generated name)")
	_ = reportCmd.MarkFlagRequired("room")
	_ = reportCmd.MarkFlagRequired("start")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newService() (*service.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Pretty = true
	logger := logging.Setup(logCfg)

	return service.NewFromConfig(cfg, nil, logger)
}

func sessionToken() string {
	if session != "" {
		return session
	}
	return os.Getenv("SESSION_TOKEN")
}

func runReport(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(rooms, startMonth, endMonth)
	if err != nil {
		return err
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wb, err := svc.BuildWorkbook(ctx, req, sessionToken())
	if err != nil {
		return err
	}

	path := outFile
	if path == "" {
		path = wb.Filename
	}
	if err := os.WriteFile(path, wb.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(wb.Summary)
	}

	printSummary(out, wb.Summary)
	fmt.Fprintf(out, "\nWrote %s\n", path)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	status, err := svc.ValidateSession(cmd.Context(), sessionToken())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return json.NewEncoder(out).Encode(status)
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Valid", "Message"})
	table.Append([]string{strconv.FormatBool(status.Valid), status.Message})
	table.Render()
	return nil
}

// printSummary writes one row per room and the run totals.
func printSummary(w io.Writer, s report.Summary) {
	header := []string{"Room ID", "Room"}
	for _, ym := range s.Months {
		header = append(header, ym.Key())
	}
	header = append(header, "Rate")

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	for _, line := range s.Rooms {
		row := []string{strconv.FormatInt(line.RoomID, 10), line.Label}
		for _, n := range line.Counts {
			row = append(row, strconv.Itoa(n))
		}
		row = append(row, line.Rate)
		table.Append(row)
	}
	total := []string{"", "Total"}
	for _, n := range s.MonthTotals {
		total = append(total, strconv.Itoa(n))
	}
	total = append(total, s.Rate)
	table.SetFooter(total)
	table.Render()

	fmt.Fprintln(w)
	totals := tablewriter.NewWriter(w)
	totals.SetHeader([]string{"Metric", "Value"})
	totals.Append([]string{"Period", s.PeriodLabel()})
	totals.Append([]string{"Rooms", strconv.Itoa(s.RoomCount)})
	totals.Append([]string{"Requests", strconv.Itoa(s.TotalRequests)})
	totals.Append([]string{"Completed", strconv.Itoa(s.Completed)})
	totals.Append([]string{"Failed", strconv.Itoa(s.Failed)})
	totals.Append([]string{"Reserved days", strconv.Itoa(s.ReservedDays)})
	totals.Append([]string{"Possible days", strconv.Itoa(s.PossibleDays)})
	totals.Render()
}

func buildRequest(roomFlags []string, start, end string) (service.ReservationRequest, error) {
	var req service.ReservationRequest

	for _, raw := range roomFlags {
		room, err := parseRoom(raw)
		if err != nil {
			return req, err
		}
		req.Rooms = append(req.Rooms, room)
	}

	from, err := parseYearMonth(start)
	if err != nil {
		return req, fmt.Errorf("invalid --start: %w", err)
	}
	to := from
	if end != "" {
		if to, err = parseYearMonth(end); err != nil {
			return req, fmt.Errorf("invalid --end: %w", err)
		}
	}

	req.DateRange = schedule.DateRange{
		StartYear:  from.Year,
		StartMonth: from.Month,
		EndYear:    to.Year,
		EndMonth:   to.Month,
	}
	return req, req.Validate()
}

// parseRoom parses "ID=Name". The name may be omitted.
func parseRoom(raw string) (schedule.Room, error) {
	idPart, label, _ := strings.Cut(raw, "=")
	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil || id <= 0 {
		return schedule.Room{}, fmt.Errorf("invalid --room %q: want ID=Name", raw)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = strconv.FormatInt(id, 10)
	}
	return schedule.Room{ID: id, Label: label}, nil
}

// parseYearMonth parses "YYYY-MM".
func parseYearMonth(raw string) (schedule.YearMonth, error) {
	yearPart, monthPart, ok := strings.Cut(raw, "-")
	if !ok {
		return schedule.YearMonth{}, fmt.Errorf("%q is not YYYY-MM", raw)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || year <= 0 {
		return schedule.YearMonth{}, fmt.Errorf("%q is not YYYY-MM", raw)
	}
	month, err := strconv.Atoi(monthPart)
	if err != nil || month < 1 || month > 12 {
		return schedule.YearMonth{}, fmt.Errorf("%q is not YYYY-MM", raw)
	}
	return schedule.YearMonth{Year: year, Month: month}, nil
}
