// Package service wires the fetch, schedule, aggregate and render steps into
// the operations exposed over HTTP and the CLI.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/stayrate/occupancy-proxy/internal/errors"
	"github.com/stayrate/occupancy-proxy/pkg/batch"
	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/occupancy"
	"github.com/stayrate/occupancy-proxy/pkg/ratelimit"
	"github.com/stayrate/occupancy-proxy/pkg/report"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// User-facing messages.
const (
	MsgNoSession      = "세션이 설정되지 않았습니다."
	MsgSessionExpired = "세션이 만료되었습니다. 다시 로그인해주세요."
)

// sessionCheckRoomID is the room fetched to check a session.
const sessionCheckRoomID = 1

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Scheduler  *batch.Scheduler
	Aggregator *occupancy.Aggregator
	Renderer   *report.Renderer

	// Validator fetches the session-check schedule for ValidateSession. It is
	// usually a client with a shorter timeout than the scheduler's.
	Validator schedule.Fetcher

	// Guard is optional.
	Guard *ratelimit.Guard
}

// Workbook is a rendered report ready for download.
type Workbook struct {
	Filename string
	Data     []byte
	Report   *batch.Report
	Summary  report.Summary
}

// SessionStatus is the result of ValidateSession.
type SessionStatus struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Service runs reservation collections. Each call is independent; the
// Service keeps no per-request state.
type Service struct {
	deps     Dependencies
	location *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a new service. Reference dates are taken in location.
func New(deps Dependencies, location *time.Location, logger zerolog.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		deps:     deps,
		location: location,
		logger:   logging.Component(logger, "service"),
		now:      time.Now,
	}
}

// Now returns the current time in the service's time zone.
func (s *Service) Now() time.Time {
	return s.now().In(s.location)
}

// CollectReservations fetches every (room, month) schedule of req.
// A partial failure is not an error: it is reported in the returned Report.
func (s *Service) CollectReservations(ctx context.Context, req ReservationRequest, session string) (*batch.Report, error) {
	if session == "" {
		return nil, apperrors.NewUnauthorizedError(MsgNoSession)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if allowed, wait := s.deps.Guard.Allow(ctx); !allowed {
		return nil, apperrors.NewUpstreamCooldownError(wait)
	}

	run := s.deps.Scheduler.Run(ctx, req.Rooms, req.DateRange, session)

	if _, err := s.deps.Guard.Observe(ctx, run.Results); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to record upstream cooldown")
	}

	return run, nil
}

// BuildWorkbook collects req and renders the occupancy spreadsheet. It fails
// with SESSION_EXPIRED when any fetch was rejected by the upstream.
func (s *Service) BuildWorkbook(ctx context.Context, req ReservationRequest, session string) (*Workbook, error) {
	run, err := s.CollectReservations(ctx, req, session)
	if err != nil {
		return nil, err
	}

	if run.HasAuthFailure() {
		s.logger.Warn().Str("run_id", run.RunID).Msg("Session rejected during collection - no workbook")
		return nil, apperrors.NewSessionExpiredError(MsgSessionExpired, schedule.ErrSessionRejected)
	}

	now := s.Now()
	agg := s.deps.Aggregator.Aggregate(run, req.Rooms, req.DateRange, now)

	data, err := s.deps.Renderer.Bytes(agg, run, now)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", run.RunID).Msg("Failed to render workbook")
		return nil, apperrors.NewInternalError("엑셀 다운로드 중 오류가 발생했습니다.", err)
	}

	return &Workbook{
		Filename: report.Filename(req.DateRange, now),
		Data:     data,
		Report:   run,
		Summary:  report.Summarize(agg, run, now),
	}, nil
}

// ValidateSession checks a session by fetching one schedule for the current
// month. Any failure makes the session invalid.
func (s *Service) ValidateSession(ctx context.Context, session string) (SessionStatus, error) {
	if session == "" {
		return SessionStatus{}, apperrors.NewUnauthorizedError(MsgNoSession)
	}

	now := s.Now()
	result := s.deps.Validator.Fetch(ctx, schedule.WorkItem{
		RoomID: sessionCheckRoomID,
		Year:   now.Year(),
		Month:  int(now.Month()),
	}, session)

	status := sessionStatus(result)
	s.logger.Info().
		Bool("valid", status.Valid).
		Str("outcome", string(result.Outcome.Kind)).
		Int("status_code", result.Outcome.StatusCode).
		Msg("Session validated")

	return status, nil
}

func sessionStatus(result schedule.FetchResult) SessionStatus {
	switch result.Outcome.Kind {
	case schedule.OutcomeAuthFailure:
		return SessionStatus{Valid: false, Message: "세션이 만료되었거나 유효하지 않습니다."}
	case schedule.OutcomeHTTPFailure:
		return SessionStatus{Valid: false, Message: fmt.Sprintf("세션 검증 중 오류 발생 (코드: %d)", result.ErrorCode())}
	case schedule.OutcomeTransportFailure:
		return SessionStatus{Valid: false, Message: "세션 검증 중 오류 발생: " + result.Outcome.Message}
	}

	if result.ApplicationErrorCode() == 10 {
		return SessionStatus{Valid: false, Message: "세션이 유효하지 않습니다. (error_code: 10)"}
	}
	return SessionStatus{Valid: true, Message: "세션이 유효합니다."}
}
