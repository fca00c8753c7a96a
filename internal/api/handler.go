package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/stayrate/occupancy-proxy/internal/errors"
	"github.com/stayrate/occupancy-proxy/internal/service"
	"github.com/stayrate/occupancy-proxy/pkg/batch"
	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/ratelimit"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sessionPreviewLen is how much of the session token GET /api/session shows.
const sessionPreviewLen = 10

// Handler handles API requests
type Handler struct {
	service       *service.Service
	sessionCookie string
	metrics       http.Handler
	logger        zerolog.Logger
}

// NewHandler creates a new API handler. The session token is read from the
// cookie named sessionCookie.
func NewHandler(svc *service.Service, sessionCookie string, metricsHandler http.Handler, logger zerolog.Logger) *Handler {
	if sessionCookie == "" {
		sessionCookie = "session"
	}
	return &Handler{
		service:       svc,
		sessionCookie: sessionCookie,
		metrics:       metricsHandler,
		logger:        logging.Component(logger, "api"),
	}
}

// reservationsResponse is the report plus the overall success flag.
type reservationsResponse struct {
	Success bool `json:"success"`
	*batch.Report
}

// Root returns the liveness banner
// GET /
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Room Crawler API가 정상적으로 실행 중입니다.",
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "API 서버가 정상 작동 중입니다.",
	})
}

// Metrics serves the Prometheus exposition
// GET /metrics
func (h *Handler) Metrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// GetSession reports whether a session cookie is present
// GET /api/session
func (h *Handler) GetSession(c *gin.Context) {
	session := h.session(c)
	if session == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"message": service.MsgNoSession,
			"session": nil,
		})
		return
	}

	preview := session
	if len(preview) > sessionPreviewLen {
		preview = preview[:sessionPreviewLen] + "..."
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "세션이 설정되어 있습니다.",
		"session": preview,
	})
}

// ValidateSession checks the session against the upstream
// POST /api/validate_session
func (h *Handler) ValidateSession(c *gin.Context) {
	session := h.session(c)
	if session == "" {
		c.JSON(http.StatusUnauthorized, service.SessionStatus{
			Valid:   false,
			Message: service.MsgNoSession,
		})
		return
	}

	status, err := h.service.ValidateSession(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetReservations collects the schedules of every requested room and month
// POST /api/reservations
func (h *Handler) GetReservations(c *gin.Context) {
	session := h.session(c)
	if session == "" {
		respondError(c, apperrors.NewUnauthorizedError(service.MsgNoSession))
		return
	}

	var req service.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	run, err := h.service.CollectReservations(c.Request.Context(), req, session)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservationsResponse{
		Success: run.Success(),
		Report:  run,
	})
}

// DownloadExcel renders the occupancy spreadsheet
// POST /api/download_excel
func (h *Handler) DownloadExcel(c *gin.Context) {
	session := h.session(c)
	if session == "" {
		respondError(c, apperrors.NewUnauthorizedError(service.MsgNoSession))
		return
	}

	var req service.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	wb, err := h.service.BuildWorkbook(c.Request.Context(), req, session)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(wb.Filename))
	c.Data(http.StatusOK, xlsxContentType, wb.Data)
}

func (h *Handler) session(c *gin.Context) string {
	session, err := c.Cookie(h.sessionCookie)
	if err != nil {
		return ""
	}
	return session
}

// respondError writes err as {"message", "code"} with the matching status.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeSessionExpired:
			status = http.StatusForbidden
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeUpstreamCooldown:
			status = http.StatusServiceUnavailable
			c.Header("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(appErr.RetryAfter)))
		}
		c.JSON(status, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    apperrors.ErrCodeInternal,
		"message": "예약률 데이터 수집 중 오류가 발생했습니다.",
	})
}
