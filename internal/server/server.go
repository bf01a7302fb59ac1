// Package server exposes subtitle processing over HTTP and progress over websockets.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/progress"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// Version is reported by /health
var Version = "dev"

// Server wraps the echo instance
type Server struct {
	echo      *echo.Echo
	subtitles subtitle.Service
	hub       *progress.Hub
	logger    *slog.Logger
}

// New builds the router
func New(subtitles subtitle.Service, hub *progress.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		echo:      echo.New(),
		subtitles: subtitles,
		hub:       hub,
		logger:    logging.WithComponent(logger, "http"),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String())
			return nil
		},
	}))

	s.echo.GET("/health", s.health)

	api := s.echo.Group("/api")
	api.POST("/talks/:talkID/subtitles", s.startProcessing)
	api.GET("/talks/:talkID/subtitles/status", s.getStatus)
	api.GET("/talks/:talkID/subtitles/jobs", s.listJobs)
	api.POST("/talks/:talkID/subtitles/cancel", s.cancelProcessing)
	api.POST("/talks/:talkID/subtitles/translate-missing", s.translateMissing)
	api.GET("/talks/:talkID/subtitles/:lang", s.getSrt)
	api.POST("/subtitle-jobs/:jobID/retry", s.retryJob)

	s.echo.GET("/ws/subtitle-jobs/:jobID", s.progressSocket)
	return s
}

// Handler returns the router for tests and custom listeners
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr, "version", Version)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

type startRequest struct {
	VideoURL   string   `json:"video_url"`
	SourceType string   `json:"source_type"`
	Languages  []string `json:"languages"`
}

func (s *Server) startProcessing(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.New(apperrors.CodeValidation, "invalid request body")
	}
	if req.SourceType == "" {
		req.SourceType = string(model.SourceTypeDirect)
	}

	jobID, err := s.subtitles.StartProcessing(c.Request().Context(), c.Param("talkID"), req.VideoURL,
		model.SourceType(req.SourceType), req.Languages)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) getStatus(c echo.Context) error {
	status, err := s.subtitles.GetStatus(c.Request().Context(), c.Param("talkID"))
	if err != nil {
		return err
	}
	if status == nil {
		return apperrors.New(apperrors.CodeNotFound, "no subtitle job for this talk")
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) listJobs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	jobs, err := s.subtitles.ListJobs(c.Request().Context(), c.Param("talkID"), limit, offset)
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []*model.SubtitleJob{}
	}
	return c.JSON(http.StatusOK, jobs)
}

func (s *Server) cancelProcessing(c echo.Context) error {
	cancelled, err := s.subtitles.CancelProcessing(c.Request().Context(), c.Param("talkID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": cancelled})
}

type translateMissingRequest struct {
	TenantID  string   `json:"tenant_id"`
	Languages []string `json:"languages"`
}

func (s *Server) translateMissing(c echo.Context) error {
	var req translateMissingRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.New(apperrors.CodeValidation, "invalid request body")
	}
	n, err := s.subtitles.TranslateMissingLanguages(c.Request().Context(), c.Param("talkID"), req.TenantID, req.Languages)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"translated": n})
}

func (s *Server) getSrt(c echo.Context) error {
	content, ok, err := s.subtitles.GetSrtContent(c.Request().Context(), c.Param("talkID"), c.Param("lang"))
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "subtitles not available for this language")
	}
	return c.Blob(http.StatusOK, "application/x-subrip; charset=utf-8", []byte(content))
}

func (s *Server) retryJob(c echo.Context) error {
	n, err := s.subtitles.QueueRetry(c.Request().Context(), c.Param("jobID"))
	if err != nil {
		return err
	}
	status := http.StatusAccepted
	if n == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]any{
		"job_id":    c.Param("jobID"),
		"queued":    n > 0,
		"languages": n,
	})
}

func (s *Server) progressSocket(c echo.Context) error {
	if s.hub == nil {
		return apperrors.New(apperrors.CodeNotFound, "progress updates are not available")
	}
	if err := s.hub.ServeWS(c.Response(), c.Request(), c.Param("jobID")); err != nil {
		s.logger.Warn("websocket upgrade failed", logging.FieldJobID, c.Param("jobID"), "error", err)
	}
	return nil
}

// handleError renders AppErrors and echo errors as JSON
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"

	var httpErr *echo.HTTPError
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	case errors.As(err, &appErr):
		status = statusForCode(appErr.Code)
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "uri", c.Request().RequestURI, "error", err)
	}

	body := map[string]string{"error": message}
	if code := apperrors.CodeOf(err); code != "" {
		body["code"] = code
	}
	if err := c.JSON(status, body); err != nil {
		s.logger.Error("failed to write error response", "error", err)
	}
}

func statusForCode(code string) int {
	switch code {
	case apperrors.CodeValidation, apperrors.CodeInvalidArg:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeDependency:
		return http.StatusUnprocessableEntity
	case apperrors.CodeTransport, apperrors.CodeMalformed, apperrors.CodeEmptyResult, apperrors.CodeExternal:
		return http.StatusBadGateway
	case apperrors.CodeConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
