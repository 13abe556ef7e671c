package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rentcore/internal/adapters/exports"
	"rentcore/internal/blob"
	"rentcore/internal/core"
	"rentcore/pkg/domain"
)

type documentsResponse struct {
	Documents []core.ScopedDocument `json:"documents"`
	Total     int                   `json:"total"`
}

type exportRequest struct {
	EntityID    string            `json:"entity_id"`
	Filters     map[string]string `json:"filters"`
	Formats     []string          `json:"formats"`
	RequestedBy string            `json:"requested_by"`
	Reason      string            `json:"reason"`
}

func scopeParam(c echo.Context) string {
	return strings.TrimSpace(c.QueryParam("entity_id"))
}

func (s *Server) handleTree(c echo.Context) error {
	forest, err := s.engine.BuildTree(c.Request().Context(), scopeParam(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, forest)
}

func (s *Server) handleDocuments(c echo.Context) error {
	predicate, err := core.ParsePredicate(c.QueryParams())
	if err != nil {
		return s.fail(c, err)
	}
	docs, err := s.engine.Search(c.Request().Context(), scopeParam(c), predicate)
	if err != nil {
		return s.fail(c, err)
	}
	if docs == nil {
		docs = []core.ScopedDocument{}
	}
	return c.JSON(http.StatusOK, documentsResponse{Documents: docs, Total: len(docs)})
}

func (s *Server) handleStats(c echo.Context) error {
	summary, err := s.engine.Stats(c.Request().Context(), scopeParam(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleDocumentURL(c echo.Context) error {
	expiry := s.urlExpiry
	if raw := c.QueryParam("expires"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "expires must be a positive duration"})
		}
		expiry = d
	}
	link, err := s.documents.DocumentURL(c.Request().Context(), c.Param("id"), expiry)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"url":        link,
		"expires_in": int(expiry.Seconds()),
	})
}

func (s *Server) handleExportCreate(c echo.Context) error {
	var req exportRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid export request payload"})
	}
	formats := make([]exports.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		formats = append(formats, exports.Format(f))
	}
	record, err := s.exports.Enqueue(c.Request().Context(), exports.Input{
		Scope:       req.EntityID,
		Filters:     req.Filters,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"export": record})
}

func (s *Server) handleExportGet(c echo.Context) error {
	record, ok := s.exports.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "export not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"export": record})
}

// fail renders err as a single error message with the matching status.
func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(c).Error("request failed", zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidPredicate), errors.Is(err, exports.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exports.ErrQueueFull), errors.Is(err, core.ErrNoBlobStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			log.Error("unhandled error", zap.Error(err))
		}
		if jsonErr := c.JSON(status, echo.Map{"error": message}); jsonErr != nil {
			log.Warn("write error response", zap.Error(jsonErr))
		}
	}
}
