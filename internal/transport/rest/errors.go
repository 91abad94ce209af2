package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Message    string                  `json:"message"`
	Violations []domain.FieldViolation `json:"violations,omitempty"`
	RequestID  string                  `json:"requestId,omitempty"`
}

// statusFor сопоставляет ошибку сервиса HTTP-статусу.
func statusFor(err error) int {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsVersionConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusFor(err)
	resp := ErrorResponse{
		Message:   err.Error(),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}

	var (
		httpErr       *echo.HTTPError
		validationErr *domain.ValidationError
	)
	switch {
	case errors.As(err, &httpErr):
		resp.Message = fmt.Sprint(httpErr.Message)
	case errors.As(err, &validationErr):
		resp.Message = domain.ErrValidation.Error()
		resp.Violations = validationErr.Violations
	case status == http.StatusInternalServerError:
		// Внутренние детали наружу не отдаём.
		s.logger.WithError(err).WithFields(log.Fields{
			"method":     c.Request().Method,
			"route":      c.Path(),
			"request_id": resp.RequestID,
		}).Error("request failed")
		resp.Message = http.StatusText(http.StatusInternalServerError)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, resp)
	}
	if writeErr != nil {
		s.logger.WithError(writeErr).Warn("failed to write error response")
	}
}
