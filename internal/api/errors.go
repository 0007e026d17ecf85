package api

import (
	"crypto/rand"
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/privacy"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(reason, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:         reason,
		Message:       message,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for matching a
// response to its log line.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	limit := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			b[i] = charset[i%len(charset)]
			continue
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// statusFor maps an error category to an HTTP status code.
func statusFor(err error) int {
	switch errors.CategoryOf(err) {
	case errors.CategoryDecode, errors.CategoryValidation, errors.CategoryInvalidCoordinates:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// HandleError logs err with a correlation id and writes the error body.
// Server errors get the generic message as reason so internals are not
// leaked to clients.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	reason := message
	if err != nil && code < http.StatusInternalServerError {
		reason = err.Error()
	}
	return s.writeError(c, err, reason, message, code)
}

func (s *Server) writeError(c echo.Context, err error, reason, message string, code int) error {
	resp := NewErrorResponse(reason, message)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("reason", reason),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.String("ip", c.RealIP()),
	}
	if err != nil {
		fields = append(fields,
			logger.String("error", privacy.ScrubMessage(err.Error())),
			logger.String("category", string(errors.CategoryOf(err))))
	}
	log := s.log.WithContext(c.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Warn("API error", fields...)
	}

	return c.JSON(code, resp)
}
