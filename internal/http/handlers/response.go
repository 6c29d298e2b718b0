// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints: the error
// envelope, fail/ok/noContent, and failErr, which translates service and
// adapter errors into statuses and codes in one place.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recorder-backend/internal/export"
	"github.com/tbourn/go-recorder-backend/internal/http/middleware"
	"github.com/tbourn/go-recorder-backend/internal/ingest"
	"github.com/tbourn/go-recorder-backend/internal/services"
	"github.com/tbourn/go-recorder-backend/internal/sources/vendor"
	"github.com/tbourn/go-recorder-backend/internal/storage"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"recording not found"`
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// errorMapping pairs a sentinel with its HTTP translation. Order matters:
// the first match wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrRecordingNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrUserExists, http.StatusConflict, ErrCodeConflict},
	{services.ErrEmptyUpload, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrUploadTooLarge, http.StatusRequestEntityTooLarge, ErrCodeTooLarge},
	{services.ErrEmptyQuery, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrEmptyTranscription, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidLanguage, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidSettings, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrBlobUnavailable, http.StatusConflict, ErrCodeBlobUnavailable},
	{services.ErrBotDisabled, http.StatusConflict, ErrCodeBotDisabled},
	{export.ErrUnknownFormat, http.StatusBadRequest, ErrCodeBadRequest},
	{ingest.ErrNoVendorAccount, http.StatusConflict, ErrCodeVendorNotLinked},
	{vendor.ErrUnauthorized, http.StatusBadGateway, ErrCodeVendorUnauthorized},
	{vendor.ErrTransport, http.StatusBadGateway, ErrCodeUpstreamFailed},
	{storage.ErrInvalidConfig, http.StatusConflict, ErrCodeStorageFailed},
	{storage.ErrStorageFailure, http.StatusBadGateway, ErrCodeStorageFailed},
}

// failErr translates err into an error response; unknown errors are 500.
func failErr(c *gin.Context, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, err.Error())
			return
		}
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
