package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqr-backend/internal/shared/telemetry"
)

// Error codes returned in ErrorBody.Code.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeFileTooLarge = "FILE_TOO_LARGE"
	CodeNotFound     = "NOT_FOUND"
	CodeFileNotFound = "FILE_NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeBusy         = "BUSY"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL"
)

// ErrorBody is the error object every failing endpoint returns.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts the chain with status and an ErrorResponse. Server errors are
// logged at error level, client errors at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	requestID := c.GetString("requestId")

	ev := telemetry.Logger().Warn()
	if status >= http.StatusInternalServerError {
		ev = telemetry.Logger().Error()
	}
	ev = ev.Int("status", status).
		Str("code", code).
		Str("message", message).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("request_id", requestID)
	if userID := c.GetString("userId"); userID != "" {
		ev = ev.Str("user_id", userID)
	}
	ev.Msg("http.error")

	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	}})
}

// Unauthorized is the 401 every auth gate sends.
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid token", nil)
}
