package middleware

import (
	"net/http"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/gin-gonic/gin"
	"golang.org/x/exp/slog"
)

// Error codes produced by middleware
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
)

// ErrorBody is the JSON error envelope
func ErrorBody(code, message string, details map[string]interface{}) gin.H {
	body := gin.H{"code": code, "message": message}
	if len(details) > 0 {
		body["details"] = details
	}
	return gin.H{"error": body}
}

// RespondError writes err as the JSON error envelope and aborts the request.
// Persistence failures are logged and reported with a generic message.
func RespondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	status := appErr.Status()
	message := appErr.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed",
			"requestId", c.GetString(RequestIDKey),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, ErrorBody(appErr.Code(), message, appErr.Details()))
}
