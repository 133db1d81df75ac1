package apperrors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusByCode maps error codes to HTTP statuses.
var statusByCode = map[string]int{
	CodeValidation:        http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeInvalidTransition: http.StatusConflict,
	CodeReferential:       http.StatusConflict,
	CodeLockTimeout:       http.StatusServiceUnavailable,
	CodeRateLimited:       http.StatusTooManyRequests,
	CodeCorruptData:       http.StatusInternalServerError,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeInternal:          http.StatusInternalServerError,
}

// Respond sends the error as a JSON response with the status for its code.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = New(CodeInternal, "internal server error")
	}
	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": appErr})
}

// Unauthorized sends a 401 response.
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": New(CodeUnauthorized, "%s", message)})
}

// BadRequest sends a 400 response for malformed request bodies.
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request body"
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": New(CodeValidation, "%s", message)})
}
