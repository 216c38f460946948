package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/gin-gonic/gin"
)

var errTooManyRequests = errors.New("too many requests")

// statusFor maps a service error to an HTTP status and public message.
// Missing and foreign counters share the same 404 body.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, common.ErrTokenCreation):
		return http.StatusInternalServerError, "Token creation error"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest, "Invalid token"
	case errors.Is(err, common.ErrMissingCredentials):
		return http.StatusBadRequest, "Missing credentials"
	case errors.Is(err, common.ErrWrongCredentials):
		return http.StatusUnauthorized, "Wrong credentials"
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrExportDisabled):
		return http.StatusServiceUnavailable, "Export disabled"
	case errors.Is(err, errTooManyRequests):
		return http.StatusTooManyRequests, "Too many requests"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// abortWithError writes {"error": msg} and stops the handler chain.
// Server-side failures are logged with the request's logger.
func abortWithError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(c).Error(c.Request.Context(), "request failed", "error", err.Error())
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
