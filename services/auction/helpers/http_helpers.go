package helpers

import (
	"fmt"
	"net/http"
	"strconv"

	"auction-server/internal/auctionerrors"
	"auction-server/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w: %v", auctionerrors.ErrInvalidInput, err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch auctionerrors.KindOf(err) {
	case auctionerrors.KindNotFound:
		return http.StatusNotFound, "resource not found"
	case auctionerrors.KindDuplicate:
		return http.StatusConflict, "resource already exists"
	case auctionerrors.KindStateConflict:
		return http.StatusConflict, "request conflicts with current state"
	case auctionerrors.KindInsufficientFunds:
		return http.StatusPaymentRequired, "insufficient funds"
	case auctionerrors.KindRateLimited:
		return http.StatusTooManyRequests, "bidding cooldown active"
	case auctionerrors.KindInvalidInput:
		return http.StatusBadRequest, "invalid request"
	case auctionerrors.KindUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes the mapped error. Server-side failures are reported
// with the generic message only, so storage details stay in the log.
func RespondError(c *gin.Context, err error) {
	status, message := MapErrorToHTTP(err)
	if status == http.StatusInternalServerError {
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, auctionerrors.ErrIO), message)
		return
	}
	utils.JSONError(c, status, err, message)
}

// ParseIDParam reads a positive int64 path parameter.
func ParseIDParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%s %q: %w", name, c.Param(name), auctionerrors.ErrInvalidInput)
	}
	return id, nil
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
