package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/coursehub/internal/apperr"
)

// APIError is the body of every failed response. Error is the
// human-readable message; the remaining keys are for programs.
type APIError struct {
	Error     string      `json:"error"`
	Code      string      `json:"code"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, APIError{
		Error:     message,
		Code:      code,
		RequestID: requestIDFrom(ctx),
		Details:   details,
	})
}

func RespondInvalidBody(ctx *gin.Context, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", "Invalid request body", details)
}

func RespondBadRequest(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusBadRequest, code, message, nil)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// RespondAppError renders err using its apperr kind. Errors without a kind
// are logged and reported as a generic 500.
func RespondAppError(ctx *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		slog.ErrorContext(ctx.Request.Context(), "unclassified error", "err", err)
		RespondInternal(ctx, "Something went wrong")
		return
	}

	if ae.Kind == apperr.Persistence && ae.Cause != nil {
		slog.ErrorContext(ctx.Request.Context(), "request failed", "code", ae.Kind.Code, "err", ae.Cause)
	}

	var details interface{}
	if len(ae.Fields) > 0 {
		details = gin.H{"fields": ae.Fields}
	}

	RespondError(ctx, ae.Kind.Status, ae.Kind.Code, ae.Message, details)
}
