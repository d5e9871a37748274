package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	appointmentdomain "github.com/doorbellhq/doorbell/internal/appointment/domain"
	calendardomain "github.com/doorbellhq/doorbell/internal/calendar/domain"
	persondomain "github.com/doorbellhq/doorbell/internal/person/domain"
	stagedomain "github.com/doorbellhq/doorbell/internal/stage/domain"
	taskdomain "github.com/doorbellhq/doorbell/internal/task/domain"
	trackingdomain "github.com/doorbellhq/doorbell/internal/tracking/domain"
	trackingscriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTenantRequired     = errors.New("tenant_required")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, trackingscriptdomain.ErrInvalidScriptKey):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, trackingdomain.ErrTrackingDisabled):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, stagedomain.ErrNoStageAvailable):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limited",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrTenantRequired):
		return true
	case errors.Is(err, trackingdomain.ErrInvalidTenant),
		errors.Is(err, trackingdomain.ErrInvalidID),
		errors.Is(err, trackingdomain.ErrEventTypeNotAllowed):
		return true
	case errors.Is(err, trackingscriptdomain.ErrInvalidTenant),
		errors.Is(err, trackingscriptdomain.ErrInvalidID),
		errors.Is(err, trackingscriptdomain.ErrInvalidName):
		return true
	case errors.Is(err, persondomain.ErrInvalidTenant),
		errors.Is(err, persondomain.ErrInvalidID),
		errors.Is(err, persondomain.ErrMissingContact),
		errors.Is(err, persondomain.ErrMissingName):
		return true
	case errors.Is(err, stagedomain.ErrInvalidTenant),
		errors.Is(err, stagedomain.ErrInvalidName):
		return true
	case errors.Is(err, appointmentdomain.ErrInvalidTenant),
		errors.Is(err, appointmentdomain.ErrInvalidID),
		errors.Is(err, appointmentdomain.ErrInvalidTitle),
		errors.Is(err, appointmentdomain.ErrInvalidTime):
		return true
	case errors.Is(err, taskdomain.ErrInvalidTenant),
		errors.Is(err, taskdomain.ErrInvalidID),
		errors.Is(err, taskdomain.ErrInvalidTitle),
		errors.Is(err, taskdomain.ErrInvalidDueAt),
		errors.Is(err, taskdomain.ErrInvalidPriority):
		return true
	case errors.Is(err, calendardomain.ErrInvalidTenant),
		errors.Is(err, calendardomain.ErrInvalidID),
		errors.Is(err, calendardomain.ErrInvalidProvider),
		errors.Is(err, calendardomain.ErrInvalidEmail):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, trackingscriptdomain.ErrNotFound),
		errors.Is(err, persondomain.ErrNotFound),
		errors.Is(err, appointmentdomain.ErrNotFound),
		errors.Is(err, taskdomain.ErrNotFound),
		errors.Is(err, calendardomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrTenantRequired):
		return "tenant_required"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "missing_") {
		return strings.TrimPrefix(code, "missing_")
	}
	switch code {
	case "invalid_request", "tenant_required":
		return "request"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "tenant_required":
		return "tenant header is required"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog buckets handler errors for the request log without
// leaking internals.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", payload.Type
	case status == http.StatusTooManyRequests:
		return "rate_limited", payload.Type
	default:
		return "client", payload.Type
	}
}
