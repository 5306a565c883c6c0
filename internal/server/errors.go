package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	"github.com/smallbiznis/atelier/internal/assetstore"
	"github.com/smallbiznis/atelier/internal/auth"
	"github.com/smallbiznis/atelier/internal/authorization"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"github.com/smallbiznis/atelier/internal/orchestrator"
	"github.com/smallbiznis/atelier/internal/pipeline"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
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
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Retryable *bool             `json:"retryable,omitempty"`

	// Set for failed pipeline stages.
	Stage       string `json:"stage,omitempty"`
	Reason      string `json:"reason,omitempty"`
	AccruedCost *int64 `json:"accrued_cost,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrBodyTooLarge   = errors.New("request_too_large")
	ErrInternal       = errors.New("internal_error")
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

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Message
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

	if stageErr, ok := pipeline.AsStageError(err); ok {
		return mapStageError(stageErr)
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
					Message: validationErrorMessage(err),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "request_too_large",
			Message: "request body too large",
		}
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, orchestrator.ErrAccountInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "account_inactive",
			Message: "account is not active",
		}
	case errors.Is(err, orchestrator.ErrFeatureNotAllowed):
		return http.StatusForbidden, errorPayload{
			Type:    "feature_not_allowed",
			Message: "feature not allowed for this account",
		}
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, ledgerdomain.ErrForbidden),
		errors.Is(err, historydomain.ErrAccessDenied),
		errors.Is(err, assetstore.ErrSignatureInvalid),
		errors.Is(err, assetstore.ErrURLExpired):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, orchestrator.ErrInsufficientBalance),
		errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_balance",
			Message: "insufficient token balance",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, accountdomain.ErrEmailTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "email already registered",
		}
	case errors.Is(err, ratelimit.ErrSessionBusy):
		return http.StatusConflict, errorPayload{
			Type:      "session_busy",
			Message:   "another turn is running in this session",
			Retryable: boolPtr(true),
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:      "rate_limited",
			Message:   "too many requests",
			Retryable: boolPtr(true),
		}
	case errors.Is(err, orchestrator.ErrStorageFailure),
		errors.Is(err, assetstore.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "storage_failure",
			Message:   "artifact storage unavailable",
			Retryable: boolPtr(true),
		}
	case errors.Is(err, orchestrator.ErrBilledInconsistency),
		errors.Is(err, ledgerdomain.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "ledger_unavailable",
			Message:   "ledger unavailable",
			Retryable: boolPtr(false),
		}
	case errors.Is(err, orchestrator.ErrPipelineFailed):
		return http.StatusBadGateway, errorPayload{
			Type:      "pipeline_failed",
			Message:   "pipeline produced no usable output",
			Retryable: boolPtr(false),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// mapStageError reports the failing stage with the cost it had already consumed.
func mapStageError(se *pipeline.StageError) (int, errorPayload) {
	accrued := se.AccruedCost
	payload := errorPayload{
		Type:        "pipeline_failed",
		Message:     "pipeline stage " + se.Stage + " failed",
		Stage:       se.Stage,
		Reason:      string(se.Reason),
		AccruedCost: &accrued,
	}
	switch se.Reason {
	case pipeline.ReasonRateLimited:
		payload.Retryable = boolPtr(true)
		return http.StatusTooManyRequests, payload
	case pipeline.ReasonTimeout:
		payload.Retryable = boolPtr(true)
		return http.StatusGatewayTimeout, payload
	case pipeline.ReasonUnavailable:
		payload.Retryable = boolPtr(true)
		return http.StatusBadGateway, payload
	default:
		payload.Retryable = boolPtr(false)
		return http.StatusBadGateway, payload
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
		errors.Is(err, orchestrator.ErrInvalidAction),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, assetstore.ErrInvalidKey):
		return true
	case isAccountValidationError(err),
		isLedgerValidationError(err),
		isHistoryValidationError(err):
		return true
	default:
		return false
	}
}

func isAccountValidationError(err error) bool {
	return errors.Is(err, accountdomain.ErrInvalidID) ||
		errors.Is(err, accountdomain.ErrInvalidEmail) ||
		errors.Is(err, accountdomain.ErrInvalidRole) ||
		errors.Is(err, accountdomain.ErrInvalidGrant)
}

func isLedgerValidationError(err error) bool {
	return errors.Is(err, ledgerdomain.ErrInvalidAccount) ||
		errors.Is(err, ledgerdomain.ErrInvalidAmount) ||
		errors.Is(err, ledgerdomain.ErrInvalidFeature)
}

func isHistoryValidationError(err error) bool {
	return errors.Is(err, historydomain.ErrInvalidSession) ||
		errors.Is(err, historydomain.ErrInvalidMode) ||
		errors.Is(err, historydomain.ErrInvalidRole) ||
		errors.Is(err, historydomain.ErrEmptyContent)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, ledgerdomain.ErrAccountNotFound),
		errors.Is(err, artifactdomain.ErrNotFound),
		errors.Is(err, historydomain.ErrSessionNotFound),
		errors.Is(err, assetstore.ErrObjectNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// validationErrorCode picks the innermost sentinel name, e.g. "invalid_action".
func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, orchestrator.ErrInvalidAction):
		return orchestrator.ErrInvalidAction.Error()
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return pagination.ErrInvalidPageToken.Error()
	default:
		code, _, _ := strings.Cut(err.Error(), ":")
		return code
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(err error) string {
	if _, detail, ok := strings.Cut(err.Error(), ": "); ok && detail != "" {
		return detail
	}
	return "invalid value"
}

func boolPtr(v bool) *bool {
	return &v
}
