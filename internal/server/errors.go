package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/costbook/internal/auth"
	budgetdomain "github.com/smallbiznis/costbook/internal/budget/domain"
	clientdomain "github.com/smallbiznis/costbook/internal/client/domain"
	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
	pricetierdomain "github.com/smallbiznis/costbook/internal/pricetier/domain"
	"github.com/smallbiznis/costbook/pkg/db"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, budgetdomain.ErrSaveInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "save_in_progress",
			Message: "a save for this budget is already in progress",
		}
	case errors.Is(err, clientdomain.ErrClientInUse):
		return http.StatusConflict, errorPayload{
			Type:    "client_in_use",
			Message: "client is referenced by budgets",
		}
	case errors.Is(err, ErrConflict),
		db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code the request log records.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "internal", code
	}
	return "client", code
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
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isClientValidationError(err),
		isBudgetValidationError(err),
		isLineItemValidationError(err),
		isPricingValidationError(err):
		return true
	default:
		return false
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidSubject),
		errors.Is(err, auth.ErrNotConfigured),
		errors.Is(err, clientdomain.ErrInvalidOwner),
		errors.Is(err, budgetdomain.ErrInvalidOwner):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, budgetdomain.ErrNotFound),
		errors.Is(err, lineitemdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isClientValidationError(err error) bool {
	switch {
	case errors.Is(err, clientdomain.ErrInvalidName),
		errors.Is(err, clientdomain.ErrInvalidEmail),
		errors.Is(err, clientdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isBudgetValidationError(err error) bool {
	switch {
	case errors.Is(err, budgetdomain.ErrInvalidClient),
		errors.Is(err, budgetdomain.ErrInvalidID),
		errors.Is(err, budgetdomain.ErrInvalidImage),
		errors.Is(err, budgetdomain.ErrInvalidStartDate),
		errors.Is(err, budgetdomain.ErrInvalidStatus),
		errors.Is(err, budgetdomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}

func isLineItemValidationError(err error) bool {
	switch {
	case errors.Is(err, lineitemdomain.ErrInvalidVariant),
		errors.Is(err, lineitemdomain.ErrInvalidDescription),
		errors.Is(err, lineitemdomain.ErrInvalidUnit),
		errors.Is(err, lineitemdomain.ErrInvalidQuantity),
		errors.Is(err, lineitemdomain.ErrInvalidUnitPrice),
		errors.Is(err, lineitemdomain.ErrInvalidMOQ),
		errors.Is(err, lineitemdomain.ErrInvalidLeadTime):
		return true
	default:
		return false
	}
}

func isPricingValidationError(err error) bool {
	switch {
	case errors.Is(err, pricetierdomain.ErrInvalidTierCount),
		errors.Is(err, pricetierdomain.ErrInvalidMargin),
		errors.Is(err, pricetierdomain.ErrInvalidTier):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

var validationSentinels = []error{
	ErrInvalidRequest,
	clientdomain.ErrInvalidName,
	clientdomain.ErrInvalidEmail,
	clientdomain.ErrInvalidID,
	budgetdomain.ErrInvalidClient,
	budgetdomain.ErrInvalidID,
	budgetdomain.ErrInvalidImage,
	budgetdomain.ErrInvalidStartDate,
	budgetdomain.ErrInvalidStatus,
	budgetdomain.ErrInvalidTransition,
	lineitemdomain.ErrInvalidVariant,
	lineitemdomain.ErrInvalidDescription,
	lineitemdomain.ErrInvalidUnit,
	lineitemdomain.ErrInvalidQuantity,
	lineitemdomain.ErrInvalidUnitPrice,
	lineitemdomain.ErrInvalidMOQ,
	lineitemdomain.ErrInvalidLeadTime,
	pricetierdomain.ErrInvalidTierCount,
	pricetierdomain.ErrInvalidMargin,
	pricetierdomain.ErrInvalidTier,
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

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
