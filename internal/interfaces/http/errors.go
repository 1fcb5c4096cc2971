package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Error codes returned in Response.Code
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotAuthorized     = "NOT_AUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeNoPendingApproval = "NO_PENDING_APPROVAL"
	CodeInvalidState      = "INVALID_STATE"
	CodeInternal          = "INTERNAL_ERROR"
)

// classifyError maps a domain error onto an HTTP status and error code
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrInvalidAmount):
		return http.StatusBadRequest, CodeInvalidAmount
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, workflow.ErrNotAuthorized):
		return http.StatusForbidden, CodeNotAuthorized
	case errors.Is(err, entity.ErrUserNotFound),
		errors.Is(err, entity.ErrExpenseNotFound),
		errors.Is(err, entity.ErrRuleNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, workflow.ErrNoPendingApproval):
		return http.StatusConflict, CodeNoPendingApproval
	case errors.Is(err, workflow.ErrInvalidState):
		return http.StatusConflict, CodeInvalidState
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// respondError writes err as a JSON failure. Internal errors are logged and
// their detail is not exposed.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status, code := classifyError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   message,
		Code:    CodeValidation,
	})
}
