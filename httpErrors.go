package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/mmdatafocus/distribution_backend/utils"
	"gorm.io/gorm"
)

// errorResponse is the body every failed request returns.
type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Retryable bool              `json:"retryable,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	ProductId int               `json:"product_id,omitempty"`
	Available string            `json:"available,omitempty"`
	Required  string            `json:"required,omitempty"`
	Balance   string            `json:"balance,omitempty"`
}

// classifyError maps a domain error to its HTTP status and response body.
func classifyError(err error) (int, errorResponse) {
	var (
		transitionErr   *models.InvalidTransitionError
		inactiveErr     *models.InactiveProductError
		insufficientErr *models.InsufficientStockError
		exceedsErr      *models.ValueExceedsBalanceError
		validationErrs  validator.ValidationErrors
	)

	switch {
	case errors.As(err, &insufficientErr):
		return http.StatusConflict, errorResponse{
			Error:     err.Error(),
			Code:      "insufficient_stock",
			ProductId: insufficientErr.ProductId,
			Available: insufficientErr.Available.String(),
			Required:  insufficientErr.Required.String(),
		}
	case errors.As(err, &transitionErr):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "invalid_transition"}
	case errors.Is(err, models.ErrAlreadyFulfilled):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_fulfilled"}
	case errors.Is(err, models.ErrAlreadyValidated):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_validated"}
	case errors.Is(err, models.ErrAlreadyReversed):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_reversed"}
	case errors.Is(err, utils.ErrLockNotObtained):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "busy", Retryable: true}
	case errors.Is(err, utils.ErrDuplicateValue), utils.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "duplicate"}
	case errors.As(err, &exceedsErr):
		return http.StatusUnprocessableEntity, errorResponse{
			Error:   err.Error(),
			Code:    "value_exceeds_balance",
			Balance: exceedsErr.Balance.String(),
		}
	case errors.As(err, &inactiveErr):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "inactive_product", ProductId: inactiveErr.ProductId}
	case errors.Is(err, models.ErrInvalidSource):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "invalid_source"}
	case errors.Is(err, models.ErrUnknownUnit):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "unknown_unit"}
	case errors.Is(err, models.ErrUnknownProduct):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "unknown_product"}
	case errors.Is(err, models.ErrInactiveUnit):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "inactive_unit"}
	case errors.Is(err, models.ErrNotPayable):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "not_payable"}
	case errors.Is(err, models.ErrNotReversible):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "not_reversible"}
	case errors.Is(err, models.ErrNoChange):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "no_change"}
	case errors.As(err, &validationErrs):
		return http.StatusBadRequest, errorResponse{
			Error:  "validation failed",
			Code:   "validation",
			Fields: utils.ProcessValidationErrors(err),
		}
	case errors.Is(err, models.ErrReasonRequired),
		errors.Is(err, models.ErrReceiptRequired),
		errors.Is(err, models.ErrSameUnit),
		errors.Is(err, models.ErrReservedBatchLabel),
		errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, utils.ErrInvalidPhone):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation"}
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: err.Error(), Code: "forbidden"}
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorResponse{Error: "record not found", Code: "not_found"}
	case errors.Is(err, models.ErrStorageUnavailable), errors.Is(err, utils.ErrLockUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable, retry later", Code: "storage_unavailable", Retryable: true}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"}
}

// respondError writes the mapped response. Server-side failures are logged and attached to the
// gin context so customErrorLogger sees them.
func respondError(c *gin.Context, funcName string, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		config.LogError(config.GetLogger(), "server", funcName, c.FullPath(), nil, err)
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: message, Code: "bad_request"})
}
