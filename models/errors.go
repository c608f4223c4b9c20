package models

import (
	"errors"
	"fmt"

	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSource      = errors.New("order source must be an active HUB unit")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrAlreadyFulfilled   = errors.New("order already fulfilled")
	ErrUnknownUnit        = errors.New("unknown unit")
	ErrUnknownProduct     = errors.New("unknown product")
	ErrForbidden          = errors.New("actor is not allowed to perform this operation")
	ErrReasonRequired     = errors.New("a reason is required")
	ErrReceiptRequired    = errors.New("a receipt reference is required")
	ErrAlreadyValidated   = errors.New("settlement already validated")
	ErrNotPayable         = errors.New("order does not accept settlements")
	ErrSameUnit           = errors.New("source and target units must differ")
	ErrAlreadyReversed    = errors.New("movement already reversed")
	ErrNotReversible      = errors.New("movement cannot be reversed")
	ErrNoChange           = errors.New("quantity is unchanged")
	ErrInactiveUnit       = errors.New("unit is inactive")
	ErrReservedBatchLabel = errors.New("batch label prefix is reserved for order transfers")
	ErrInvalidInput       = errors.New("invalid input")
)

type InvalidTransitionError struct {
	Entity string
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Action, e.Entity, e.From)
}

type InactiveProductError struct {
	ProductId int
}

func (e *InactiveProductError) Error() string {
	return fmt.Sprintf("product %d is inactive", e.ProductId)
}

type InsufficientStockError struct {
	ProductId int
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %s, required %s",
		e.ProductId, e.Available.String(), e.Required.String())
}

// Shortfall is how much is missing.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

type ValueExceedsBalanceError struct {
	Value   decimal.Decimal
	Balance decimal.Decimal
}

func (e *ValueExceedsBalanceError) Error() string {
	return fmt.Sprintf("reported value %s exceeds pending balance %s", e.Value.String(), e.Balance.String())
}

// storageError keeps the driver cause while matching ErrStorageUnavailable.
type storageError struct {
	cause error
}

func (e *storageError) Error() string {
	return ErrStorageUnavailable.Error() + ": " + e.cause.Error()
}

func (e *storageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func (e *storageError) Unwrap() error {
	return e.cause
}

// wrapStorageErr maps transient driver failures to ErrStorageUnavailable and leaves
// every other error untouched.
func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	if utils.IsTransientDBErr(err) {
		return &storageError{cause: err}
	}
	return err
}

// IsRetryable is true only for transient storage or lock service failures.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, utils.ErrLockUnavailable)
}
