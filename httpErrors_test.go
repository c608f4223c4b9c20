package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient", &models.InsufficientStockError{ProductId: 4, Available: decimal.NewFromInt(5), Required: decimal.NewFromInt(10)}, http.StatusConflict, "insufficient_stock"},
		{"transition", &models.InvalidTransitionError{Entity: "order", From: "CONFIRMED", Action: "cancel"}, http.StatusConflict, "invalid_transition"},
		{"fulfilled", models.ErrAlreadyFulfilled, http.StatusConflict, "already_fulfilled"},
		{"validated", models.ErrAlreadyValidated, http.StatusConflict, "already_validated"},
		{"reversed", models.ErrAlreadyReversed, http.StatusConflict, "already_reversed"},
		{"busy", utils.ErrLockNotObtained, http.StatusConflict, "busy"},
		{"duplicate sentinel", fmt.Errorf("%w: sku", utils.ErrDuplicateValue), http.StatusConflict, "duplicate"},
		{"duplicate key", &mysqlDriver.MySQLError{Number: 1062}, http.StatusConflict, "duplicate"},
		{"exceeds", &models.ValueExceedsBalanceError{Value: decimal.NewFromInt(45), Balance: decimal.NewFromInt(40)}, http.StatusUnprocessableEntity, "value_exceeds_balance"},
		{"inactive", &models.InactiveProductError{ProductId: 2}, http.StatusUnprocessableEntity, "inactive_product"},
		{"source", models.ErrInvalidSource, http.StatusUnprocessableEntity, "invalid_source"},
		{"not payable", models.ErrNotPayable, http.StatusUnprocessableEntity, "not_payable"},
		{"no change", models.ErrNoChange, http.StatusUnprocessableEntity, "no_change"},
		{"reason", models.ErrReasonRequired, http.StatusBadRequest, "validation"},
		{"input", fmt.Errorf("%w: quantity must be positive", models.ErrInvalidInput), http.StatusBadRequest, "validation"},
		{"reserved label", models.ErrReservedBatchLabel, http.StatusBadRequest, "validation"},
		{"forbidden", models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", fmt.Errorf("order 3: %w", gorm.ErrRecordNotFound), http.StatusNotFound, "not_found"},
		{"storage", fmt.Errorf("%w: deadlock", models.ErrStorageUnavailable), http.StatusServiceUnavailable, "storage_unavailable"},
		{"lock service", fmt.Errorf("%w: dial tcp: connection refused", utils.ErrLockUnavailable), http.StatusServiceUnavailable, "storage_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, body := classifyError(tc.err)
		if status != tc.status || body.Code != tc.code {
			t.Fatalf("%s: expected %d/%s, got %d/%s", tc.name, tc.status, tc.code, status, body.Code)
		}
	}
}

func TestClassifyError_Details(t *testing.T) {
	_, body := classifyError(&models.InsufficientStockError{ProductId: 4, Available: decimal.NewFromInt(5), Required: decimal.NewFromInt(10)})
	if body.ProductId != 4 || body.Available != "5" || body.Required != "10" {
		t.Fatalf("shortage details missing: %+v", body)
	}

	_, body = classifyError(&models.ValueExceedsBalanceError{Value: decimal.NewFromInt(45), Balance: decimal.NewFromInt(40)})
	if body.Balance != "40" {
		t.Fatalf("balance missing: %+v", body)
	}

	_, body = classifyError(models.ErrStorageUnavailable)
	if !body.Retryable {
		t.Fatalf("storage failures should be retryable")
	}

	_, body = classifyError(fmt.Errorf("%w: i/o timeout", utils.ErrLockUnavailable))
	if !body.Retryable {
		t.Fatalf("lock service failures should be retryable")
	}

	_, body = classifyError(errors.New("dsn user:secret@tcp"))
	if body.Error != "internal error" {
		t.Fatalf("internal errors must not leak details: %q", body.Error)
	}
}

func TestClassifyError_ValidationFields(t *testing.T) {
	input := &models.NewSettlement{}
	err := utils.ValidateStruct(input)
	status, body := classifyError(err)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if body.Fields["NewSettlement.reported_value"] != "gt" {
		t.Fatalf("unexpected fields %v", body.Fields)
	}
}
