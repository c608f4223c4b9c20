package models

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rejected(value string) Settlement {
	reason := "receipt unreadable"
	return Settlement{ReportedValue: dec(value), RejectionReason: &reason}
}

func TestComputeBalance(t *testing.T) {
	settlements := []Settlement{
		{ReportedValue: dec("60"), IsValidated: true},
		{ReportedValue: dec("15")},
		rejected("10"),
	}

	held := computeBalance(dec("100"), settlements, false)
	if held.TotalValidated.String() != "60" {
		t.Fatalf("validated: expected 60, got %s", held.TotalValidated)
	}
	if held.TotalSubmitted.String() != "85" {
		t.Fatalf("submitted: expected 85, got %s", held.TotalSubmitted)
	}
	if held.PendingBalance.String() != "15" {
		t.Fatalf("pending: expected 15, got %s", held.PendingBalance)
	}

	released := computeBalance(dec("100"), settlements, true)
	if released.TotalSubmitted.String() != "75" || released.PendingBalance.String() != "25" {
		t.Fatalf("released: expected submitted 75 pending 25, got %s/%s",
			released.TotalSubmitted, released.PendingBalance)
	}
}

func TestComputeBalance_Empty(t *testing.T) {
	summary := computeBalance(dec("42.50"), nil, false)
	if !summary.PendingBalance.Equal(dec("42.5")) {
		t.Fatalf("expected full total pending, got %s", summary.PendingBalance)
	}
	if !summary.TotalSubmitted.IsZero() || !summary.TotalValidated.IsZero() {
		t.Fatalf("expected zero sums, got %+v", summary)
	}
}

func TestCheckSubmission(t *testing.T) {
	balance := computeBalance(dec("100"), []Settlement{{ReportedValue: dec("60"), IsValidated: true}}, false)

	err := checkSubmission(balance, dec("45"))
	var exceeds *ValueExceedsBalanceError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected ValueExceedsBalanceError, got %v", err)
	}
	if exceeds.Balance.String() != "40" {
		t.Fatalf("expected balance 40, got %s", exceeds.Balance)
	}

	if err := checkSubmission(balance, dec("40")); err != nil {
		t.Fatalf("value equal to balance should pass, got %v", err)
	}
	if err := checkSubmission(balance, dec("0.01")); err != nil {
		t.Fatalf("small value should pass, got %v", err)
	}
	for _, v := range []string{"0", "-5"} {
		if err := checkSubmission(balance, dec(v)); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("value %s: expected ErrInvalidInput, got %v", v, err)
		}
	}
}

func TestNewSettlement_RejectsExtraDecimals(t *testing.T) {
	input := NewSettlement{ReportedValue: dec("0.00004"), ReceiptRef: "receipts/a.png"}
	if err := utils.ValidateStruct(&input); err == nil {
		t.Fatalf("a value below the stored scale must be rejected")
	}
	input.ReportedValue = dec("0.0004")
	if err := utils.ValidateStruct(&input); err != nil {
		t.Fatalf("four places should pass, got %v", err)
	}
}

func TestPaidAfterValidation(t *testing.T) {
	cases := []struct {
		total, validated, value string
		want                    PaymentStatus
	}{
		{"100", "0", "40", PaymentStatusPartial},
		{"100", "60", "39.99", PaymentStatusPartial},
		{"100", "60", "40", PaymentStatusTotal},
		{"100", "0", "100", PaymentStatusTotal},
		{"100", "90", "20", PaymentStatusTotal},
	}
	for _, tc := range cases {
		got := paidAfterValidation(dec(tc.total), dec(tc.validated), dec(tc.value))
		if got != tc.want {
			t.Fatalf("total %s validated %s value %s: expected %s, got %s",
				tc.total, tc.validated, tc.value, tc.want, got)
		}
	}
}

func TestSettlementState(t *testing.T) {
	pending := Settlement{ReportedValue: dec("1")}
	if !pending.IsPending() || pending.IsRejected() {
		t.Fatalf("fresh settlement should be pending")
	}
	r := rejected("1")
	if r.IsPending() || !r.IsRejected() {
		t.Fatalf("rejected settlement misclassified")
	}
	v := Settlement{IsValidated: true}
	if v.IsPending() || v.IsRejected() {
		t.Fatalf("validated settlement misclassified")
	}
}

func TestCanSettle(t *testing.T) {
	order := &Order{SourceUnitId: 1, TargetUnitId: 2}
	if !canSettle(Actor{Role: ActorRoleBranch, UnitId: 2}, order) {
		t.Fatalf("target branch should be able to settle")
	}
	if canSettle(Actor{Role: ActorRoleBranch, UnitId: 5}, order) {
		t.Fatalf("unrelated branch should not settle")
	}
}
