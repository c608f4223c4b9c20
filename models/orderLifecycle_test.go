package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNextOrderStatus(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		action  OrderAction
		want    OrderStatus
		invalid bool
	}{
		{OrderStatusPending, OrderActionAuthorize, OrderStatusAuthorized, false},
		{OrderStatusPending, OrderActionCancel, OrderStatusCanceled, false},
		{OrderStatusPending, OrderActionDelete, OrderStatusPending, false},
		{OrderStatusPending, OrderActionConfirm, "", true},
		{OrderStatusAuthorized, OrderActionConfirm, OrderStatusConfirmed, false},
		{OrderStatusAuthorized, OrderActionCancel, "", true},
		{OrderStatusAuthorized, OrderActionDelete, "", true},
		{OrderStatusAuthorized, OrderActionAuthorize, "", true},
		{OrderStatusConfirmed, OrderActionCancel, "", true},
		{OrderStatusConfirmed, OrderActionDelete, "", true},
		{OrderStatusConfirmed, OrderActionConfirm, "", true},
		{OrderStatusCanceled, OrderActionDelete, OrderStatusCanceled, false},
		{OrderStatusCanceled, OrderActionAuthorize, "", true},
		{OrderStatusCanceled, OrderActionCancel, "", true},
	}
	for _, tc := range cases {
		got, err := NextOrderStatus(tc.from, tc.action)
		if tc.invalid {
			var transition *InvalidTransitionError
			if !errors.As(err, &transition) {
				t.Fatalf("%s from %s: expected InvalidTransitionError, got %v", tc.action, tc.from, err)
			}
			if transition.From != string(tc.from) || transition.Action != string(tc.action) {
				t.Fatalf("%s from %s: error carries %+v", tc.action, tc.from, transition)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s from %s: unexpected error %v", tc.action, tc.from, err)
		}
		if got != tc.want {
			t.Fatalf("%s from %s: expected %s, got %s", tc.action, tc.from, tc.want, got)
		}
	}
}

func TestShouldFulfillOnConfirm(t *testing.T) {
	fulfilled := Order{PaymentCondition: PaymentConditionCash}
	now := fulfilled.CreatedAt
	fulfilled.FulfilledAt = &now

	cases := []struct {
		name  string
		order Order
		want  bool
	}{
		{"cash", Order{PaymentCondition: PaymentConditionCash, PaymentStatus: PaymentStatusPending}, true},
		{"donation", Order{PaymentCondition: PaymentConditionDonation, PaymentStatus: PaymentStatusExempt}, true},
		{"credit unpaid", Order{PaymentCondition: PaymentConditionCredit, PaymentStatus: PaymentStatusPending}, false},
		{"credit partial", Order{PaymentCondition: PaymentConditionCredit, PaymentStatus: PaymentStatusPartial}, false},
		{"credit paid", Order{PaymentCondition: PaymentConditionCredit, PaymentStatus: PaymentStatusTotal}, true},
		{"consignment paid", Order{PaymentCondition: PaymentConditionConsignment, PaymentStatus: PaymentStatusTotal}, true},
		{"already fulfilled", fulfilled, false},
	}
	for _, tc := range cases {
		order := tc.order
		if got := shouldFulfillOnConfirm(&order); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCanManageOrder(t *testing.T) {
	order := &Order{SourceUnitId: 1, TargetUnitId: 2}
	hub := Actor{ID: 1, Role: ActorRoleHub, UnitId: 1}
	otherHub := Actor{ID: 2, Role: ActorRoleHub, UnitId: 3}
	branch := Actor{ID: 3, Role: ActorRoleBranch, UnitId: 2}
	admin := Actor{ID: 4, Role: ActorRoleUnrestricted}

	cases := []struct {
		actor  Actor
		action OrderAction
		want   bool
	}{
		{hub, OrderActionAuthorize, true},
		{hub, OrderActionConfirm, true},
		{otherHub, OrderActionAuthorize, false},
		{branch, OrderActionAuthorize, false},
		{branch, OrderActionConfirm, false},
		{branch, OrderActionCancel, true},
		{branch, OrderActionDelete, true},
		{otherHub, OrderActionCancel, false},
		{admin, OrderActionConfirm, true},
	}
	for _, tc := range cases {
		if got := canManageOrder(tc.actor, order, tc.action); got != tc.want {
			t.Fatalf("actor %d %s: expected %v, got %v", tc.actor.ID, tc.action, tc.want, got)
		}
	}
}

func TestNewOrderValidate(t *testing.T) {
	line := []NewOrderLine{{ProductId: 5, Quantity: decimal.NewFromInt(2)}}
	negative := decimal.NewFromInt(-1)

	cases := []struct {
		name    string
		actor   Actor
		input   NewOrder
		wantErr error
	}{
		{"hub for own source", Actor{Role: ActorRoleHub, UnitId: 1},
			NewOrder{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCash, Lines: line}, nil},
		{"hub for other source", Actor{Role: ActorRoleHub, UnitId: 9},
			NewOrder{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCash, Lines: line}, ErrForbidden},
		{"branch for own target", Actor{Role: ActorRoleBranch, UnitId: 2},
			NewOrder{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCredit, Lines: line}, nil},
		{"branch for other target", Actor{Role: ActorRoleBranch, UnitId: 3},
			NewOrder{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCredit, Lines: line}, ErrForbidden},
		{"same unit", Actor{Role: ActorRoleUnrestricted},
			NewOrder{SourceUnitId: 1, TargetUnitId: 1, PaymentCondition: PaymentConditionCash, Lines: line}, ErrSameUnit},
		{"negative price", Actor{Role: ActorRoleUnrestricted},
			NewOrder{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCash,
				Lines: []NewOrderLine{{ProductId: 5, Quantity: decimal.NewFromInt(1), UnitPrice: &negative}}}, ErrInvalidInput},
	}
	for _, tc := range cases {
		input := tc.input
		err := input.validate(tc.actor)
		if tc.wantErr == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestNewOrderValidate_RequiresLinesAndCondition(t *testing.T) {
	admin := Actor{Role: ActorRoleUnrestricted}
	inputs := []NewOrder{
		{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCash},
		{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: "barter", Lines: []NewOrderLine{{ProductId: 1, Quantity: decimal.NewFromInt(1)}}},
		{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCash, Lines: []NewOrderLine{{ProductId: 1, Quantity: decimal.Zero}}},
	}
	for i, input := range inputs {
		if err := input.validate(admin); err == nil {
			t.Fatalf("input %d: expected validation error", i)
		}
	}
}

func TestSumLines(t *testing.T) {
	lines := []OrderLine{
		{Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("2.50")},
		{Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(4)},
	}
	total := sumLines(lines)
	if total.String() != "47.5" {
		t.Fatalf("expected 47.5, got %s", total)
	}
	if lines[0].LineTotal.String() != "7.5" {
		t.Fatalf("line total not filled: %s", lines[0].LineTotal)
	}
}

func TestSumLines_RoundsToColumnScale(t *testing.T) {
	lines := []OrderLine{
		{Quantity: decimal.RequireFromString("0.5"), UnitPrice: decimal.RequireFromString("0.0001")},
		{Quantity: decimal.RequireFromString("0.5"), UnitPrice: decimal.RequireFromString("0.0001")},
		{Quantity: decimal.RequireFromString("3.3333"), UnitPrice: decimal.RequireFromString("1.0007")},
	}
	total := sumLines(lines)
	stored := decimal.Zero
	for _, l := range lines {
		if !l.LineTotal.Equal(l.LineTotal.Truncate(4)) {
			t.Fatalf("line total %s exceeds four places", l.LineTotal)
		}
		stored = stored.Add(l.LineTotal)
	}
	if !total.Equal(stored) {
		t.Fatalf("total %s differs from sum of line totals %s", total, stored)
	}
	if lines[0].LineTotal.String() != "0.0001" || lines[2].LineTotal.String() != "3.3356" {
		t.Fatalf("unexpected rounding: %s %s", lines[0].LineTotal, lines[2].LineTotal)
	}
}

func TestNewOrderValidate_RejectsExtraDecimals(t *testing.T) {
	admin := Actor{Role: ActorRoleUnrestricted}
	tiny := decimal.RequireFromString("0.00001")
	inputs := []NewOrder{
		{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCash,
			Lines: []NewOrderLine{{ProductId: 1, Quantity: tiny}}},
		{SourceUnitId: 1, TargetUnitId: 2, PaymentCondition: PaymentConditionCash,
			Lines: []NewOrderLine{{ProductId: 1, Quantity: decimal.NewFromInt(1), UnitPrice: &tiny}}},
	}
	for i, input := range inputs {
		if err := input.validate(admin); err == nil {
			t.Fatalf("input %d: expected a scale error", i)
		}
	}
}

func TestInitialPaymentStatus(t *testing.T) {
	if got := initialPaymentStatus(PaymentConditionDonation); got != PaymentStatusExempt {
		t.Fatalf("donation: expected exempt, got %s", got)
	}
	for _, c := range []PaymentCondition{PaymentConditionCash, PaymentConditionCredit, PaymentConditionConsignment} {
		if got := initialPaymentStatus(c); got != PaymentStatusPending {
			t.Fatalf("%s: expected pending, got %s", c, got)
		}
	}
}
