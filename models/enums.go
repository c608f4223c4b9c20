package models

import (
	"errors"
	"strings"
)

type UnitKind string

const (
	UnitKindHub    UnitKind = "HUB"
	UnitKindBranch UnitKind = "BRANCH"
)

func ParseUnitKind(str string) (UnitKind, error) {
	unitKind := map[string]UnitKind{
		"HUB":    UnitKindHub,
		"BRANCH": UnitKindBranch,
	}
	k, ok := unitKind[strings.ToUpper(strings.TrimSpace(str))]
	if !ok {
		return "", errors.New("invalid unit kind")
	}
	return k, nil
}

type MovementKind string

const (
	MovementKindEntry           MovementKind = "entry"
	MovementKindExit            MovementKind = "exit"
	MovementKindTransferIn      MovementKind = "transfer_in"
	MovementKindTransferOut     MovementKind = "transfer_out"
	MovementKindAdjustmentPlus  MovementKind = "adjustment_plus"
	MovementKindAdjustmentMinus MovementKind = "adjustment_minus"
	MovementKindReversalIn      MovementKind = "reversal_in"
	MovementKindReversalOut     MovementKind = "reversal_out"
)

// IsCredit is true for kinds that add to a batch.
func (k MovementKind) IsCredit() bool {
	switch k {
	case MovementKindEntry, MovementKindTransferIn, MovementKindAdjustmentPlus, MovementKindReversalIn:
		return true
	}
	return false
}

func (k MovementKind) IsValid() bool {
	switch k {
	case MovementKindEntry, MovementKindExit,
		MovementKindTransferIn, MovementKindTransferOut,
		MovementKindAdjustmentPlus, MovementKindAdjustmentMinus,
		MovementKindReversalIn, MovementKindReversalOut:
		return true
	}
	return false
}

// Opposite is the kind that undoes k.
func (k MovementKind) Opposite() MovementKind {
	if k.IsCredit() {
		return MovementKindReversalOut
	}
	return MovementKindReversalIn
}

type ReferenceKind string

const (
	ReferenceKindNone     ReferenceKind = ""
	ReferenceKindOrder    ReferenceKind = "order"
	ReferenceKindMovement ReferenceKind = "movement"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusAuthorized OrderStatus = "AUTHORIZED"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
)

func ParseOrderStatus(str string) (OrderStatus, error) {
	orderStatus := map[string]OrderStatus{
		"PENDING":    OrderStatusPending,
		"AUTHORIZED": OrderStatusAuthorized,
		"CONFIRMED":  OrderStatusConfirmed,
		"CANCELED":   OrderStatusCanceled,
	}
	s, ok := orderStatus[strings.ToUpper(strings.TrimSpace(str))]
	if !ok {
		return "", errors.New("invalid order status")
	}
	return s, nil
}

type PaymentCondition string

const (
	PaymentConditionCash        PaymentCondition = "cash"
	PaymentConditionCredit      PaymentCondition = "credit"
	PaymentConditionConsignment PaymentCondition = "consignment"
	PaymentConditionDonation    PaymentCondition = "donation"
)

// TransfersOnConfirm reports whether stock moves when the order is confirmed.
// Credit and consignment orders wait for full payment instead.
func (c PaymentCondition) TransfersOnConfirm() bool {
	return c == PaymentConditionCash || c == PaymentConditionDonation
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusTotal   PaymentStatus = "total"
	PaymentStatusExempt  PaymentStatus = "exempt"
)

func ParsePaymentStatus(str string) (PaymentStatus, error) {
	paymentStatus := map[string]PaymentStatus{
		"pending": PaymentStatusPending,
		"partial": PaymentStatusPartial,
		"total":   PaymentStatusTotal,
		"exempt":  PaymentStatusExempt,
	}
	s, ok := paymentStatus[strings.ToLower(strings.TrimSpace(str))]
	if !ok {
		return "", errors.New("invalid payment status")
	}
	return s, nil
}

type ActorRole string

const (
	ActorRoleHub          ActorRole = "HUB"
	ActorRoleBranch       ActorRole = "BRANCH"
	ActorRoleUnrestricted ActorRole = "UNRESTRICTED"
)

func ParseActorRole(str string) (ActorRole, error) {
	actorRole := map[string]ActorRole{
		"HUB":          ActorRoleHub,
		"BRANCH":       ActorRoleBranch,
		"UNRESTRICTED": ActorRoleUnrestricted,
	}
	r, ok := actorRole[strings.ToUpper(strings.TrimSpace(str))]
	if !ok {
		return "", errors.New("invalid actor role")
	}
	return r, nil
}
