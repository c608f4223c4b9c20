package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/distribution_backend/utils"
)

func TestWrapStorageErr(t *testing.T) {
	if wrapStorageErr(nil) != nil {
		t.Fatalf("nil should stay nil")
	}

	deadlock := &mysqlDriver.MySQLError{Number: 1213, Message: "Deadlock found"}
	wrapped := wrapStorageErr(fmt.Errorf("update batch: %w", deadlock))
	if !errors.Is(wrapped, ErrStorageUnavailable) || !IsRetryable(wrapped) {
		t.Fatalf("deadlock should map to storage unavailable, got %v", wrapped)
	}
	var cause *mysqlDriver.MySQLError
	if !errors.As(wrapped, &cause) || cause.Number != 1213 {
		t.Fatalf("driver cause should stay reachable")
	}
	if again := wrapStorageErr(wrapped); again != wrapped {
		t.Fatalf("already wrapped errors should pass through")
	}

	duplicate := &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if got := wrapStorageErr(duplicate); got != error(duplicate) {
		t.Fatalf("duplicate key should be left untouched, got %v", got)
	}
	if IsRetryable(duplicate) {
		t.Fatalf("duplicate key is not retryable")
	}
	if IsRetryable(insufficientErr()) {
		t.Fatalf("domain errors are not retryable")
	}
}

func insufficientErr() error {
	return &InsufficientStockError{ProductId: 1, Available: dec("5"), Required: dec("10")}
}

func TestErrorMessages(t *testing.T) {
	transition := &InvalidTransitionError{Entity: "order", From: "CONFIRMED", Action: "cancel"}
	if transition.Error() != "cannot cancel order in status CONFIRMED" {
		t.Fatalf("unexpected message %q", transition.Error())
	}
	short := insufficientErr()
	if short.Error() != "insufficient stock for product 1: available 5, required 10" {
		t.Fatalf("unexpected message %q", short.Error())
	}
}

func TestActorScopes(t *testing.T) {
	hub := Actor{Role: ActorRoleHub, UnitId: 3}
	branch := Actor{Role: ActorRoleBranch, UnitId: 3}
	if !hub.ActsForHub(3) || hub.ActsForHub(4) {
		t.Fatalf("hub scope wrong")
	}
	if branch.ActsForHub(3) {
		t.Fatalf("branch must never act for a hub")
	}
	if !branch.ActsForUnit(3) || branch.ActsForUnit(4) {
		t.Fatalf("branch unit scope wrong")
	}
	if !SystemActor.ActsForHub(99) || !SystemActor.ActsForUnit(99) {
		t.Fatalf("system actor should be unrestricted")
	}
}

func TestActorFromContext(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatalf("empty context should not yield an actor")
	}

	ctx := utils.SetActorIdInContext(context.Background(), 12)
	ctx = utils.SetActorNameInContext(ctx, "Ana")
	ctx = utils.SetActorRoleInContext(ctx, "hub")
	ctx = utils.SetUnitIdInContext(ctx, 4)
	actor, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatalf("expected an actor")
	}
	if actor.ID != 12 || actor.Role != ActorRoleHub || actor.UnitId != 4 || actor.Name != "Ana" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	bad := utils.SetActorRoleInContext(utils.SetActorIdInContext(context.Background(), 1), "root")
	if _, ok := ActorFromContext(bad); ok {
		t.Fatalf("unknown role should not yield an actor")
	}
}
