package utils

import (
	"context"

	"github.com/mmdatafocus/distribution_backend/appctx"
)

var (
	ContextKeyActorId       = appctx.ContextKeyActorId
	ContextKeyActorName     = appctx.ContextKeyActorName
	ContextKeyActorRole     = appctx.ContextKeyActorRole
	ContextKeyUnitId        = appctx.ContextKeyUnitId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetActorIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyActorId)
}

func GetActorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorName)
}

func GetActorRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorRole)
}

func GetUnitIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUnitId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetActorIdInContext(ctx context.Context, id int) context.Context {
	return appctx.Set(ctx, ContextKeyActorId, id)
}

func SetActorNameInContext(ctx context.Context, name string) context.Context {
	return appctx.Set(ctx, ContextKeyActorName, name)
}

func SetActorRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyActorRole, role)
}

func SetUnitIdInContext(ctx context.Context, unitId int) context.Context {
	return appctx.Set(ctx, ContextKeyUnitId, unitId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
