package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/distribution_backend/models"
)

type reverseMovementRequest struct {
	Reason string `json:"reason"`
}

func stockEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStockEntry
		if !bindJSON(c, &input) {
			return
		}
		movement, err := models.RecordStockEntry(c.Request.Context(), requestActor(c), &input)
		if err != nil {
			respondError(c, "stockEntryHandler", err)
			return
		}
		c.JSON(http.StatusCreated, movement)
	}
}

func stockExitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStockExit
		if !bindJSON(c, &input) {
			return
		}
		movements, err := models.RecordStockExit(c.Request.Context(), requestActor(c), &input)
		if err != nil {
			respondError(c, "stockExitHandler", err)
			return
		}
		c.JSON(http.StatusCreated, movements)
	}
}

func stockAdjustmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStockAdjustment
		if !bindJSON(c, &input) {
			return
		}
		movement, err := models.AdjustStock(c.Request.Context(), requestActor(c), &input)
		if err != nil {
			respondError(c, "stockAdjustmentHandler", err)
			return
		}
		c.JSON(http.StatusCreated, movement)
	}
}

func reverseMovementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req reverseMovementRequest
		if !bindJSON(c, &req) {
			return
		}
		movement, err := models.ReverseMovement(c.Request.Context(), requestActor(c), id, req.Reason)
		if err != nil {
			respondError(c, "reverseMovementHandler", err)
			return
		}
		c.JSON(http.StatusCreated, movement)
	}
}

func stockLevelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			filter models.StockLevelFilter
			ok     bool
		)
		if filter.ProductId, ok = queryInt(c, "product_id"); !ok {
			return
		}
		if filter.UnitId, ok = queryInt(c, "unit_id"); !ok {
			return
		}
		filter.IncludeEmpty = queryBool(c, "include_empty", false)
		levels, err := models.StockLevels(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "stockLevelsHandler", err)
			return
		}
		c.JSON(http.StatusOK, levels)
	}
}

func stockPoolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, ok := idParam(c, "productId")
		if !ok {
			return
		}
		pool, err := models.PooledAvailability(c.Request.Context(), productId)
		if err != nil {
			respondError(c, "stockPoolHandler", err)
			return
		}
		c.JSON(http.StatusOK, pool)
	}
}

func listMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			filter models.MovementFilter
			ok     bool
		)
		if filter.ProductId, ok = queryInt(c, "product_id"); !ok {
			return
		}
		if filter.UnitId, ok = queryInt(c, "unit_id"); !ok {
			return
		}
		if filter.ReferenceId, ok = queryInt(c, "reference_id"); !ok {
			return
		}
		if raw := c.Query("kind"); raw != "" {
			kind := models.MovementKind(raw)
			if !kind.IsValid() {
				badRequest(c, "invalid kind")
				return
			}
			filter.Kind = &kind
		}
		if raw := c.Query("reference_kind"); raw != "" {
			refKind := models.ReferenceKind(raw)
			filter.ReferenceKind = &refKind
		}
		if filter.From, ok = queryTime(c, "from"); !ok {
			return
		}
		if filter.To, ok = queryTime(c, "to"); !ok {
			return
		}
		after, ok := queryInt(c, "after_id")
		if !ok {
			return
		}
		if after != nil {
			filter.AfterId = *after
		}
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		if limit != nil {
			filter.Limit = *limit
		}

		actor := requestActor(c)
		if actor.Role != models.ActorRoleUnrestricted {
			filter.UnitId = &actor.UnitId
		}

		movements, err := models.ListMovements(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "listMovementsHandler", err)
			return
		}
		nextAfter := 0
		if len(movements) > 0 {
			nextAfter = movements[len(movements)-1].ID
		}
		c.JSON(http.StatusOK, gin.H{"movements": movements, "next_after_id": nextAfter})
	}
}
