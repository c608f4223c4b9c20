package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/distribution_backend/models"
)

type rejectSettlementRequest struct {
	Reason string `json:"reason"`
}

func submitSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input models.NewSettlement
		if !bindJSON(c, &input) {
			return
		}
		settlement, err := models.SubmitSettlement(c.Request.Context(), requestActor(c), orderId, &input)
		if err != nil {
			respondError(c, "submitSettlementHandler", err)
			return
		}
		c.JSON(http.StatusCreated, settlement)
	}
}

func listSettlementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := idParam(c, "id")
		if !ok {
			return
		}
		settlements, err := models.ListSettlements(c.Request.Context(), orderId)
		if err != nil {
			respondError(c, "listSettlementsHandler", err)
			return
		}
		c.JSON(http.StatusOK, settlements)
	}
}

// settlementQueueHandler lists settlements awaiting review. Only status=pending is served.
func settlementQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if status := c.DefaultQuery("status", "pending"); status != "pending" {
			badRequest(c, "only pending settlements can be listed here")
			return
		}
		var filter models.SettlementQueueFilter
		var ok bool
		if filter.SourceUnitId, ok = queryInt(c, "source_unit_id"); !ok {
			return
		}
		if limit, ok := queryInt(c, "limit"); !ok {
			return
		} else if limit != nil {
			filter.Limit = *limit
		}
		if offset, ok := queryInt(c, "offset"); !ok {
			return
		} else if offset != nil && *offset > 0 {
			filter.Offset = *offset
		}
		settlements, err := models.ListPendingSettlements(c.Request.Context(), requestActor(c), filter)
		if err != nil {
			respondError(c, "settlementQueueHandler", err)
			return
		}
		c.JSON(http.StatusOK, settlements)
	}
}

func balanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := idParam(c, "id")
		if !ok {
			return
		}
		summary, err := models.PendingBalance(c.Request.Context(), orderId)
		if err != nil {
			respondError(c, "balanceHandler", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func approveSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		settlement, err := models.ApproveSettlement(c.Request.Context(), requestActor(c), id)
		if err != nil {
			respondError(c, "approveSettlementHandler", err)
			return
		}
		c.JSON(http.StatusOK, settlement)
	}
}

func rejectSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req rejectSettlementRequest
		if !bindJSON(c, &req) {
			return
		}
		settlement, err := models.RejectSettlement(c.Request.Context(), requestActor(c), id, req.Reason)
		if err != nil {
			respondError(c, "rejectSettlementHandler", err)
			return
		}
		c.JSON(http.StatusOK, settlement)
	}
}
