package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/distribution_backend/models"
)

// listAuditLogsHandler reads what the db sink stored. Only unrestricted actors see it.
func listAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestActor(c).Role != models.ActorRoleUnrestricted {
			respondError(c, "listAuditLogsHandler", models.ErrForbidden)
			return
		}
		var (
			filter models.AuditLogFilter
			ok     bool
		)
		if kind := strings.TrimSpace(c.Query("entity_kind")); kind != "" {
			filter.EntityKind = &kind
		}
		if filter.EntityId, ok = queryInt(c, "entity_id"); !ok {
			return
		}
		if filter.ActorId, ok = queryInt(c, "actor_id"); !ok {
			return
		}
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		if limit != nil {
			filter.Limit = *limit
		}
		logs, err := models.ListAuditLogs(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "listAuditLogsHandler", err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}
