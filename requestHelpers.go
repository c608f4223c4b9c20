package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/distribution_backend/models"
)

// requestActor is always present behind RequireActor.
func requestActor(c *gin.Context) models.Actor {
	actor, _ := models.ActorFromContext(c.Request.Context())
	return actor
}

// idParam reads a positive integer path parameter, answering 400 when it is not one.
func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt returns nil for an absent parameter.
func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &v, true
}

func queryBool(c *gin.Context, name string, def bool) bool {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// queryTime accepts RFC3339 or a plain date.
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	badRequest(c, "invalid "+name)
	return nil, false
}

// bindJSON answers 400 itself on malformed bodies.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}
