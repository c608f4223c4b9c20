package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/distribution_backend/models"
)

func createUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUnit
		if !bindJSON(c, &input) {
			return
		}
		unit, err := models.CreateUnit(c.Request.Context(), requestActor(c), &input)
		if err != nil {
			respondError(c, "createUnitHandler", err)
			return
		}
		c.JSON(http.StatusCreated, unit)
	}
}

func listUnitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var kind *models.UnitKind
		if raw := c.Query("kind"); raw != "" {
			k, err := models.ParseUnitKind(raw)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			kind = &k
		}
		units, err := models.ListUnits(c.Request.Context(), kind, queryBool(c, "active", true))
		if err != nil {
			respondError(c, "listUnitsHandler", err)
			return
		}
		c.JSON(http.StatusOK, units)
	}
}

func getUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		unit, err := models.GetUnit(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getUnitHandler", err)
			return
		}
		c.JSON(http.StatusOK, unit)
	}
}

func deactivateUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		unit, err := models.DeactivateUnit(c.Request.Context(), requestActor(c), id)
		if err != nil {
			respondError(c, "deactivateUnitHandler", err)
			return
		}
		c.JSON(http.StatusOK, unit)
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if !bindJSON(c, &input) {
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), requestActor(c), &input)
		if err != nil {
			respondError(c, "createProductHandler", err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if raw := strings.TrimSpace(c.Query("name")); raw != "" {
			name = &raw
		}
		products, err := models.ListProducts(c.Request.Context(), name, queryBool(c, "active", true))
		if err != nil {
			respondError(c, "listProductsHandler", err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getProductHandler", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func deactivateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		product, err := models.DeactivateProduct(c.Request.Context(), requestActor(c), id)
		if err != nil {
			respondError(c, "deactivateProductHandler", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}
