package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/distribution_backend/middlewares"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/mmdatafocus/distribution_backend/utils"
)

type orderLineView struct {
	models.OrderLine
	ProductName string `json:"product_name"`
	Sku         string `json:"sku"`
}

// orderView is an order with unit and product names resolved through the request loaders.
type orderView struct {
	*models.Order
	SourceUnitName string               `json:"source_unit_name"`
	TargetUnitName string               `json:"target_unit_name"`
	Lines          []orderLineView      `json:"lines"`
	Settlements    []*models.Settlement `json:"settlements,omitempty"`
}

// buildOrderViews resolves every unit and product the orders reference in one batch each.
func buildOrderViews(ctx context.Context, orders []*models.Order, lines [][]*models.OrderLine) ([]orderView, error) {
	unitIds := make([]int, 0, len(orders)*2)
	var productIds []int
	for i, order := range orders {
		unitIds = append(unitIds, order.SourceUnitId, order.TargetUnitId)
		for _, line := range lines[i] {
			productIds = append(productIds, line.ProductId)
		}
	}
	unitIds = utils.UniqueSlice(unitIds)
	productIds = utils.UniqueSlice(productIds)

	units, err := middlewares.GetUnits(ctx, unitIds)
	if err != nil {
		return nil, err
	}
	products, err := middlewares.GetProducts(ctx, productIds)
	if err != nil {
		return nil, err
	}
	unitNames := make(map[int]string, len(units))
	for i, unit := range units {
		unitNames[unitIds[i]] = unit.Name
	}
	productsById := make(map[int]*models.Product, len(products))
	for i, product := range products {
		productsById[productIds[i]] = product
	}

	views := make([]orderView, len(orders))
	for i, order := range orders {
		view := orderView{
			Order:          order,
			SourceUnitName: unitNames[order.SourceUnitId],
			TargetUnitName: unitNames[order.TargetUnitId],
			Lines:          make([]orderLineView, 0, len(lines[i])),
		}
		for _, line := range lines[i] {
			lineView := orderLineView{OrderLine: *line}
			if product := productsById[line.ProductId]; product != nil {
				lineView.ProductName = product.Name
				lineView.Sku = product.Sku
			}
			view.Lines = append(view.Lines, lineView)
		}
		views[i] = view
	}
	return views, nil
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if !bindJSON(c, &input) {
			return
		}
		order, err := models.CreateOrder(c.Request.Context(), requestActor(c), &input)
		if err != nil {
			respondError(c, "createOrderHandler", err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var filter models.OrderFilter
		if raw := c.Query("status"); raw != "" {
			status, err := models.ParseOrderStatus(raw)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			filter.Status = &status
		}
		if raw := c.Query("payment_status"); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				status, err := models.ParsePaymentStatus(part)
				if err != nil {
					badRequest(c, err.Error())
					return
				}
				filter.PaymentStatuses = append(filter.PaymentStatuses, status)
			}
		}
		var ok bool
		if filter.SourceUnitId, ok = queryInt(c, "source_unit_id"); !ok {
			return
		}
		if filter.TargetUnitId, ok = queryInt(c, "target_unit_id"); !ok {
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

		orders, err := models.ListOrders(ctx, requestActor(c), filter)
		if err != nil {
			respondError(c, "listOrdersHandler", err)
			return
		}
		orderIds := make([]int, len(orders))
		for i, order := range orders {
			orderIds[i] = order.ID
		}
		lines, err := middlewares.GetLinesForOrders(ctx, orderIds)
		if err != nil {
			respondError(c, "listOrdersHandler", err)
			return
		}
		views, err := buildOrderViews(ctx, orders, lines)
		if err != nil {
			respondError(c, "listOrdersHandler", err)
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		order, err := models.GetOrder(ctx, id)
		if err != nil {
			respondError(c, "getOrderHandler", err)
			return
		}
		actor := requestActor(c)
		if !actor.ActsForUnit(order.SourceUnitId) && !actor.ActsForUnit(order.TargetUnitId) {
			respondError(c, "getOrderHandler", models.ErrForbidden)
			return
		}
		lines := make([]*models.OrderLine, len(order.Lines))
		for i := range order.Lines {
			lines[i] = &order.Lines[i]
		}
		views, err := buildOrderViews(ctx, []*models.Order{order}, [][]*models.OrderLine{lines})
		if err != nil {
			respondError(c, "getOrderHandler", err)
			return
		}
		view := views[0]
		if view.Settlements, err = middlewares.GetOrderSettlements(ctx, order.ID); err != nil {
			respondError(c, "getOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

type orderAction func(ctx context.Context, actor models.Actor, orderId int) (*models.Order, error)

// orderActionHandler serves every lifecycle endpoint; they share a shape.
func orderActionHandler(action orderAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		order, err := action(c.Request.Context(), requestActor(c), id)
		if err != nil {
			respondError(c, "orderActionHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
