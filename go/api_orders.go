package ordersserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	ordermapper "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/http/mapper"
	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	ordersports "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
)

// OrderAPI wires HTTP transport with the orders lifecycle service.
type OrderAPI struct {
	service ordersports.Service
}

// NewOrderAPI creates an OrderAPI backed by the provided service.
func NewOrderAPI(service ordersports.Service) OrderAPI {
	return OrderAPI{service: service}
}

type orderCommand func(ctx context.Context, ref types.OrderRef) (*types.TransitionResult, error)

type itemCommand func(ctx context.Context, ref types.ItemRef) (*types.TransitionResult, error)

// Post /v1/orders
// Start a new basket
func (api *OrderAPI) CreateOrder(c *gin.Context) {
	var payload ordermapper.CreateOrder
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := api.service.CreateOrder(c.Request.Context(), ordermapper.ToCreateInput(payload))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTransition(c, http.StatusCreated, result)
}

// Get /v1/orders
// List orders, optionally filtered by state
func (api *OrderAPI) ListOrders(c *gin.Context) {
	states, ok := stateQuery(c)
	if !ok {
		return
	}
	result, err := api.service.ListOrders(c.Request.Context(), types.ListOrdersInput{States: states})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromProjectionList(result))
}

// Get /v1/orders/:orderId
// Read the current snapshot of an order
func (api *OrderAPI) GetOrder(c *gin.Context) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	order, err := api.service.GetOrder(c.Request.Context(), types.OrderRef{OrderID: orderID})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromProjection(order))
}

// Put /v1/orders/:orderId/customer
func (api *OrderAPI) AssignCustomer(c *gin.Context) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	var payload ordermapper.Customer
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	input := types.AssignCustomerInput{OrderID: orderID, Customer: ordermapper.ToCustomerInput(payload)}
	result, err := api.service.AssignCustomer(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTransition(c, http.StatusOK, result)
}

// Put /v1/orders/:orderId/address
func (api *OrderAPI) AssignAddress(c *gin.Context) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	var payload ordermapper.Address
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	input := types.AssignAddressInput{OrderID: orderID, Address: ordermapper.ToAddressInput(payload)}
	result, err := api.service.AssignAddress(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTransition(c, http.StatusOK, result)
}

// Put /v1/orders/:orderId/type
func (api *OrderAPI) ChangeOrderType(c *gin.Context) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	var payload ordermapper.ChangeType
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	input := types.ChangeOrderTypeInput{OrderID: orderID, Type: payload.Type}
	result, err := api.service.ChangeOrderType(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTransition(c, http.StatusOK, result)
}

// Post /v1/orders/:orderId/items
// Add a product line; the unit price is looked up when omitted
func (api *OrderAPI) AddItem(c *gin.Context) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	var payload ordermapper.AddItem
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	input := ordermapper.ToAddItemInput(orderID, payload)
	input.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)
	result, err := api.service.AddItem(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTransition(c, http.StatusOK, result)
}

// Delete /v1/orders/:orderId/items/:itemId
func (api *OrderAPI) RemoveItem(c *gin.Context) {
	api.runItem(c, api.service.RemoveItem)
}

// Post /v1/orders/:orderId/items/:itemId/finished
// Record a kitchen completion for one item
func (api *OrderAPI) ItemFinished(c *gin.Context) {
	api.runItem(c, api.service.ItemFinished)
}

// Post /v1/orders/:orderId/confirm
func (api *OrderAPI) ConfirmOrder(c *gin.Context) {
	api.run(c, api.service.ConfirmOrder)
}

// Post /v1/orders/:orderId/pay
func (api *OrderAPI) ConfirmPayment(c *gin.Context) {
	api.run(c, api.service.ConfirmPayment)
}

// Post /v1/orders/:orderId/start-processing
func (api *OrderAPI) StartProcessing(c *gin.Context) {
	api.run(c, api.service.StartProcessing)
}

// Post /v1/orders/:orderId/start-delivery
func (api *OrderAPI) StartDelivery(c *gin.Context) {
	api.run(c, api.service.StartDelivery)
}

// Post /v1/orders/:orderId/delivered
func (api *OrderAPI) Delivered(c *gin.Context) {
	api.run(c, api.service.Delivered)
}

// Post /v1/orders/:orderId/served
func (api *OrderAPI) Served(c *gin.Context) {
	api.run(c, api.service.Served)
}

func (api *OrderAPI) run(c *gin.Context, cmd orderCommand) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	result, err := cmd(c.Request.Context(), types.OrderRef{OrderID: orderID})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTransition(c, http.StatusOK, result)
}

func (api *OrderAPI) runItem(c *gin.Context, cmd itemCommand) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	itemID, ok := pathParam(c, "itemId")
	if !ok {
		return
	}
	result, err := cmd(c.Request.Context(), types.ItemRef{OrderID: orderID, ItemID: itemID})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTransition(c, http.StatusOK, result)
}

// respondTransition writes the snapshot; a replayed operation answers 200 with HeaderNoop set.
func respondTransition(c *gin.Context, status int, result *types.TransitionResult) {
	if result.Noop {
		c.Header(HeaderNoop, "true")
		status = http.StatusOK
	}
	c.JSON(status, ordermapper.FromProjection(result.Order))
}
