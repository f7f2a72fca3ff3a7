package ordersserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	kitchenmapper "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/adapters/http/mapper"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
	kitchenports "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
)

// KitchenAPI serves the kitchen monitor.
type KitchenAPI struct {
	service kitchenports.Service
}

func NewKitchenAPI(service kitchenports.Service) KitchenAPI {
	return KitchenAPI{service: service}
}

// Get /v1/kitchen/orders
func (api *KitchenAPI) ListTickets(c *gin.Context) {
	raw, ok := stateQuery(c)
	if !ok {
		return
	}
	states := make([]domain.TicketState, 0, len(raw))
	for _, s := range raw {
		states = append(states, domain.TicketState(s))
	}
	result, err := api.service.List(c.Request.Context(), states)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, kitchenmapper.FromProjectionList(result))
}

// Get /v1/kitchen/orders/:orderId
func (api *KitchenAPI) GetTicket(c *gin.Context) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	ticket, err := api.service.Get(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, kitchenmapper.FromProjection(ticket))
}

// Post /v1/kitchen/orders/:orderId/start
func (api *KitchenAPI) StartTicket(c *gin.Context) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	result, err := api.service.Start(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTicket(c, result)
}

// Post /v1/kitchen/orders/:orderId/items/:itemId/finish
// The kitchen monitor's done button
func (api *KitchenAPI) FinishItem(c *gin.Context) {
	orderID, ok := pathParam(c, "orderId")
	if !ok {
		return
	}
	itemID, ok := pathParam(c, "itemId")
	if !ok {
		return
	}
	result, err := api.service.FinishItem(c.Request.Context(), orderID, itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondTicket(c, result)
}

func respondTicket(c *gin.Context, result *kitchenports.Result) {
	if result.Noop {
		c.Header(HeaderNoop, "true")
	}
	c.JSON(http.StatusOK, kitchenmapper.FromProjection(result.Ticket))
}
