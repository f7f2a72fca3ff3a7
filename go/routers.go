package ordersserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
}

// NewRouter returns a new router.
func NewRouter(handleFunctions ApiHandleFunctions) *gin.Engine {
	return NewRouterWithGinEngine(gin.Default(), handleFunctions)
}

// NewRouterWithGinEngine adds the API routes to an existing gin engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions) *gin.Engine {
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		switch route.Method {
		case http.MethodGet:
			router.GET(route.Pattern, route.HandlerFunc)
		case http.MethodPost:
			router.POST(route.Pattern, route.HandlerFunc)
		case http.MethodPut:
			router.PUT(route.Pattern, route.HandlerFunc)
		case http.MethodPatch:
			router.PATCH(route.Pattern, route.HandlerFunc)
		case http.MethodDelete:
			router.DELETE(route.Pattern, route.HandlerFunc)
		}
	}
	return router
}

// DefaultHandleFunc answers routes whose handler is not wired.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

// ApiHandleFunctions groups the handlers per API.
type ApiHandleFunctions struct {
	// Routes for the OrderAPI part of the API
	OrderAPI OrderAPI
	// Routes for the KitchenAPI part of the API
	KitchenAPI KitchenAPI
}

func getRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{"CreateOrder", http.MethodPost, "/v1/orders", handleFunctions.OrderAPI.CreateOrder},
		{"ListOrders", http.MethodGet, "/v1/orders", handleFunctions.OrderAPI.ListOrders},
		{"GetOrder", http.MethodGet, "/v1/orders/:orderId", handleFunctions.OrderAPI.GetOrder},
		{"AssignCustomer", http.MethodPut, "/v1/orders/:orderId/customer", handleFunctions.OrderAPI.AssignCustomer},
		{"AssignAddress", http.MethodPut, "/v1/orders/:orderId/address", handleFunctions.OrderAPI.AssignAddress},
		{"ChangeOrderType", http.MethodPut, "/v1/orders/:orderId/type", handleFunctions.OrderAPI.ChangeOrderType},
		{"AddItem", http.MethodPost, "/v1/orders/:orderId/items", handleFunctions.OrderAPI.AddItem},
		{"RemoveItem", http.MethodDelete, "/v1/orders/:orderId/items/:itemId", handleFunctions.OrderAPI.RemoveItem},
		{"ItemFinished", http.MethodPost, "/v1/orders/:orderId/items/:itemId/finished", handleFunctions.OrderAPI.ItemFinished},
		{"ConfirmOrder", http.MethodPost, "/v1/orders/:orderId/confirm", handleFunctions.OrderAPI.ConfirmOrder},
		{"ConfirmPayment", http.MethodPost, "/v1/orders/:orderId/pay", handleFunctions.OrderAPI.ConfirmPayment},
		{"StartProcessing", http.MethodPost, "/v1/orders/:orderId/start-processing", handleFunctions.OrderAPI.StartProcessing},
		{"StartDelivery", http.MethodPost, "/v1/orders/:orderId/start-delivery", handleFunctions.OrderAPI.StartDelivery},
		{"Delivered", http.MethodPost, "/v1/orders/:orderId/delivered", handleFunctions.OrderAPI.Delivered},
		{"Served", http.MethodPost, "/v1/orders/:orderId/served", handleFunctions.OrderAPI.Served},
		{"ListTickets", http.MethodGet, "/v1/kitchen/orders", handleFunctions.KitchenAPI.ListTickets},
		{"GetTicket", http.MethodGet, "/v1/kitchen/orders/:orderId", handleFunctions.KitchenAPI.GetTicket},
		{"StartTicket", http.MethodPost, "/v1/kitchen/orders/:orderId/start", handleFunctions.KitchenAPI.StartTicket},
		{"FinishItem", http.MethodPost, "/v1/kitchen/orders/:orderId/items/:itemId/finish", handleFunctions.KitchenAPI.FinishItem},
	}
}
