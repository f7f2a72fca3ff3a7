package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event names as published on the event bus.
const (
	EventOrderCreated                = "orders.order.created"
	EventOrderConfirmed              = "orders.order.confirmed"
	EventOrderPaid                   = "orders.order.paid"
	EventKitchenOrderStartProcessing = "kitchen.order.start_processing"
	EventOrderItemFinished           = "orders.order.item_finished"
	EventOrderPrepared               = "orders.order.prepared"
	EventOrderClosed                 = "orders.order.closed"
)

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent carries the fields every order event publishes.
type BaseEvent struct {
	OrderID   string    `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the order the event belongs to.
func (e BaseEvent) AggregateID() string {
	return e.OrderID
}

// OrderCreated is raised when a new order is recorded.
type OrderCreated struct {
	BaseEvent
	Reference string    `json:"reference"`
	Type      OrderType `json:"type"`
}

// EventName returns the event type identifier.
func (OrderCreated) EventName() string { return EventOrderCreated }

// OrderConfirmed is raised when the customer confirms the basket.
type OrderConfirmed struct {
	BaseEvent
	Type  OrderType       `json:"type"`
	Total decimal.Decimal `json:"total"`
}

// EventName returns the event type identifier.
func (OrderConfirmed) EventName() string { return EventOrderConfirmed }

// OrderPaid is raised once per order when payment is confirmed.
type OrderPaid struct {
	BaseEvent
	Total decimal.Decimal `json:"total"`
}

// EventName returns the event type identifier.
func (OrderPaid) EventName() string { return EventOrderPaid }

// KitchenItem is the kitchen's view of a line item.
type KitchenItem struct {
	ItemID    string `json:"itemId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Comment   string `json:"comment,omitempty"`
}

// KitchenOrderStartProcessing asks the kitchen to prepare the listed items.
type KitchenOrderStartProcessing struct {
	BaseEvent
	Reference string        `json:"reference"`
	Type      OrderType     `json:"type"`
	Items     []KitchenItem `json:"items"`
}

// EventName returns the event type identifier.
func (KitchenOrderStartProcessing) EventName() string { return EventKitchenOrderStartProcessing }

// OrderItemFinished is raised the first time an item is reported finished.
type OrderItemFinished struct {
	BaseEvent
	ItemID string `json:"itemId"`
}

// EventName returns the event type identifier.
func (OrderItemFinished) EventName() string { return EventOrderItemFinished }

// OrderPrepared is raised when every item is finished.
type OrderPrepared struct {
	BaseEvent
}

// EventName returns the event type identifier.
func (OrderPrepared) EventName() string { return EventOrderPrepared }

// OrderClosed is raised when the order is served or delivered.
type OrderClosed struct {
	BaseEvent
	Type OrderType `json:"type"`
}

// EventName returns the event type identifier.
func (OrderClosed) EventName() string { return EventOrderClosed }
