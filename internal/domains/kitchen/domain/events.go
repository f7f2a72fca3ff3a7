package domain

import "time"

const (
	EventItemFinished  = "kitchen.item.finished"
	EventOrderFinished = "kitchen.order.finished"
)

// Event is a fact the kitchen publishes.
type Event interface {
	EventName() string
	OccurredAt() time.Time
	AggregateID() string
}

type BaseEvent struct {
	OrderID   string    `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.OrderID }

// ItemFinished is raised the first time an item is finished.
type ItemFinished struct {
	BaseEvent
	ItemID string `json:"itemId"`
}

func (ItemFinished) EventName() string { return EventItemFinished }

// MessageID is stable per item so repeated finishes collapse downstream.
func (e ItemFinished) MessageID() string { return "kitchen:" + e.OrderID + ":" + e.ItemID }

// OrderFinished is raised once, with the last item.
type OrderFinished struct {
	BaseEvent
	Reference string `json:"reference"`
}

func (OrderFinished) EventName() string { return EventOrderFinished }

func (e OrderFinished) MessageID() string { return "kitchen:" + e.OrderID + ":finished" }
