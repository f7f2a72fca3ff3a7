package domain

import (
	"strings"
	"time"
)

// Decision is the outcome of applying one operation to an order snapshot.
// A no-op decision carries the unchanged snapshot and no events.
type Decision struct {
	Order  *Order
	Events []Event
	Noop   bool
}

type rule func(o *Order, op Operation, now time.Time) ([]Event, bool, error)

var rules = map[OperationName]rule{
	OpAssignCustomer:  assignCustomer,
	OpAssignAddress:   assignAddress,
	OpChangeOrderType: changeOrderType,
	OpAddItem:         addItem,
	OpRemoveItem:      removeItem,
	OpConfirmOrder:    confirmOrder,
	OpConfirmPayment:  confirmPayment,
	OpStartProcessing: startProcessing,
	OpItemFinished:    itemFinished,
	OpStartDelivery:   startDelivery,
	OpDelivered:       delivered,
	OpServed:          served,
}

// Apply decides an operation against the current snapshot. It never mutates
// current; the returned decision holds a fresh copy. A nil current is only
// valid for CreateOrder.
func Apply(current *Order, op Operation, now time.Time) (Decision, error) {
	now = now.UTC()
	if op.Name == OpCreateOrder {
		return create(current, op, now)
	}
	apply, ok := rules[op.Name]
	if !ok {
		return Decision{}, ErrUnknownOperation
	}
	if current == nil {
		return Decision{}, ErrOrderNotCreated
	}
	next := current.Clone()
	events, noop, err := apply(next, op, now)
	if err != nil {
		return Decision{}, err
	}
	if noop {
		return Decision{Order: current.Clone(), Noop: true}, nil
	}
	return Decision{Order: next, Events: events}, nil
}

func create(current *Order, op Operation, now time.Time) (Decision, error) {
	if strings.TrimSpace(op.OrderID) == "" {
		return Decision{}, ErrInvalidOrderID
	}
	orderType := op.Type
	if orderType == "" {
		orderType = OrderTypeInHouse
	}
	if !orderType.Valid() {
		return Decision{}, ErrInvalidOrderType
	}
	if op.Customer != nil && strings.TrimSpace(op.Customer.Name) == "" {
		return Decision{}, ErrInvalidCustomer
	}
	// A malformed create is rejected whether or not the order exists.
	if current != nil {
		if current.ID != op.OrderID {
			return Decision{}, ErrOrderIDMismatch
		}
		return Decision{Order: current.Clone(), Noop: true}, nil
	}
	order := &Order{
		ID:        op.OrderID,
		Reference: ReferenceFor(op.OrderID),
		Type:      orderType,
		State:     StateCreating,
		Customer:  op.Customer.clone(),
		Items:     []LineItem{},
		Comments:  op.Comments,
	}
	order.recomputeTotal()
	stamp(&order.Timestamps.CreatedAt, now)
	event := OrderCreated{BaseEvent: base(order, now), Reference: order.Reference, Type: order.Type}
	return Decision{Order: order, Events: []Event{event}}, nil
}

// advance applies the shared guard of a state transition: run when the order
// sits in from, no-op once to has been reached, reject otherwise.
func advance(o *Order, op OperationName, from, to State) (bool, error) {
	switch {
	case o.State == from:
		return false, nil
	case !o.State.Before(to):
		return true, nil
	default:
		return false, &TransitionError{Operation: op, Expected: from, Actual: o.State}
	}
}

// editable guards mutations that are only legal while the basket is open.
func editable(o *Order, op OperationName) error {
	if o.State != StateCreating {
		return &TransitionError{Operation: op, Expected: StateCreating, Actual: o.State}
	}
	return nil
}

func assignCustomer(o *Order, op Operation, _ time.Time) ([]Event, bool, error) {
	if op.Customer == nil || strings.TrimSpace(op.Customer.Name) == "" {
		return nil, false, ErrInvalidCustomer
	}
	if o.Customer != nil && o.Customer.Equal(*op.Customer) {
		return nil, true, nil
	}
	if err := editable(o, op.Name); err != nil {
		return nil, false, err
	}
	o.Customer = op.Customer.clone()
	return nil, false, nil
}

func assignAddress(o *Order, op Operation, _ time.Time) ([]Event, bool, error) {
	if op.Address == nil {
		return nil, false, ErrInvalidAddress
	}
	if err := op.Address.Validate(); err != nil {
		return nil, false, err
	}
	if o.DeliveryAddress != nil && *o.DeliveryAddress == *op.Address {
		return nil, true, nil
	}
	if err := editable(o, op.Name); err != nil {
		return nil, false, err
	}
	addr := *op.Address
	o.DeliveryAddress = &addr
	return nil, false, nil
}

func changeOrderType(o *Order, op Operation, _ time.Time) ([]Event, bool, error) {
	if !op.Type.Valid() {
		return nil, false, ErrInvalidOrderType
	}
	if o.Type == op.Type {
		return nil, true, nil
	}
	if err := editable(o, op.Name); err != nil {
		return nil, false, err
	}
	o.Type = op.Type
	return nil, false, nil
}

func addItem(o *Order, op Operation, _ time.Time) ([]Event, bool, error) {
	if op.Item == nil {
		return nil, false, ErrMissingItemID
	}
	if err := op.Item.validate(); err != nil {
		return nil, false, err
	}
	if o.itemIndex(op.Item.ID) >= 0 {
		return nil, true, nil
	}
	if err := editable(o, op.Name); err != nil {
		return nil, false, err
	}
	item := *op.Item
	item.State = ItemPending
	item.FinishedAt = nil
	o.Items = append(o.Items, item)
	o.recomputeTotal()
	return nil, false, nil
}

func removeItem(o *Order, op Operation, _ time.Time) ([]Event, bool, error) {
	if strings.TrimSpace(op.ItemID) == "" {
		return nil, false, ErrMissingItemID
	}
	idx := o.itemIndex(op.ItemID)
	if idx < 0 {
		return nil, true, nil
	}
	if err := editable(o, op.Name); err != nil {
		return nil, false, err
	}
	o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
	o.recomputeTotal()
	return nil, false, nil
}

func confirmOrder(o *Order, op Operation, now time.Time) ([]Event, bool, error) {
	noop, err := advance(o, op.Name, StateCreating, StateConfirmed)
	if noop || err != nil {
		return nil, noop, err
	}
	if len(o.Items) == 0 {
		return nil, false, ErrNoItems
	}
	if o.Type == OrderTypeDelivery && o.DeliveryAddress == nil {
		return nil, false, ErrMissingAddress
	}
	o.State = StateConfirmed
	stamp(&o.Timestamps.ConfirmedAt, now)
	return []Event{OrderConfirmed{BaseEvent: base(o, now), Type: o.Type, Total: o.Total}}, false, nil
}

func confirmPayment(o *Order, op Operation, now time.Time) ([]Event, bool, error) {
	noop, err := advance(o, op.Name, StateConfirmed, StatePaid)
	if noop || err != nil {
		return nil, noop, err
	}
	o.State = StatePaid
	stamp(&o.Timestamps.PaidAt, now)
	return []Event{OrderPaid{BaseEvent: base(o, now), Total: o.Total}}, false, nil
}

func startProcessing(o *Order, op Operation, now time.Time) ([]Event, bool, error) {
	noop, err := advance(o, op.Name, StatePaid, StateProcessing)
	if noop || err != nil {
		return nil, noop, err
	}
	o.State = StateProcessing
	o.setItemStates(ItemInPreparation)
	stamp(&o.Timestamps.ProcessingStartedAt, now)
	items := make([]KitchenItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, KitchenItem{ItemID: item.ID, ProductID: item.ProductID, Quantity: item.Quantity, Comment: item.Comment})
	}
	event := KitchenOrderStartProcessing{BaseEvent: base(o, now), Reference: o.Reference, Type: o.Type, Items: items}
	return []Event{event}, false, nil
}

func itemFinished(o *Order, op Operation, now time.Time) ([]Event, bool, error) {
	if strings.TrimSpace(op.ItemID) == "" {
		return nil, false, ErrMissingItemID
	}
	if o.State.Before(StateProcessing) {
		return nil, false, &TransitionError{Operation: op.Name, Expected: StateProcessing, Actual: o.State}
	}
	idx := o.itemIndex(op.ItemID)
	if idx < 0 {
		return nil, false, ErrItemNotFound
	}
	if o.Items[idx].State.Done() {
		return nil, true, nil
	}
	o.Items[idx].State = ItemReady
	stamp(&o.Items[idx].FinishedAt, now)
	events := []Event{OrderItemFinished{BaseEvent: base(o, now), ItemID: op.ItemID}}
	if o.AllItemsDone() {
		o.State = StatePrepared
		stamp(&o.Timestamps.PreparationFinishedAt, now)
		events = append(events, OrderPrepared{BaseEvent: base(o, now)})
	}
	return events, false, nil
}

func startDelivery(o *Order, op Operation, now time.Time) ([]Event, bool, error) {
	if o.Type != OrderTypeDelivery {
		return nil, false, typeMismatch(op.Name, o.Type)
	}
	noop, err := advance(o, op.Name, StatePrepared, StateDelivering)
	if noop || err != nil {
		return nil, noop, err
	}
	o.State = StateDelivering
	stamp(&o.Timestamps.DeliveryStartedAt, now)
	return nil, false, nil
}

func delivered(o *Order, op Operation, now time.Time) ([]Event, bool, error) {
	if o.Type != OrderTypeDelivery {
		return nil, false, typeMismatch(op.Name, o.Type)
	}
	noop, err := advance(o, op.Name, StateDelivering, StateClosed)
	if noop || err != nil {
		return nil, noop, err
	}
	if !o.AllItemsDone() {
		return nil, false, ErrItemsNotReady
	}
	o.State = StateClosed
	o.setItemStates(ItemDelivered)
	stamp(&o.Timestamps.DeliveredAt, now)
	stamp(&o.Timestamps.ClosedAt, now)
	return []Event{OrderClosed{BaseEvent: base(o, now), Type: o.Type}}, false, nil
}

func served(o *Order, op Operation, now time.Time) ([]Event, bool, error) {
	if o.Type == OrderTypeDelivery {
		return nil, false, typeMismatch(op.Name, o.Type)
	}
	noop, err := advance(o, op.Name, StatePrepared, StateClosed)
	if noop || err != nil {
		return nil, noop, err
	}
	if !o.AllItemsDone() {
		return nil, false, ErrItemsNotReady
	}
	o.State = StateClosed
	o.setItemStates(ItemDelivered)
	stamp(&o.Timestamps.ClosedAt, now)
	return []Event{OrderClosed{BaseEvent: base(o, now), Type: o.Type}}, false, nil
}

func base(o *Order, now time.Time) BaseEvent {
	return BaseEvent{OrderID: o.ID, Timestamp: now}
}
