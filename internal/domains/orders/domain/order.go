package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// State is the single authoritative lifecycle position of an order.
type State string

const (
	StateCreating   State = "Creating"
	StateConfirmed  State = "Confirmed"
	StatePaid       State = "Paid"
	StateProcessing State = "Processing"
	StatePrepared   State = "Prepared"
	StateDelivering State = "Delivering"
	StateClosed     State = "Closed"
)

var stateRank = map[State]int{
	StateCreating:   0,
	StateConfirmed:  1,
	StatePaid:       2,
	StateProcessing: 3,
	StatePrepared:   4,
	StateDelivering: 5,
	StateClosed:     6,
}

// Valid reports whether the state is one of the known lifecycle states.
func (s State) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Before reports whether s precedes other in the lifecycle total order.
func (s State) Before(other State) bool {
	return stateRank[s] < stateRank[other]
}

// OrderType selects the fulfillment path of an order.
type OrderType string

const (
	OrderTypeInHouse  OrderType = "InHouse"
	OrderTypeTakeAway OrderType = "TakeAway"
	OrderTypeDelivery OrderType = "Delivery"
)

// Valid reports whether the type is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeInHouse, OrderTypeTakeAway, OrderTypeDelivery:
		return true
	default:
		return false
	}
}

// ItemState mirrors the kitchen's view of a single line item.
type ItemState string

const (
	ItemPending       ItemState = "Pending"
	ItemInPreparation ItemState = "InPreparation"
	ItemReady         ItemState = "Ready"
	ItemDelivered     ItemState = "Delivered"
)

// Done reports whether the kitchen has finished the item.
func (s ItemState) Done() bool {
	return s == ItemReady || s == ItemDelivered
}

// Address is a postal address used for delivery orders.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Validate requires the fields a courier needs.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" || strings.TrimSpace(a.City) == "" {
		return ErrInvalidAddress
	}
	return nil
}

// Customer holds the customer data attached to an order.
type Customer struct {
	Name      string    `json:"name"`
	LoyaltyID string    `json:"loyaltyId,omitempty"`
	Addresses []Address `json:"addresses,omitempty"`
}

// Equal compares two customers field by field.
func (c Customer) Equal(other Customer) bool {
	return c.Name == other.Name && c.LoyaltyID == other.LoyaltyID && slices.Equal(c.Addresses, other.Addresses)
}

func (c *Customer) clone() *Customer {
	if c == nil {
		return nil
	}
	copy := *c
	copy.Addresses = slices.Clone(c.Addresses)
	return &copy
}

// LineItem is one product line of an order.
type LineItem struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Comment    string          `json:"comment,omitempty"`
	State      ItemState       `json:"state"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// Subtotal is quantity times unit price.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i LineItem) validate() error {
	switch {
	case strings.TrimSpace(i.ID) == "":
		return ErrMissingItemID
	case strings.TrimSpace(i.ProductID) == "":
		return ErrMissingProduct
	case i.Quantity <= 0:
		return ErrInvalidQuantity
	case i.UnitPrice.IsNegative():
		return ErrInvalidPrice
	}
	return nil
}

// Timestamps records when each major transition was accepted. Every field is write-once.
type Timestamps struct {
	CreatedAt             *time.Time `json:"createdAt,omitempty"`
	ConfirmedAt           *time.Time `json:"confirmedAt,omitempty"`
	PaidAt                *time.Time `json:"paidAt,omitempty"`
	ProcessingStartedAt   *time.Time `json:"processingStartedAt,omitempty"`
	PreparationFinishedAt *time.Time `json:"preparationFinishedAt,omitempty"`
	DeliveryStartedAt     *time.Time `json:"deliveryStartedAt,omitempty"`
	DeliveredAt           *time.Time `json:"deliveredAt,omitempty"`
	ClosedAt              *time.Time `json:"closedAt,omitempty"`
}

// Order is the aggregate root tracking one purchase from creation to closure.
// Fields are exported for persistence and transport; mutation goes through Apply.
type Order struct {
	ID              string          `json:"id"`
	Reference       string          `json:"reference"`
	Type            OrderType       `json:"type"`
	State           State           `json:"state"`
	Customer        *Customer       `json:"customer,omitempty"`
	DeliveryAddress *Address        `json:"deliveryAddress,omitempty"`
	Items           []LineItem      `json:"items"`
	Comments        string          `json:"comments,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Timestamps      Timestamps      `json:"timestamps"`
}

// Clone returns a deep copy so callers can never alias stored state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	copy := *o
	copy.Customer = o.Customer.clone()
	if o.DeliveryAddress != nil {
		addr := *o.DeliveryAddress
		copy.DeliveryAddress = &addr
	}
	copy.Items = make([]LineItem, len(o.Items))
	for i, item := range o.Items {
		item.FinishedAt = cloneTime(item.FinishedAt)
		copy.Items[i] = item
	}
	copy.Timestamps = Timestamps{
		CreatedAt:             cloneTime(o.Timestamps.CreatedAt),
		ConfirmedAt:           cloneTime(o.Timestamps.ConfirmedAt),
		PaidAt:                cloneTime(o.Timestamps.PaidAt),
		ProcessingStartedAt:   cloneTime(o.Timestamps.ProcessingStartedAt),
		PreparationFinishedAt: cloneTime(o.Timestamps.PreparationFinishedAt),
		DeliveryStartedAt:     cloneTime(o.Timestamps.DeliveryStartedAt),
		DeliveredAt:           cloneTime(o.Timestamps.DeliveredAt),
		ClosedAt:              cloneTime(o.Timestamps.ClosedAt),
	}
	return &copy
}

// Item returns the line item with the given id.
func (o *Order) Item(id string) (LineItem, bool) {
	if i := o.itemIndex(id); i >= 0 {
		return o.Items[i], true
	}
	return LineItem{}, false
}

// AllItemsDone recomputes kitchen completion from the items themselves.
func (o *Order) AllItemsDone() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if !item.State.Done() {
			return false
		}
	}
	return true
}

func (o *Order) itemIndex(id string) int {
	return slices.IndexFunc(o.Items, func(item LineItem) bool { return item.ID == id })
}

func (o *Order) recomputeTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	o.Total = total
}

func (o *Order) setItemStates(state ItemState) {
	for i := range o.Items {
		o.Items[i].State = state
	}
}

// ReferenceFor derives the human-readable order code from the order id.
func ReferenceFor(orderID string) string {
	compact := strings.ToUpper(strings.ReplaceAll(orderID, "-", ""))
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return "ORD-" + compact
}

func stamp(field **time.Time, now time.Time) {
	if *field != nil {
		return
	}
	t := now
	*field = &t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copy := *t
	return &copy
}

// States lists every lifecycle state in order.
func States() []State {
	return []State{StateCreating, StateConfirmed, StatePaid, StateProcessing, StatePrepared, StateDelivering, StateClosed}
}
