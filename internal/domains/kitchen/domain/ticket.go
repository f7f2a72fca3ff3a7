package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TicketState is the kitchen's progress on one order.
type TicketState string

const (
	TicketQueued        TicketState = "Queued"
	TicketInPreparation TicketState = "InPreparation"
	TicketFinished      TicketState = "Finished"
)

// Valid reports whether s is a known ticket state.
func (s TicketState) Valid() bool {
	switch s {
	case TicketQueued, TicketInPreparation, TicketFinished:
		return true
	default:
		return false
	}
}

var (
	ErrMissingOrderID = errors.New("order id is required")
	ErrNoItems        = errors.New("ticket has no items")
	ErrUnknownItem    = errors.New("item is not on the ticket")
	ErrDuplicateItem  = errors.New("item appears twice on the ticket")
)

// Item is one line the kitchen prepares.
type Item struct {
	ID         string     `json:"itemId"`
	ProductID  string     `json:"productId"`
	Quantity   int        `json:"quantity"`
	Comment    string     `json:"comment,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Finished reports whether the item has been marked done.
func (i Item) Finished() bool { return i.FinishedAt != nil }

// Ticket is the kitchen order created when an order starts processing.
type Ticket struct {
	OrderID    string      `json:"orderId"`
	Reference  string      `json:"reference"`
	OrderType  string      `json:"orderType"`
	State      TicketState `json:"state"`
	Items      []Item      `json:"items"`
	ReceivedAt time.Time   `json:"receivedAt"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// NewTicket queues the items of an order.
func NewTicket(orderID, reference, orderType string, items []Item, now time.Time) (*Ticket, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrMissingOrderID
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	seen := make(map[string]struct{}, len(items))
	queued := make([]Item, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return nil, fmt.Errorf("%w: item without id", ErrUnknownItem)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
		}
		seen[item.ID] = struct{}{}
		item.FinishedAt = nil
		queued = append(queued, item)
	}
	return &Ticket{
		OrderID:    orderID,
		Reference:  reference,
		OrderType:  orderType,
		State:      TicketQueued,
		Items:      queued,
		ReceivedAt: now,
	}, nil
}

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Items = make([]Item, len(t.Items))
	for i, item := range t.Items {
		if item.FinishedAt != nil {
			at := *item.FinishedAt
			item.FinishedAt = &at
		}
		clone.Items[i] = item
	}
	clone.StartedAt = copyTime(t.StartedAt)
	clone.FinishedAt = copyTime(t.FinishedAt)
	return &clone
}

// FinishedItemIDs lists finished items in ticket order.
func (t *Ticket) FinishedItemIDs() []string {
	ids := make([]string, 0, len(t.Items))
	for _, item := range t.Items {
		if item.Finished() {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// Start moves a queued ticket into preparation. It reports false when the
// ticket was already started.
func (t *Ticket) Start(now time.Time) bool {
	if t.State != TicketQueued {
		return false
	}
	t.State = TicketInPreparation
	t.StartedAt = &now
	return true
}

// FinishItem marks one item done and returns the events it raises: none for a
// repeated finish, ItemFinished otherwise, plus OrderFinished for the last item.
func (t *Ticket) FinishItem(itemID string, now time.Time) ([]Event, error) {
	idx := -1
	for i := range t.Items {
		if t.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if t.Items[idx].Finished() {
		return nil, nil
	}

	t.Start(now)
	at := now
	t.Items[idx].FinishedAt = &at
	base := BaseEvent{OrderID: t.OrderID, Timestamp: now}
	events := []Event{ItemFinished{BaseEvent: base, ItemID: itemID}}

	for _, item := range t.Items {
		if !item.Finished() {
			return events, nil
		}
	}
	t.State = TicketFinished
	t.FinishedAt = &at
	return append(events, OrderFinished{BaseEvent: base, Reference: t.Reference}), nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
