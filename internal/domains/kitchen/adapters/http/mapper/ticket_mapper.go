package mapper

import (
	"time"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
)

// Item is one line on the kitchen monitor.
type Item struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"productId"`
	Quantity   int        `json:"quantity"`
	Comment    string     `json:"comment,omitempty"`
	Finished   bool       `json:"finished"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Ticket is the HTTP representation of a kitchen ticket.
type Ticket struct {
	OrderID    string     `json:"orderId"`
	Reference  string     `json:"reference,omitempty"`
	OrderType  string     `json:"orderType,omitempty"`
	State      string     `json:"state"`
	Items      []Item     `json:"items"`
	ReceivedAt time.Time  `json:"receivedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Version    int64      `json:"version"`
}

func FromProjection(p *ports.TicketProjection) Ticket {
	if p == nil || p.Entity == nil {
		return Ticket{}
	}
	t := p.Entity
	out := Ticket{
		OrderID:    t.OrderID,
		Reference:  t.Reference,
		OrderType:  t.OrderType,
		State:      string(t.State),
		Items:      make([]Item, 0, len(t.Items)),
		ReceivedAt: t.ReceivedAt,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		Version:    p.Version,
	}
	for _, item := range t.Items {
		out.Items = append(out.Items, Item{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Comment:    item.Comment,
			Finished:   item.Finished(),
			FinishedAt: item.FinishedAt,
		})
	}
	return out
}

func FromProjectionList(list []*ports.TicketProjection) []Ticket {
	out := make([]Ticket, 0, len(list))
	for _, p := range list {
		out = append(out, FromProjection(p))
	}
	return out
}
