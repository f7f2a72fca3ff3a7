package ports

import (
	"context"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
)

// Result is a ticket after a command; Noop is set when nothing changed.
type Result struct {
	Ticket *TicketProjection
	Noop   bool
}

// ReceiveInput is the order handed to the kitchen.
type ReceiveInput struct {
	OrderID   string
	Reference string
	OrderType string
	Items     []domain.Item
}

// Service is what the kitchen monitor and the bus consumers call.
type Service interface {
	Receive(ctx context.Context, in ReceiveInput) (*Result, error)
	Start(ctx context.Context, orderID string) (*Result, error)
	FinishItem(ctx context.Context, orderID, itemID string) (*Result, error)
	Get(ctx context.Context, orderID string) (*TicketProjection, error)
	List(ctx context.Context, states []domain.TicketState) ([]*TicketProjection, error)
}
