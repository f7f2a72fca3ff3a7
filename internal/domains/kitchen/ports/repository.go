package ports

import (
	"context"
	"errors"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
	"github.com/Apurer/order-lifecycle-engine/internal/shared/projection"
)

var (
	ErrNotFound        = errors.New("ticket not found")
	ErrAlreadyExists   = errors.New("ticket already exists")
	ErrVersionConflict = errors.New("ticket version conflict")
)

// TicketProjection is a stored ticket with its version.
type TicketProjection = projection.Projection[*domain.Ticket]

// Repository stores tickets. Writes carry the outbox messages they raise.
type Repository interface {
	Create(ctx context.Context, ticket *domain.Ticket) (*TicketProjection, error)
	Save(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, msgs []outbox.Message) (*TicketProjection, error)
	Get(ctx context.Context, orderID string) (*TicketProjection, error)
	List(ctx context.Context, states []domain.TicketState) ([]*TicketProjection, error)
}
