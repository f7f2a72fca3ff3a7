package ports

import (
	"context"
	"errors"
	"time"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrAlreadyExists   = errors.New("order already exists")
	ErrVersionConflict = errors.New("order version conflict")
	// ErrLifecycleEnded reports an operation that would change an order whose
	// lifecycle can no longer accept changes. Retrying does not help.
	ErrLifecycleEnded = errors.New("order lifecycle is not running")
)

// Repository stores one snapshot per order id together with the outbox
// messages produced by the transition that wrote it.
type Repository interface {
	// Create writes version 1 of a new order.
	Create(ctx context.Context, order *domain.Order, msgs []outbox.Message) (*types.OrderProjection, error)
	// Save writes expectedVersion+1 only when the stored version equals expectedVersion.
	Save(ctx context.Context, order *domain.Order, expectedVersion int64, msgs []outbox.Message) (*types.OrderProjection, error)
	GetByID(ctx context.Context, id string) (*types.OrderProjection, error)
	ListByState(ctx context.Context, states []domain.State) ([]*types.OrderProjection, error)
	// ArchiveClosedBefore hides closed orders older than cutoff from listings and returns how many were archived.
	ArchiveClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
