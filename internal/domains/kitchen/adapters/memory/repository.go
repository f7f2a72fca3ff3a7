package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
	"github.com/Apurer/order-lifecycle-engine/internal/shared/projection"
)

var _ ports.Repository = (*Repository)(nil)

type record struct {
	ticket    *domain.Ticket
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// Repository keeps tickets in memory and appends their messages to a shared outbox.
type Repository struct {
	mu      sync.RWMutex
	tickets map[string]record
	outbox  *outbox.MemoryStore
	now     func() time.Time
}

// NewRepository shares store with the order repository so one relay drains both.
func NewRepository(store *outbox.MemoryStore) *Repository {
	if store == nil {
		store = outbox.NewMemoryStore()
	}
	return &Repository{tickets: map[string]record{}, outbox: store, now: time.Now}
}

func (r *Repository) Create(_ context.Context, ticket *domain.Ticket) (*ports.TicketProjection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.OrderID]; ok {
		return nil, ports.ErrAlreadyExists
	}
	now := r.now()
	rec := record{ticket: ticket.Clone(), version: 1, createdAt: now, updatedAt: now}
	r.tickets[ticket.OrderID] = rec
	return rec.projection(), nil
}

func (r *Repository) Save(_ context.Context, ticket *domain.Ticket, expectedVersion int64, msgs []outbox.Message) (*ports.TicketProjection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tickets[ticket.OrderID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if rec.version != expectedVersion {
		return nil, ports.ErrVersionConflict
	}
	rec.ticket = ticket.Clone()
	rec.version++
	rec.updatedAt = r.now()
	r.tickets[ticket.OrderID] = rec
	r.outbox.Append(msgs...)
	return rec.projection(), nil
}

func (r *Repository) Get(_ context.Context, orderID string) (*ports.TicketProjection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tickets[orderID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return rec.projection(), nil
}

// List returns matching tickets oldest first.
func (r *Repository) List(_ context.Context, states []domain.TicketState) ([]*ports.TicketProjection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*ports.TicketProjection
	for _, rec := range r.tickets {
		if slices.Contains(states, rec.ticket.State) {
			list = append(list, rec.projection())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Metadata.CreatedAt.Equal(list[j].Metadata.CreatedAt) {
			return list[i].Metadata.CreatedAt.Before(list[j].Metadata.CreatedAt)
		}
		return list[i].Entity.OrderID < list[j].Entity.OrderID
	})
	return list, nil
}

func (rec record) projection() *ports.TicketProjection {
	return projection.New(rec.ticket.Clone(), rec.version, rec.createdAt, rec.updatedAt)
}
