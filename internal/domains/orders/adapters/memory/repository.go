package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
	"github.com/Apurer/order-lifecycle-engine/internal/shared/projection"
)

var _ ports.Repository = (*Repository)(nil)

type record struct {
	order     *domain.Order
	version   int64
	createdAt time.Time
	updatedAt time.Time
	archived  bool
}

// Repository is an in-memory order snapshot store. Outbox messages are appended
// under the same lock as the snapshot write.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]*record
	outbox *outbox.MemoryStore
	now    func() time.Time
}

// NewRepository writes outbox messages into store, or into a private store when nil.
func NewRepository(store *outbox.MemoryStore) *Repository {
	if store == nil {
		store = outbox.NewMemoryStore()
	}
	return &Repository{orders: map[string]*record{}, outbox: store, now: time.Now}
}

// Outbox exposes the store the relay reads from.
func (r *Repository) Outbox() *outbox.MemoryStore {
	return r.outbox
}

func (r *Repository) Create(_ context.Context, order *domain.Order, msgs []outbox.Message) (*types.OrderProjection, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return nil, ports.ErrAlreadyExists
	}
	now := r.now().UTC()
	rec := &record{order: order.Clone(), version: 1, createdAt: now, updatedAt: now}
	r.orders[order.ID] = rec
	r.outbox.Append(msgs...)
	return rec.projection(), nil
}

func (r *Repository) Save(_ context.Context, order *domain.Order, expectedVersion int64, msgs []outbox.Message) (*types.OrderProjection, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.orders[order.ID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if rec.version != expectedVersion {
		return nil, ports.ErrVersionConflict
	}
	rec.order = order.Clone()
	rec.version++
	rec.updatedAt = r.now().UTC()
	r.outbox.Append(msgs...)
	return rec.projection(), nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*types.OrderProjection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return rec.projection(), nil
}

func (r *Repository) ListByState(_ context.Context, states []domain.State) ([]*types.OrderProjection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*types.OrderProjection, 0, len(r.orders))
	for _, rec := range r.orders {
		if rec.archived || !slices.Contains(states, rec.order.State) {
			continue
		}
		list = append(list, rec.projection())
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Metadata.CreatedAt.Equal(list[j].Metadata.CreatedAt) {
			return list[i].Metadata.CreatedAt.Before(list[j].Metadata.CreatedAt)
		}
		return list[i].Entity.ID < list[j].Entity.ID
	})
	return list, nil
}

func (r *Repository) ArchiveClosedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.orders {
		closedAt := rec.order.Timestamps.ClosedAt
		if rec.archived || rec.order.State != domain.StateClosed || closedAt == nil || !closedAt.Before(cutoff) {
			continue
		}
		rec.archived = true
		n++
	}
	return n, nil
}

func (rec *record) projection() *types.OrderProjection {
	return projection.New(rec.order.Clone(), rec.version, rec.createdAt, rec.updatedAt)
}
