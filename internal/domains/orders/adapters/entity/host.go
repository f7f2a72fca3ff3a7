// Package entity runs the order rules as addressable single-writer entities:
// one live instance per order id, one operation at a time, state persisted
// with a conditional write at the end of every accepted operation.
package entity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application"
	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
)

var _ ports.Executor = (*Host)(nil)

// entity is the live instance for one order id. It exists while at least one
// caller holds it; loaded caches the last snapshot read or written.
type entity struct {
	mu     sync.Mutex
	refs   int
	loaded *types.OrderProjection
}

// Host dispatches operations to the entity owning each order id.
type Host struct {
	repo       ports.Repository
	now        func() time.Time
	logger     *slog.Logger
	maxRetries int

	mu       sync.Mutex
	entities map[string]*entity
}

type Option func(*Host)

// WithClock overrides the time source stamped on transitions.
func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithConflictRetries bounds how often a write that lost a version race is
// reloaded and re-applied. Conflicts only happen when another process wrote
// the same order.
func WithConflictRetries(n int) Option {
	return func(h *Host) {
		if n >= 0 {
			h.maxRetries = n
		}
	}
}

func NewHost(repo ports.Repository, opts ...Option) *Host {
	h := &Host{
		repo:       repo,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxRetries: 3,
		entities:   map[string]*entity{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Create runs CreateOrder on the entity named by the operation's order id.
func (h *Host) Create(ctx context.Context, op domain.Operation) (*types.TransitionResult, error) {
	if op.Name != domain.OpCreateOrder {
		return nil, domain.ErrUnknownOperation
	}
	if op.OrderID == "" {
		return nil, domain.ErrInvalidOrderID
	}
	return h.run(ctx, op.OrderID, op)
}

// Execute runs op against an existing order.
func (h *Host) Execute(ctx context.Context, orderID string, op domain.Operation) (*types.TransitionResult, error) {
	if op.Name == domain.OpCreateOrder {
		return nil, domain.ErrUnknownOperation
	}
	return h.run(ctx, orderID, op)
}

// Get reads the stored snapshot.
func (h *Host) Get(ctx context.Context, orderID string) (*types.OrderProjection, error) {
	return h.repo.GetByID(ctx, orderID)
}

func (h *Host) run(ctx context.Context, orderID string, op domain.Operation) (*types.TransitionResult, error) {
	e, err := h.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer h.release(orderID, e)

	for attempt := 0; ; attempt++ {
		current, err := h.load(ctx, e, orderID)
		if err != nil {
			return nil, err
		}
		var order *domain.Order
		var version int64
		if current != nil {
			order, version = current.Entity, current.Version
		} else if op.Name != domain.OpCreateOrder {
			return nil, ports.ErrNotFound
		}

		decision, err := domain.Apply(order, op, h.now())
		if err != nil {
			return nil, err
		}
		if decision.Noop {
			return &types.TransitionResult{Order: current, Noop: true}, nil
		}

		next := version + 1
		msgs, err := application.OutboxMessages(orderID, next, decision.Events)
		if err != nil {
			return nil, err
		}
		saved, err := application.Persist(ctx, h.repo, decision.Order, next, msgs)
		if err == nil {
			e.loaded = saved
			h.logger.Debug("order transition persisted",
				slog.String("order.id", orderID),
				slog.String("operation", string(op.Name)),
				slog.Int64("version", saved.Version),
			)
			return &types.TransitionResult{Order: saved}, nil
		}
		e.loaded = nil
		if !errors.Is(err, ports.ErrVersionConflict) && !errors.Is(err, ports.ErrAlreadyExists) {
			return nil, err
		}
		if attempt >= h.maxRetries {
			return nil, err
		}
		h.logger.Info("order write lost a version race, reloading",
			slog.String("order.id", orderID),
			slog.String("operation", string(op.Name)),
			slog.Int("attempt", attempt+1),
		)
	}
}

func (h *Host) load(ctx context.Context, e *entity, orderID string) (*types.OrderProjection, error) {
	if e.loaded != nil {
		return e.loaded, nil
	}
	current, err := h.repo.GetByID(ctx, orderID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.loaded = current
	return current, nil
}

// acquire returns the entity for id with its lock held. Waiting for the lock
// honours ctx cancellation.
func (h *Host) acquire(ctx context.Context, id string) (*entity, error) {
	h.mu.Lock()
	e, ok := h.entities[id]
	if !ok {
		e = &entity{}
		h.entities[id] = e
	}
	e.refs++
	h.mu.Unlock()

	if e.mu.TryLock() {
		return e, nil
	}
	locked := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
		return e, nil
	case <-ctx.Done():
		go func() {
			<-locked
			h.release(id, e)
		}()
		return nil, ctx.Err()
	}
}

// release unlocks the entity and drops it once no caller holds it.
func (h *Host) release(id string, e *entity) {
	e.mu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(h.entities, id)
	}
}

// Live reports how many entities are currently held.
func (h *Host) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entities)
}
