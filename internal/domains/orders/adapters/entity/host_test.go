package entity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/memory"
	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

const orderID = "6b0e2f4a-9c1d-4e3f-8a2b-7c6d5e4f3a2b"

var t0 = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return t0 }
}

func item(id string, qty int) domain.LineItem {
	return domain.LineItem{ID: id, ProductID: "sku-" + id, Quantity: qty, UnitPrice: decimal.RequireFromString("4.50")}
}

func mustRun(t *testing.T, h *Host, op domain.Operation) *types.TransitionResult {
	t.Helper()
	var (
		res *types.TransitionResult
		err error
	)
	if op.Name == domain.OpCreateOrder {
		res, err = h.Create(context.Background(), op)
	} else {
		res, err = h.Execute(context.Background(), orderID, op)
	}
	require.NoError(t, err)
	return res
}

func messageIDs(msgs []outbox.Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestHostPersistsVersionsAndOutbox(t *testing.T) {
	repo := memory.NewRepository(nil)
	h := NewHost(repo, WithClock(fixedClock()))

	res := mustRun(t, h, domain.CreateOrder(orderID, domain.OrderTypeInHouse, nil, ""))
	require.False(t, res.Noop)
	require.EqualValues(t, 1, res.Order.Version)

	mustRun(t, h, domain.AddItem(item("a", 2)))
	res = mustRun(t, h, domain.ConfirmOrder())
	require.EqualValues(t, 3, res.Order.Version)

	res = mustRun(t, h, domain.ConfirmOrder())
	require.True(t, res.Noop)
	require.EqualValues(t, 3, res.Order.Version)

	require.Equal(t, []string{
		orderID + ":1:0",
		orderID + ":3:0",
	}, messageIDs(repo.Outbox().Messages()))
	require.Zero(t, h.Live())
}

func TestHostCreateIsIdempotent(t *testing.T) {
	repo := memory.NewRepository(nil)
	h := NewHost(repo, WithClock(fixedClock()))

	first := mustRun(t, h, domain.CreateOrder(orderID, domain.OrderTypeTakeAway, nil, ""))
	second := mustRun(t, h, domain.CreateOrder(orderID, domain.OrderTypeTakeAway, nil, ""))

	require.True(t, second.Noop)
	require.Equal(t, first.Order.Entity.Reference, second.Order.Entity.Reference)
	require.Len(t, repo.Outbox().Messages(), 1)

	_, err := h.Create(context.Background(), domain.CreateOrder(orderID, "Drone", nil, ""))
	require.ErrorIs(t, err, domain.ErrInvalidOrderType)
	require.Len(t, repo.Outbox().Messages(), 1)
}

func TestHostUnknownOrder(t *testing.T) {
	h := NewHost(memory.NewRepository(nil))

	_, err := h.Execute(context.Background(), orderID, domain.ConfirmOrder())
	require.ErrorIs(t, err, ports.ErrNotFound)

	_, err = h.Get(context.Background(), orderID)
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestHostRejectionWritesNothing(t *testing.T) {
	repo := memory.NewRepository(nil)
	h := NewHost(repo, WithClock(fixedClock()))
	mustRun(t, h, domain.CreateOrder(orderID, domain.OrderTypeInHouse, nil, ""))

	_, err := h.Execute(context.Background(), orderID, domain.ConfirmOrder())
	require.ErrorIs(t, err, domain.ErrNoItems)

	stored, err := repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.EqualValues(t, 1, stored.Version)
	require.Len(t, repo.Outbox().Messages(), 1)
}

func TestHostSerializesConcurrentFinishes(t *testing.T) {
	repo := memory.NewRepository(nil)
	h := NewHost(repo, WithClock(fixedClock()))
	mustRun(t, h, domain.CreateOrder(orderID, domain.OrderTypeInHouse, nil, ""))
	const n = 8
	for i := 0; i < n; i++ {
		mustRun(t, h, domain.AddItem(item(fmt.Sprintf("item-%d", i), 1)))
	}
	mustRun(t, h, domain.ConfirmOrder())
	mustRun(t, h, domain.ConfirmPayment())
	mustRun(t, h, domain.StartProcessing())

	var wg sync.WaitGroup
	for round := 0; round < 3; round++ {
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := h.Execute(context.Background(), orderID, domain.ItemFinished(fmt.Sprintf("item-%d", i)))
				assert.NoError(t, err)
			}(i)
		}
	}
	wg.Wait()

	stored, err := repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, domain.StatePrepared, stored.Entity.State)

	prepared := 0
	finished := 0
	for _, m := range repo.Outbox().Messages() {
		switch m.Name {
		case domain.EventOrderPrepared:
			prepared++
		case domain.EventOrderItemFinished:
			finished++
		}
	}
	require.Equal(t, 1, prepared)
	require.Equal(t, n, finished)
	require.Zero(t, h.Live())
}

// racingRepo lets another writer update the order right before the first Save.
type racingRepo struct {
	ports.Repository
	once  sync.Once
	other func()
}

func (r *racingRepo) Save(ctx context.Context, order *domain.Order, expectedVersion int64, msgs []outbox.Message) (*types.OrderProjection, error) {
	r.once.Do(r.other)
	return r.Repository.Save(ctx, order, expectedVersion, msgs)
}

func TestHostReappliesAfterVersionConflict(t *testing.T) {
	mem := memory.NewRepository(nil)
	replica := NewHost(mem, WithClock(fixedClock()))
	mustRun(t, replica, domain.CreateOrder(orderID, domain.OrderTypeInHouse, nil, ""))

	repo := &racingRepo{Repository: mem}
	repo.other = func() {
		_, err := replica.Execute(context.Background(), orderID, domain.AddItem(item("b", 1)))
		require.NoError(t, err)
	}
	h := NewHost(repo, WithClock(fixedClock()))

	res, err := h.Execute(context.Background(), orderID, domain.AddItem(item("a", 2)))
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Order.Version)
	require.Len(t, res.Order.Entity.Items, 2)
	require.Equal(t, "b", res.Order.Entity.Items[0].ID)
}

func TestHostGivesUpAfterConflictRetries(t *testing.T) {
	mem := memory.NewRepository(nil)
	h := NewHost(&alwaysConflicting{Repository: mem}, WithClock(fixedClock()), WithConflictRetries(1))
	_, err := h.Create(context.Background(), domain.CreateOrder(orderID, domain.OrderTypeInHouse, nil, ""))
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), orderID, domain.AddItem(item("a", 1)))
	require.ErrorIs(t, err, ports.ErrVersionConflict)
}

type alwaysConflicting struct {
	ports.Repository
}

func (alwaysConflicting) Save(context.Context, *domain.Order, int64, []outbox.Message) (*types.OrderProjection, error) {
	return nil, ports.ErrVersionConflict
}

func TestHostHonoursContextWhileWaiting(t *testing.T) {
	h := NewHost(memory.NewRepository(nil))
	held, err := h.acquire(context.Background(), orderID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Execute(ctx, orderID, domain.ConfirmOrder())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	h.release(orderID, held)
	require.Eventually(t, func() bool { return h.Live() == 0 }, time.Second, 5*time.Millisecond)
}
