package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application"
	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/dedup"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
)

func paidOrder(t *testing.T, svc *application.Service) {
	t.Helper()
	ctx := context.Background()
	price := decimal.RequireFromString("2.00")
	_, err := svc.CreateOrder(ctx, types.CreateOrderInput{OrderID: orderID, Type: "TakeAway"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, types.AddItemInput{OrderID: orderID, ItemID: "item-1", ProductID: "tea", Quantity: 1, UnitPrice: &price})
	require.NoError(t, err)
	_, err = svc.ConfirmOrder(ctx, types.OrderRef{OrderID: orderID})
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, types.OrderRef{OrderID: orderID})
	require.NoError(t, err)
}

func delivery(t *testing.T, id, name string, payload any) messaging.Delivery {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return messaging.Delivery{ID: id, Name: name, Payload: raw}
}

type countingDedup struct {
	*dedup.MemoryStore
	marks int
}

func (c *countingDedup) Mark(ctx context.Context, key string) error {
	c.marks++
	return c.MemoryStore.Mark(ctx, key)
}

func TestReactionsDriveTheKitchenHandOff(t *testing.T) {
	svc, repo := newService(t)
	paidOrder(t, svc)
	seen := &countingDedup{MemoryStore: dedup.NewMemoryStore(time.Hour)}
	reactions := application.NewReactions(svc, seen, nil)
	ctx := context.Background()

	paid := delivery(t, orderID+":4:0", domain.EventOrderPaid, map[string]string{"orderId": orderID})
	require.NoError(t, reactions.Handle(ctx, paid))
	require.NoError(t, reactions.Handle(ctx, paid))
	assert.Equal(t, 1, seen.marks, "the redelivery is skipped before reaching the service")

	order, err := svc.GetOrder(ctx, types.OrderRef{OrderID: orderID})
	require.NoError(t, err)
	assert.Equal(t, domain.StateProcessing, order.Entity.State)

	finished := delivery(t, "kitchen:"+orderID+":item-1", application.KitchenItemFinishedEvent,
		map[string]string{"orderId": orderID, "itemId": "item-1"})
	require.NoError(t, reactions.Handle(ctx, finished))

	order, err = svc.GetOrder(ctx, types.OrderRef{OrderID: orderID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePrepared, order.Entity.State)
	assert.Equal(t, 1, eventCounts(repo.Outbox().Messages())[domain.EventKitchenOrderStartProcessing])
}

func TestReactionsWithoutDedupStayIdempotent(t *testing.T) {
	svc, repo := newService(t)
	paidOrder(t, svc)
	reactions := application.NewReactions(svc, nil, nil)
	ctx := context.Background()

	paid := delivery(t, orderID+":4:0", domain.EventOrderPaid, map[string]string{"orderId": orderID})
	require.NoError(t, reactions.Handle(ctx, paid))
	require.NoError(t, reactions.Handle(ctx, paid))
	assert.Equal(t, 1, eventCounts(repo.Outbox().Messages())[domain.EventKitchenOrderStartProcessing])
}

func TestReactionsSettlePoisonMessages(t *testing.T) {
	svc, _ := newService(t)
	reactions := application.NewReactions(svc, nil, nil)
	ctx := context.Background()

	cases := map[string]messaging.Delivery{
		"malformed payload": {ID: "a", Name: domain.EventOrderPaid, Payload: []byte(`{`)},
		"missing order id":  delivery(t, "b", domain.EventOrderPaid, map[string]string{}),
		"unknown order":     delivery(t, "c", domain.EventOrderPaid, map[string]string{"orderId": orderID}),
		"missing item id":   delivery(t, "d", application.KitchenItemFinishedEvent, map[string]string{"orderId": orderID}),
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			err := reactions.Handle(ctx, d)
			require.Error(t, err)
			assert.True(t, messaging.IsPermanent(err))
		})
	}

	require.NoError(t, reactions.Handle(ctx, messaging.Delivery{Name: domain.EventOrderCreated, Payload: []byte(`{`)}))
	assert.ElementsMatch(t, []string{domain.EventOrderPaid, application.KitchenItemFinishedEvent}, application.EventNames())
}

type flakyDedup struct{}

func (flakyDedup) Seen(context.Context, string) (bool, error) { return false, errors.New("redis down") }
func (flakyDedup) Mark(context.Context, string) error         { return errors.New("redis down") }

func TestReactionsTolerateDedupOutage(t *testing.T) {
	svc, _ := newService(t)
	paidOrder(t, svc)
	reactions := application.NewReactions(svc, flakyDedup{}, nil)

	paid := delivery(t, orderID+":4:0", domain.EventOrderPaid, map[string]string{"orderId": orderID})
	require.NoError(t, reactions.Handle(context.Background(), paid))
}
