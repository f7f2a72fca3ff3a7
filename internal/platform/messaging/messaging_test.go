package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

func TestRouterDispatchesByName(t *testing.T) {
	var got []string
	record := HandlerFunc(func(_ context.Context, d Delivery) error {
		got = append(got, d.Name+"/"+d.ID)
		return nil
	})
	router := NewRouter().Route("orders.order.paid", record).Route("kitchen.item.finished", record)

	require.NoError(t, router.Handle(context.Background(), Delivery{ID: "1", Name: "orders.order.paid"}))
	require.NoError(t, router.Handle(context.Background(), Delivery{ID: "2", Name: "orders.order.created"}))
	assert.Equal(t, []string{"orders.order.paid/1"}, got)
	assert.ElementsMatch(t, []string{"orders.order.paid", "kitchen.item.finished"}, router.Names())
}

func TestPermanentWrapping(t *testing.T) {
	cause := errors.New("bad payload")
	err := Permanent(cause)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, Permanent(err))
	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(cause))
}

func TestLoopbackSettlement(t *testing.T) {
	transient := errors.New("store down")
	var seen Delivery
	results := map[string]error{"poison": Permanent(errors.New("bad")), "retry": transient}
	publish := Loopback(HandlerFunc(func(_ context.Context, d Delivery) error {
		seen = d
		return results[d.Name]
	}), nil)

	ctx := context.Background()
	require.NoError(t, publish(ctx, outbox.Message{ID: "order-1:2:0", AggregateID: "order-1", Name: "ok"}))
	assert.Equal(t, "order-1", seen.Key)
	assert.Equal(t, "order-1:2:0", seen.Headers[HeaderMessageID])

	assert.NoError(t, publish(ctx, outbox.Message{ID: "x", Name: "poison"}))
	assert.ErrorIs(t, publish(ctx, outbox.Message{ID: "y", Name: "retry"}), transient)
}

func TestTracePropagationRoundTrip(t *testing.T) {
	headers := InjectTrace(context.Background(), nil)
	require.NotNil(t, headers)
	ctx := ExtractTrace(context.Background(), headers)
	assert.NotNil(t, ctx)
}
