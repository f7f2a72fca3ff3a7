package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

type settlement struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	settled []settlement
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.settled = append(f.settled, settlement{acked: true})
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.settled = append(f.settled, settlement{nacked: true, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.settled = append(f.settled, settlement{nacked: true, requeue: requeue})
	return nil
}

func TestConsumerSettlesByOutcome(t *testing.T) {
	cases := map[string]struct {
		err  error
		want settlement
	}{
		"success acks":               {err: nil, want: settlement{acked: true}},
		"permanent dead-letters":     {err: messaging.Permanent(errors.New("bad payload")), want: settlement{nacked: true}},
		"transient failure requeues": {err: errors.New("db down"), want: settlement{nacked: true, requeue: true}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			var got messaging.Delivery
			handler := messaging.HandlerFunc(func(_ context.Context, d messaging.Delivery) error {
				got = d
				return tc.err
			})
			c := NewConsumer(nil, Topology{Exchange: messaging.DefaultTopic, Queue: "orders"})
			c.dispatch(context.Background(), handler, amqp.Delivery{
				Acknowledger: ack,
				MessageId:    "order-1:3:0",
				Type:         "orders.order.paid",
				RoutingKey:   "orders.order.paid",
				Headers:      amqp.Table{messaging.HeaderAggregateID: "order-1"},
				Body:         []byte(`{"orderId":"order-1"}`),
			})

			require.Equal(t, []settlement{tc.want}, ack.settled)
			assert.Equal(t, "order-1:3:0", got.ID)
			assert.Equal(t, "orders.order.paid", got.Name)
			assert.Equal(t, "order-1", got.Key)
		})
	}
}

func TestDeliveryFallsBackToRoutingKey(t *testing.T) {
	d := toDelivery(amqp.Delivery{RoutingKey: "kitchen.item.finished", Headers: amqp.Table{"retries": int32(2)}})
	assert.Equal(t, "kitchen.item.finished", d.Name)
	assert.NotContains(t, d.Headers, "retries")
}

type recordingDeclarer struct {
	exchanges map[string]string
	queues    map[string]amqp.Table
	bindings  []string
}

func (r *recordingDeclarer) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	r.exchanges[name] = kind
	return nil
}

func (r *recordingDeclarer) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	r.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (r *recordingDeclarer) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	r.bindings = append(r.bindings, exchange+"->"+name+":"+key)
	return nil
}

func TestDeclareWiresDeadLetterQueue(t *testing.T) {
	rec := &recordingDeclarer{exchanges: map[string]string{}, queues: map[string]amqp.Table{}}
	err := Declare(rec, Topology{
		Exchange:    "orders.events",
		Queue:       "orders.reactions",
		BindingKeys: []string{"orders.order.paid", "kitchen.item.finished"},
	})
	require.NoError(t, err)

	assert.Equal(t, amqp.ExchangeTopic, rec.exchanges["orders.events"])
	assert.Equal(t, amqp.ExchangeFanout, rec.exchanges["orders.events.dlx"])
	assert.Equal(t, "orders.events.dlx", rec.queues["orders.reactions"]["x-dead-letter-exchange"])
	assert.Contains(t, rec.queues, "orders.reactions.dlq")
	assert.Equal(t, []string{
		"orders.events.dlx->orders.reactions.dlq:",
		"orders.events->orders.reactions:orders.order.paid",
		"orders.events->orders.reactions:kitchen.item.finished",
	}, rec.bindings)
}

func TestDeclarePublishOnlySkipsQueues(t *testing.T) {
	rec := &recordingDeclarer{exchanges: map[string]string{}, queues: map[string]amqp.Table{}}
	require.NoError(t, Declare(rec, Topology{Exchange: "orders.events"}))
	assert.Len(t, rec.exchanges, 1)
	assert.Empty(t, rec.queues)
}

func TestPublishingEnvelope(t *testing.T) {
	at := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	p := Publishing(context.Background(), outbox.Message{
		ID:          "order-1:1:0",
		AggregateID: "order-1",
		Name:        "orders.order.created",
		Payload:     []byte(`{}`),
		OccurredAt:  at,
	})
	assert.Equal(t, "order-1:1:0", p.MessageId)
	assert.Equal(t, "orders.order.created", p.Type)
	assert.Equal(t, amqp.Persistent, p.DeliveryMode)
	assert.Equal(t, at, p.Timestamp)
	assert.Equal(t, "order-1", p.Headers[messaging.HeaderAggregateID])
}
