package rabbitmq

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
)

// Consumer reads the service queue with manual acknowledgements. Permanent
// failures are rejected into the dead-letter queue, anything else is requeued.
type Consumer struct {
	conn      *Connection
	topology  Topology
	prefetch  int
	reconnect time.Duration
	logger    *slog.Logger
}

type ConsumerOption func(*Consumer)

// WithConsumerLogger injects a slog logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithPrefetch caps unacknowledged deliveries per consumer.
func WithPrefetch(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithReconnectDelay sets the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.reconnect = d
		}
	}
}

func NewConsumer(conn *Connection, topology Topology, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		conn:      conn,
		topology:  topology,
		prefetch:  16,
		reconnect: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Run consumes until ctx is cancelled, reconnecting after channel failures.
func (c *Consumer) Run(ctx context.Context, handler messaging.Handler) error {
	if c == nil || c.conn == nil || handler == nil {
		return errors.New("rabbitmq consumer not wired")
	}
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("rabbitmq consumer disconnected",
			slog.String("queue", c.topology.Queue),
			slog.String("error", fmt.Sprint(err)),
			slog.Duration("retry_in", c.reconnect),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnect):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler messaging.Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return errors.Wrap(err, "set qos")
	}
	if err := Declare(ch, c.topology); err != nil {
		return err
	}
	deliveries, err := ch.Consume(c.topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "consume %s", c.topology.Queue)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return errors.Wrap(amqpErr, "channel closed")
			}
			return errors.New("channel closed")
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.dispatch(ctx, handler, d)
		}
	}
}

// dispatch runs the handler and settles the delivery.
func (c *Consumer) dispatch(ctx context.Context, handler messaging.Handler, d amqp.Delivery) {
	delivery := toDelivery(d)
	err := handler.Handle(messaging.ExtractTrace(ctx, delivery.Headers), delivery)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Warn("ack failed", slog.String("message.id", delivery.ID), slog.String("error", ackErr.Error()))
		}
	case messaging.IsPermanent(err):
		c.logger.Error("dead-lettering message",
			slog.String("message.id", delivery.ID),
			slog.String("message.name", delivery.Name),
			slog.String("error", err.Error()),
		)
		_ = d.Nack(false, false)
	default:
		c.logger.Warn("requeueing message",
			slog.String("message.id", delivery.ID),
			slog.String("message.name", delivery.Name),
			slog.String("error", err.Error()),
		)
		_ = d.Nack(false, true)
	}
}

func toDelivery(d amqp.Delivery) messaging.Delivery {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	name := d.Type
	if name == "" {
		name = d.RoutingKey
	}
	return messaging.Delivery{
		ID:      d.MessageId,
		Name:    name,
		Key:     headers[messaging.HeaderAggregateID],
		Payload: d.Body,
		Headers: headers,
	}
}
