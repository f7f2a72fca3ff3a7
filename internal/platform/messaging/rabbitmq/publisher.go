package rabbitmq

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

var _ outbox.Publisher = (*Publisher)(nil)

// Publisher sends outbox messages to the topic exchange with the event name as
// routing key and waits for the broker confirm.
type Publisher struct {
	conn     *Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(conn *Connection, exchange string) *Publisher {
	if exchange == "" {
		exchange = messaging.DefaultTopic
	}
	return &Publisher{conn: conn, exchange: exchange}
}

// Publish blocks until the broker confirms the message or ctx ends.
func (p *Publisher) Publish(ctx context.Context, msg outbox.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, msg.Name, false, false, Publishing(ctx, msg))
	if err != nil {
		p.reset()
		return errors.Wrapf(err, "publish %s", msg.ID)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return errors.Wrapf(err, "confirm %s", msg.ID)
	}
	if !acked {
		return errors.Errorf("broker nacked %s", msg.ID)
	}
	return nil
}

// Close releases the publishing channel. The connection stays open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := Declare(ch, Topology{Exchange: p.exchange}); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "enable publisher confirms")
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

// Publishing builds the AMQP envelope for msg, carrying the trace context of ctx.
func Publishing(ctx context.Context, msg outbox.Message) amqp.Publishing {
	headers := messaging.InjectTrace(ctx, map[string]string{
		messaging.HeaderAggregateID: msg.AggregateID,
	})
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         msg.Name,
		Timestamp:    msg.OccurredAt,
		Headers:      table,
		Body:         msg.Payload,
	}
}
