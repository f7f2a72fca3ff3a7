// Package rabbitmq publishes and consumes order events over a topic exchange.
package rabbitmq

import (
	"sync"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the exchange and queues a service declares on connect.
type Topology struct {
	Exchange string
	// Queue is the consumer's durable queue. Empty for publish-only processes.
	Queue string
	// BindingKeys are routing keys bound from Exchange to Queue.
	BindingKeys []string
}

// DeadLetterExchange is where rejected deliveries of Queue are routed.
func (t Topology) DeadLetterExchange() string { return t.Exchange + ".dlx" }

// DeadLetterQueue holds deliveries rejected as permanent failures.
func (t Topology) DeadLetterQueue() string { return t.Queue + ".dlq" }

// Connection wraps an AMQP connection and redials once it drops.
type Connection struct {
	url    string
	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

// Dial opens the connection.
func Dial(url string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}
	return &Connection{url: url, conn: conn}, nil
}

// Channel opens a channel, redialing first if the connection has dropped.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("rabbitmq connection closed")
	}
	if c.conn == nil || c.conn.IsClosed() {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return nil, errors.Wrap(err, "redial rabbitmq")
		}
		c.conn = conn
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	return ch, nil
}

// Close closes the connection permanently.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

// declarer is the part of *amqp.Channel used to declare topology.
type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare creates the exchange and, when a queue is named, the queue with its
// dead-letter pair and bindings. Declarations are idempotent.
func Declare(ch declarer, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "declare exchange %s", t.Exchange)
	}
	if t.Queue == "" {
		return nil
	}
	if err := ch.ExchangeDeclare(t.DeadLetterExchange(), amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "declare exchange %s", t.DeadLetterExchange())
	}
	if _, err := ch.QueueDeclare(t.DeadLetterQueue(), true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "declare queue %s", t.DeadLetterQueue())
	}
	if err := ch.QueueBind(t.DeadLetterQueue(), "", t.DeadLetterExchange(), false, nil); err != nil {
		return errors.Wrapf(err, "bind queue %s", t.DeadLetterQueue())
	}
	args := amqp.Table{"x-dead-letter-exchange": t.DeadLetterExchange()}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return errors.Wrapf(err, "declare queue %s", t.Queue)
	}
	for _, key := range t.BindingKeys {
		if err := ch.QueueBind(t.Queue, key, t.Exchange, false, nil); err != nil {
			return errors.Wrapf(err, "bind queue %s to %s", t.Queue, key)
		}
	}
	return nil
}
