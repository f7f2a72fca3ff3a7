// Package messaging holds the transport-neutral pieces shared by the event bus
// publishers and consumers.
package messaging

import (
	"context"
	"errors"
	"fmt"
)

// DefaultTopic is the exchange (RabbitMQ) or topic (Kafka) order events travel on.
const DefaultTopic = "orders.events"

// Header keys carried next to every payload.
const (
	HeaderMessageID   = "message_id"
	HeaderEventType   = "event_type"
	HeaderAggregateID = "aggregate_id"
)

// ErrPermanent marks a delivery that will never succeed. Consumers settle it
// instead of redelivering: dead-letter on RabbitMQ, commit and forward on Kafka.
var ErrPermanent = errors.New("message cannot be processed")

// Permanent wraps err so IsPermanent reports true.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Delivery is one inbound message after the transport envelope is removed.
type Delivery struct {
	ID      string
	Name    string
	Key     string
	Payload []byte
	Headers map[string]string
}

// Handler processes deliveries. A nil error acknowledges the message.
type Handler interface {
	Handle(ctx context.Context, d Delivery) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, d Delivery) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// Router dispatches deliveries by event name. Names without a route are
// acknowledged without effect.
type Router struct {
	routes map[string]Handler
}

func NewRouter() *Router {
	return &Router{routes: map[string]Handler{}}
}

// Route registers h for name, replacing any previous handler.
func (r *Router) Route(name string, h Handler) *Router {
	r.routes[name] = h
	return r
}

// Names lists the routed event names, used as binding keys by transports.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	return names
}

func (r *Router) Handle(ctx context.Context, d Delivery) error {
	h, ok := r.routes[d.Name]
	if !ok {
		return nil
	}
	return h.Handle(ctx, d)
}
