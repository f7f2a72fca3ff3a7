package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
)

// StartProcessingEvent is the order service's request to prepare an order.
const StartProcessingEvent = "kitchen.order.start_processing"

type startProcessing struct {
	OrderID   string        `json:"orderId"`
	Reference string        `json:"reference"`
	Type      string        `json:"type"`
	Items     []domain.Item `json:"items"`
}

// Reactions queues tickets for orders the order service hands over.
type Reactions struct {
	service ports.Service
}

var _ messaging.Handler = (*Reactions)(nil)

func NewReactions(service ports.Service) *Reactions {
	return &Reactions{service: service}
}

func (r *Reactions) Handle(ctx context.Context, d messaging.Delivery) error {
	if d.Name != StartProcessingEvent {
		return nil
	}
	var payload startProcessing
	if err := json.Unmarshal(d.Payload, &payload); err != nil {
		return messaging.Permanent(fmt.Errorf("decode %s: %w", d.Name, err))
	}
	_, err := r.service.Receive(ctx, ports.ReceiveInput{
		OrderID:   payload.OrderID,
		Reference: payload.Reference,
		OrderType: payload.Type,
		Items:     payload.Items,
	})
	if errors.Is(err, ErrInvalidInput) {
		return messaging.Permanent(err)
	}
	return err
}
