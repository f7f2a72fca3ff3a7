package application

import (
	"context"
	"encoding/json"
	"fmt"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

// MessageID is the deterministic id of the index-th event written at version.
func MessageID(orderID string, version int64, index int) string {
	return fmt.Sprintf("%s:%d:%d", orderID, version, index)
}

// OutboxMessages encodes the events of one accepted transition. It is pure and
// safe to call from workflow code.
func OutboxMessages(orderID string, version int64, events []domain.Event) ([]outbox.Message, error) {
	msgs := make([]outbox.Message, 0, len(events))
	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event.EventName(), err)
		}
		msgs = append(msgs, outbox.Message{
			ID:          MessageID(orderID, version, i),
			AggregateID: orderID,
			Name:        event.EventName(),
			Payload:     payload,
			OccurredAt:  event.OccurredAt(),
		})
	}
	return msgs, nil
}

// Persist writes an accepted snapshot at version together with its outbox
// messages. Version 1 creates the order; later versions are conditional on the
// previous one.
func Persist(ctx context.Context, repo ports.Repository, order *domain.Order, version int64, msgs []outbox.Message) (*types.OrderProjection, error) {
	if version <= 1 {
		return repo.Create(ctx, order, msgs)
	}
	return repo.Save(ctx, order, version-1, msgs)
}
