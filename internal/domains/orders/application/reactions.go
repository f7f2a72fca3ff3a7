package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
)

var _ messaging.Handler = (*Reactions)(nil)

// KitchenItemFinishedEvent is published by the kitchen once per finished item.
const KitchenItemFinishedEvent = "kitchen.item.finished"

type reactionPayload struct {
	OrderID string `json:"orderId"`
	ItemID  string `json:"itemId"`
}

// EventNames lists the events Reactions acts on, used as consumer bindings.
func EventNames() []string {
	return []string{domain.EventOrderPaid, KitchenItemFinishedEvent}
}

// Reactions turns events from the bus into order operations.
type Reactions struct {
	service ports.Service
	dedup   ports.Deduplicator
	logger  *slog.Logger
}

func NewReactions(service ports.Service, dedup ports.Deduplicator, logger *slog.Logger) *Reactions {
	if dedup == nil {
		dedup = ports.NoopDeduplicator{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reactions{service: service, dedup: dedup, logger: logger}
}

// Handle applies the operation a message maps to. Unknown event names are
// acknowledged without effect. Duplicates are absorbed by the transition
// guards; the deduplicator only saves the round trip.
func (r *Reactions) Handle(ctx context.Context, msg messaging.Delivery) error {
	dedupKey := "reactions:" + msg.ID
	if msg.ID != "" {
		seen, err := r.dedup.Seen(ctx, dedupKey)
		if err != nil {
			r.logger.Warn("dedup lookup failed", slog.String("message.id", msg.ID), slog.String("error", err.Error()))
		} else if seen {
			r.logger.Debug("duplicate message skipped", slog.String("message.id", msg.ID))
			return nil
		}
	}

	var handle func(context.Context, reactionPayload) (*types.TransitionResult, error)
	switch msg.Name {
	case domain.EventOrderPaid:
		handle = func(ctx context.Context, p reactionPayload) (*types.TransitionResult, error) {
			return r.service.StartProcessing(ctx, types.OrderRef{OrderID: p.OrderID})
		}
	case KitchenItemFinishedEvent:
		handle = func(ctx context.Context, p reactionPayload) (*types.TransitionResult, error) {
			if strings.TrimSpace(p.ItemID) == "" {
				return nil, domain.ErrMissingItemID
			}
			return r.service.ItemFinished(ctx, types.ItemRef{OrderID: p.OrderID, ItemID: p.ItemID})
		}
	default:
		return nil
	}

	var payload reactionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("%w: decode %s: %w", messaging.ErrPermanent, msg.Name, err)
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		return fmt.Errorf("%w: %s without order id", messaging.ErrPermanent, msg.Name)
	}

	result, err := handle(ctx, payload)
	if err != nil {
		if domain.IsRejection(err) || errors.Is(err, ports.ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return messaging.Permanent(err)
		}
		return err
	}
	r.logger.Info("reaction applied",
		slog.String("message.id", msg.ID),
		slog.String("message.name", msg.Name),
		slog.String("order.id", payload.OrderID),
		slog.Bool("noop", result != nil && result.Noop),
	)
	if msg.ID != "" {
		if err := r.dedup.Mark(ctx, dedupKey); err != nil {
			r.logger.Warn("dedup mark failed", slog.String("message.id", msg.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}
