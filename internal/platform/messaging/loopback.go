package messaging

import (
	"context"
	"log/slog"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

// Loopback delivers relayed messages straight to h, for single-process runs
// without a broker. Permanent failures are logged and dropped; anything else
// goes back to the relay for another attempt.
func Loopback(h Handler, logger *slog.Logger) outbox.PublisherFunc {
	return func(ctx context.Context, msg outbox.Message) error {
		d := Delivery{
			ID:      msg.ID,
			Name:    msg.Name,
			Key:     msg.AggregateID,
			Payload: msg.Payload,
			Headers: map[string]string{
				HeaderMessageID:   msg.ID,
				HeaderEventType:   msg.Name,
				HeaderAggregateID: msg.AggregateID,
			},
		}
		err := h.Handle(ctx, d)
		if err != nil && IsPermanent(err) {
			if logger != nil {
				logger.LogAttrs(ctx, slog.LevelWarn, "dropping undeliverable message",
					slog.String("message_id", msg.ID),
					slog.String("event", msg.Name),
					slog.String("error", err.Error()),
				)
			}
			return nil
		}
		return err
	}
}
