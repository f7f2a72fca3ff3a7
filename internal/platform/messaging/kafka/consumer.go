package kafka

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
)

// Reader is the consumer-group side of *kafka.Reader.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader joins group on topic.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	if topic == "" {
		topic = messaging.DefaultTopic
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// Consumer feeds records to a handler one at a time. Transient failures are
// retried in place so later records of the partition wait; permanent failures
// go to the dead-letter producer, when set, and are committed.
type Consumer struct {
	reader     Reader
	deadLetter Producer
	logger     *slog.Logger
	tracer     trace.Tracer
	backoff    time.Duration
	maxBackoff time.Duration
}

type ConsumerOption func(*Consumer)

// WithConsumerLogger injects a slog logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithDeadLetter forwards permanently failing records to p.
func WithDeadLetter(p Producer) ConsumerOption {
	return func(c *Consumer) {
		c.deadLetter = p
	}
}

// WithRetryBackoff sets the first and the largest pause between retries.
func WithRetryBackoff(initial, limit time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if initial > 0 {
			c.backoff = initial
		}
		if limit >= c.backoff {
			c.maxBackoff = limit
		}
	}
}

func NewConsumer(reader Reader, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:     reader,
		tracer:     otel.Tracer("github.com/Apurer/order-lifecycle-engine/internal/platform/messaging/kafka"),
		backoff:    time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Run consumes until ctx is cancelled and closes the reader on return.
func (c *Consumer) Run(ctx context.Context, handler messaging.Handler) error {
	if c == nil || c.reader == nil || handler == nil {
		return errors.New("kafka consumer not wired")
	}
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}
		if err := c.process(ctx, handler, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "commit message")
		}
	}
}

// process returns nil once msg may be committed.
func (c *Consumer) process(ctx context.Context, handler messaging.Handler, msg kafka.Message) error {
	delivery := toDelivery(msg)
	msgCtx, span := c.tracer.Start(messaging.ExtractTrace(ctx, delivery.Headers), "consume "+delivery.Name,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.message.id", delivery.ID),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	wait := c.backoff
	for {
		err := handler.Handle(msgCtx, delivery)
		if err == nil {
			return nil
		}
		span.RecordError(err)
		if messaging.IsPermanent(err) {
			span.SetStatus(codes.Error, err.Error())
			return c.forward(ctx, msg, err)
		}
		c.logger.Warn("retrying message",
			slog.String("message.id", delivery.ID),
			slog.String("message.name", delivery.Name),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, c.maxBackoff)
	}
}

func (c *Consumer) forward(ctx context.Context, msg kafka.Message, cause error) error {
	c.logger.Error("dead-lettering message",
		slog.String("message.id", headerValue(msg.Headers, messaging.HeaderMessageID)),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("error", cause.Error()),
	)
	if c.deadLetter == nil {
		return nil
	}
	dead := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...), kafka.Header{Key: "dead_letter_reason", Value: []byte(cause.Error())}),
	}
	if err := c.deadLetter.WriteMessages(ctx, dead); err != nil {
		return errors.Wrap(err, "write dead letter")
	}
	return nil
}

func toDelivery(msg kafka.Message) messaging.Delivery {
	headers := fromHeaders(msg.Headers)
	return messaging.Delivery{
		ID:      headers[messaging.HeaderMessageID],
		Name:    headers[messaging.HeaderEventType],
		Key:     string(msg.Key),
		Payload: msg.Value,
		Headers: headers,
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
