// Package kafka publishes and consumes order events on a Kafka topic keyed by order id.
package kafka

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

var _ outbox.Publisher = (*Publisher)(nil)

// Producer is the write side of *kafka.Writer.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter builds a writer that hashes keys to partitions so each order's
// events stay in one partition, in publish order.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = messaging.DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Publisher writes outbox messages to Kafka.
type Publisher struct {
	producer Producer
}

func NewPublisher(producer Producer) *Publisher {
	return &Publisher{producer: producer}
}

func (p *Publisher) Publish(ctx context.Context, msg outbox.Message) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka publisher not wired")
	}
	if err := p.producer.WriteMessages(ctx, Message(ctx, msg)); err != nil {
		return errors.Wrapf(err, "write %s", msg.ID)
	}
	return nil
}

// Message builds the Kafka record for msg, carrying the trace context of ctx.
func Message(ctx context.Context, msg outbox.Message) kafka.Message {
	headers := messaging.InjectTrace(ctx, map[string]string{
		messaging.HeaderMessageID: msg.ID,
		messaging.HeaderEventType: msg.Name,
	})
	return kafka.Message{
		Key:     []byte(msg.AggregateID),
		Value:   msg.Payload,
		Headers: toHeaders(headers),
		Time:    msg.OccurredAt,
	}
}

func toHeaders(m map[string]string) []kafka.Header {
	headers := make([]kafka.Header, 0, len(m))
	for k, v := range m {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

func fromHeaders(headers []kafka.Header) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Key] = string(h.Value)
	}
	return m
}
