// Package outbox relays messages written alongside aggregate state to the event bus.
package outbox

import (
	"context"
	"time"
)

// Status tracks a message through the relay.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusDead    Status = "dead"
)

// Message is one encoded domain event waiting to be published.
// ID is deterministic per aggregate version so consumers can dedupe redeliveries.
type Message struct {
	ID          string
	AggregateID string
	Name        string
	Payload     []byte
	OccurredAt  time.Time
	Attempts    int
	Seq         int64
}

// Store is the relay's view of the outbox table.
type Store interface {
	// LockBatch leases up to batchSize pending messages in write order.
	LockBatch(ctx context.Context, batchSize int, lease time.Duration) ([]Message, error)
	MarkSent(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

// Publisher hands a message to the event bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg Message) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
