package ports

import "context"

// Deduplicator remembers inbound message ids. It is best effort: handlers stay
// idempotent without it and only use it to skip redundant work.
type Deduplicator interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// NoopDeduplicator never reports a message as seen.
type NoopDeduplicator struct{}

func (NoopDeduplicator) Seen(context.Context, string) (bool, error) { return false, nil }
func (NoopDeduplicator) Mark(context.Context, string) error         { return nil }
