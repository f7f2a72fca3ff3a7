package outbox

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/go-faster/errors"
)

// Relay polls the outbox and publishes pending messages.
type Relay struct {
	logger    *slog.Logger
	store     Store
	publisher Publisher
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

type RelayOption func(*Relay)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithBatchSize caps how many messages one poll leases.
func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLease sets how long a leased batch stays invisible to other relays.
func WithLease(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.lease = d
		}
	}
}

func NewRelay(store Store, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:     store,
		publisher: publisher,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if r.store == nil || r.publisher == nil {
		return errors.New("outbox relay not configured")
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.logger.Info("outbox relay started", slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-t.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("outbox flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush publishes one leased batch and returns how many messages were sent.
// After a failed publish the remaining messages of the same aggregate wait for
// the next lease so per-order ordering is kept.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	batch, err := r.store.LockBatch(ctx, r.batchSize, r.lease)
	if err != nil {
		return 0, errors.Wrap(err, "lock outbox batch")
	}
	if len(batch) == 0 {
		return 0, nil
	}
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Seq < batch[j].Seq })

	blocked := map[string]bool{}
	sent := make([]string, 0, len(batch))
	for _, msg := range batch {
		if blocked[msg.AggregateID] {
			continue
		}
		if err := r.publisher.Publish(ctx, msg); err != nil {
			blocked[msg.AggregateID] = true
			r.logger.Warn("outbox publish failed",
				slog.String("message.id", msg.ID),
				slog.String("message.name", msg.Name),
				slog.Int("attempts", msg.Attempts+1),
				slog.String("error", err.Error()),
			)
			if markErr := r.store.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				r.logger.Error("outbox mark failed error", slog.String("message.id", msg.ID), slog.String("error", markErr.Error()))
			}
			continue
		}
		sent = append(sent, msg.ID)
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			return 0, errors.Wrap(err, "mark outbox messages sent")
		}
		r.logger.Debug("outbox batch published", slog.Int("count", len(sent)))
	}
	return len(sent), nil
}
