package outbox

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TableName is the outbox table shared with the gorm repositories that write into it.
const TableName = "order_outbox"

const lockBatchSQL = `
WITH batch AS (
	SELECT seq FROM order_outbox
	WHERE status = 'pending' AND (locked_until IS NULL OR locked_until < now())
	ORDER BY seq
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
UPDATE order_outbox o
SET locked_until = now() + make_interval(secs => $2)
FROM batch
WHERE o.seq = batch.seq
RETURNING o.seq, o.id, o.aggregate_id, o.name, o.payload, o.occurred_at, o.attempts`

const markSentSQL = `
UPDATE order_outbox
SET status = 'sent', sent_at = now(), locked_until = NULL
WHERE id = ANY($1)`

const markFailedSQL = `
UPDATE order_outbox
SET attempts = attempts + 1,
	last_error = $2,
	locked_until = NULL,
	status = CASE WHEN attempts + 1 >= $3 THEN 'dead' ELSE status END
WHERE id = $1`

// PgStore leases outbox rows with FOR UPDATE SKIP LOCKED so several relays can run side by side.
type PgStore struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

// NewPgStore wires a pgx pool. Messages failing maxAttempts times are parked as dead.
func NewPgStore(pool *pgxpool.Pool, maxAttempts int) *PgStore {
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	return &PgStore{pool: pool, maxAttempts: maxAttempts}
}

func (s *PgStore) LockBatch(ctx context.Context, batchSize int, lease time.Duration) ([]Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("postgres outbox store not configured")
	}
	rows, err := s.pool.Query(ctx, lockBatchSQL, batchSize, lease.Seconds())
	if err != nil {
		return nil, errors.Wrap(err, "query outbox batch")
	}
	batch, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var msg Message
		err := row.Scan(&msg.Seq, &msg.ID, &msg.AggregateID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Attempts)
		return msg, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan outbox batch")
	}
	return batch, nil
}

func (s *PgStore) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, markSentSQL, ids); err != nil {
		return errors.Wrap(err, "mark sent")
	}
	return nil
}

func (s *PgStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	if _, err := s.pool.Exec(ctx, markFailedSQL, id, errMsg, s.maxAttempts); err != nil {
		return errors.Wrapf(err, "mark failed %s", id)
	}
	return nil
}

var _ Store = (*PgStore)(nil)
