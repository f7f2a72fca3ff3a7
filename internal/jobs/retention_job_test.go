package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(context.Context, time.Duration) (int64, error) {
	s.calls.Add(1)
	return 0, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetentionJobRejectsBadSchedule(t *testing.T) {
	job, err := NewRetentionJob(&countingSweeper{}, "every tuesday", time.Hour, discard())
	require.Error(t, err)
	require.Nil(t, job)

	_, err = NewRetentionJob(&countingSweeper{}, "@hourly", time.Hour, discard())
	require.NoError(t, err)
}

func TestRetentionJobStopsWithContext(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	job, err := NewRetentionJob(sweeper, "@every 1s", time.Hour, discard())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retention job did not stop")
	}
}
