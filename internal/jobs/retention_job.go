package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
)

// Sweeper archives closed orders older than the retention window.
type Sweeper interface {
	Sweep(ctx context.Context, closedAfter time.Duration) (int64, error)
}

// RetentionJob runs the order archive sweep on a cron schedule.
type RetentionJob struct {
	sweeper     Sweeper
	spec        string
	schedule    cron.Schedule
	closedAfter time.Duration
	cron        *cron.Cron
	logger      *slog.Logger
}

// NewRetentionJob schedules sweeper with a standard five-field cron spec or a
// descriptor such as "@hourly". A spec that does not parse is an error here,
// not when the job starts.
func NewRetentionJob(sweeper Sweeper, spec string, closedAfter time.Duration, logger *slog.Logger) (*RetentionJob, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "parse retention schedule %q", spec)
	}
	return &RetentionJob{
		sweeper:     sweeper,
		spec:        spec,
		schedule:    schedule,
		closedAfter: closedAfter,
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:      logger.With("component", "retention_job"),
	}, nil
}

// Run starts the schedule and blocks until ctx is done.
func (j *RetentionJob) Run(ctx context.Context) error {
	j.cron.Schedule(j.schedule, cron.FuncJob(func() { j.sweep(ctx) }))
	j.cron.Start()
	j.logger.InfoContext(ctx, "retention job started",
		slog.String("schedule", j.spec), slog.Duration("closed_after", j.closedAfter))

	<-ctx.Done()
	stopped := j.cron.Stop()
	<-stopped.Done()
	j.logger.Info("retention job stopped")
	return nil
}

func (j *RetentionJob) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := j.sweeper.Sweep(ctx, j.closedAfter); err != nil {
		j.logger.ErrorContext(ctx, "retention sweep failed", slog.String("error", err.Error()))
	}
}
