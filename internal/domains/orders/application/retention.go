package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
)

// Archiver retires closed orders from the active listings. Archived orders
// stay readable by id; nothing is deleted.
type Archiver struct {
	repo   ports.Repository
	now    func() time.Time
	logger *slog.Logger
}

func NewArchiver(repo ports.Repository, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{repo: repo, now: time.Now, logger: logger}
}

// Sweep archives orders closed more than closedAfter ago and reports how many it touched.
func (a *Archiver) Sweep(ctx context.Context, closedAfter time.Duration) (int64, error) {
	if closedAfter <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive, got %s", ErrInvalidInput, closedAfter)
	}
	cutoff := a.now().Add(-closedAfter)
	n, err := a.repo.ArchiveClosedBefore(ctx, cutoff)
	if err != nil {
		return 0, mapError(err)
	}
	a.logger.LogAttrs(ctx, slog.LevelInfo, "closed orders archived",
		slog.Int64("count", n), slog.Time("cutoff", cutoff))
	return n, nil
}
