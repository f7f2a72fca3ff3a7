package api

import (
	"context"
	"log/slog"

	"github.com/go-faster/errors"

	kitchenmemory "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/adapters/memory"
	kitchenpostgres "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/adapters/persistence/postgres"
	kitchenports "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
	ordersmemory "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/memory"
	orderspostgres "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/persistence/postgres"
	ordersports "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/migrations"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
	platformpostgres "github.com/Apurer/order-lifecycle-engine/internal/platform/postgres"
)

// Stores groups the repositories and the outbox they append to. Orders and
// kitchen tickets share one outbox so a single relay drains both.
type Stores struct {
	Orders  ordersports.Repository
	Kitchen kitchenports.Repository
	Outbox  outbox.Store
	Durable bool
}

// OpenStores selects PostgreSQL when a DSN is configured and in-memory stores
// otherwise. Schema migrations run on connect.
func OpenStores(ctx context.Context, cfg Config, logger *slog.Logger) (*Stores, func(), error) {
	handles, cleanup, err := platformpostgres.Open(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open postgres")
	}
	if handles == nil {
		store := outbox.NewMemoryStore()
		return &Stores{
			Orders:  ordersmemory.NewRepository(store),
			Kitchen: kitchenmemory.NewRepository(store),
			Outbox:  store,
		}, cleanup, nil
	}
	if err := migrations.Run(handles.DB); err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "migrate")
	}
	logger.Info("order and kitchen repositories configured with postgres")
	return &Stores{
		Orders:  orderspostgres.NewRepository(handles.DB),
		Kitchen: kitchenpostgres.NewRepository(handles.DB),
		Outbox:  outbox.NewPgStore(handles.Pool, cfg.Outbox.MaxAttempts),
		Durable: true,
	}, cleanup, nil
}
