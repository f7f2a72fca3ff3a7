package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/Apurer/order-lifecycle-engine/internal/app/api"
	ordersapp "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application"
	platformobservability "github.com/Apurer/order-lifecycle-engine/internal/platform/observability"
)

// order-archiver runs one retention sweep and exits, for schedulers that
// prefer a batch job over the API's built-in cron.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := platformobservability.NewLogger(cfg.LogLevel).With(slog.String("service", "order-archiver"))
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN not set; nothing to archive")
	}
	stores, cleanup, err := api.OpenStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open stores: %v", err)
	}
	defer cleanup()

	archived, err := ordersapp.NewArchiver(stores.Orders, logger).Sweep(ctx, cfg.Retention.ClosedAfter)
	if err != nil {
		log.Fatalf("failed to archive orders: %v", err)
	}
	logger.Info("order archive completed", slog.Int64("archived", archived))
}
