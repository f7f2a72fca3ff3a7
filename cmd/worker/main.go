package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/order-lifecycle-engine/internal/app/api"
	platformobservability "github.com/Apurer/order-lifecycle-engine/internal/platform/observability"
	platformtemporal "github.com/Apurer/order-lifecycle-engine/internal/platform/temporal"
	orderactivities "github.com/Apurer/order-lifecycle-engine/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/order-lifecycle-engine/internal/platform/temporal/workflows/orders"
)

func main() {
	ctx := context.Background()
	const serviceName = "order-lifecycle-worker"
	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		LogLevel:     cfg.LogLevel,
		OTLPEndpoint: cfg.OTLP.Endpoint,
		OTLPInsecure: cfg.OTLP.Insecure,
	})
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	stores, cleanupStores, err := api.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanupStores()
	if !stores.Durable {
		logger.Warn("worker running against in-memory stores; the API process will not see its writes")
	}
	activities := orderactivities.NewActivities(stores.Orders)

	temporalClient, err := platformtemporal.Dial(platformtemporal.Config{
		Address:   cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	}, instruments, "temporal-worker")
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, orderworkflows.LifecycleTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.LifecycleWorkflow, workflow.RegisterOptions{Name: orderworkflows.LifecycleWorkflowName})
	w.RegisterActivityWithOptions(activities.PersistTransition, activity.RegisterOptions{Name: orderactivities.PersistTransitionActivityName})

	logger.Info("worker listening", slog.String("taskQueue", orderworkflows.LifecycleTaskQueue), slog.String("namespace", cfg.Temporal.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
