package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	ordersserver "github.com/Apurer/order-lifecycle-engine/go"
	"github.com/Apurer/order-lifecycle-engine/internal/clients/http/catalog"
	"github.com/Apurer/order-lifecycle-engine/internal/jobs"

	kitchenobs "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/adapters/observability"
	kitchenapp "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/application"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/entity"
	ordersobs "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/observability"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/pricing"
	orderworkflows "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application"
	ordersports "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/dedup"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/messaging"
	kafkabus "github.com/Apurer/order-lifecycle-engine/internal/platform/messaging/kafka"
	rabbitbus "github.com/Apurer/order-lifecycle-engine/internal/platform/messaging/rabbitmq"
	platformobservability "github.com/Apurer/order-lifecycle-engine/internal/platform/observability"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
	platformtemporal "github.com/Apurer/order-lifecycle-engine/internal/platform/temporal"
)

const serviceName = "order-lifecycle-api"

// Run boots the order engine: HTTP API, outbox relay, event consumers, and the
// retention sweep. It returns once ctx is cancelled and everything has stopped.
func Run(ctx context.Context, cfg Config) error {
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		LogLevel:     cfg.LogLevel,
		OTLPEndpoint: cfg.OTLP.Endpoint,
		OTLPInsecure: cfg.OTLP.Insecure,
	})
	if err != nil {
		return errors.Wrap(err, "initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	stores, cleanupStores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanupStores()

	executor, closeExecutor, err := buildExecutor(cfg, stores, instruments)
	if err != nil {
		return err
	}
	defer closeExecutor()

	serviceOpts := []ordersapp.Option{}
	pricer, err := buildPricer(cfg, logger)
	if err != nil {
		return err
	}
	if pricer != nil {
		serviceOpts = append(serviceOpts, ordersapp.WithPricer(pricer))
	}
	orderService := ordersobs.New(
		ordersapp.NewService(executor, stores.Orders, serviceOpts...),
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)
	kitchenService := kitchenobs.New(
		kitchenapp.NewService(stores.Kitchen, kitchenapp.WithLogger(logger)),
		kitchenobs.WithLogger(logger),
		kitchenobs.WithTracer(instruments.Tracer("internal.kitchen.application")),
		kitchenobs.WithMeter(instruments.Meter("internal.kitchen.application")),
	)

	seen, closeDedup := buildDedup(cfg, logger)
	defer closeDedup()
	router := messaging.NewRouter()
	orderReactions := ordersapp.NewReactions(orderService, seen, logger)
	for _, name := range ordersapp.EventNames() {
		router.Route(name, orderReactions)
	}
	router.Route(kitchenapp.StartProcessingEvent, kitchenapp.NewReactions(kitchenService))

	bus, err := buildBus(cfg, router, logger)
	if err != nil {
		return err
	}
	defer bus.close()

	relay := outbox.NewRelay(stores.Outbox, bus.publisher,
		outbox.WithLogger(logger),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithInterval(cfg.Outbox.Interval),
		outbox.WithLease(cfg.Outbox.Lease),
	)
	retention, err := jobs.NewRetentionJob(
		ordersapp.NewArchiver(stores.Orders, logger),
		cfg.Retention.Schedule, cfg.Retention.ClosedAfter, logger,
	)
	if err != nil {
		return errors.Wrap(err, "retention job")
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	ordersserver.NewRouterWithGinEngine(engine, ordersserver.ApiHandleFunctions{
		OrderAPI:   ordersserver.NewOrderAPI(orderService),
		KitchenAPI: ordersserver.NewKitchenAPI(kitchenService),
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("order API listening",
			slog.String("addr", server.Addr),
			slog.String("engine", cfg.Engine),
			slog.String("bus", cfg.EventBus),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return ignoreCancel(relay.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(retention.Run(gctx)) })
	if bus.consume != nil {
		g.Go(func() error { return ignoreCancel(bus.consume(gctx, router)) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("order API exited", slog.String("error", err.Error()))
		return err
	}
	logger.Info("order API stopped")
	return nil
}

func buildExecutor(cfg Config, stores *Stores, instruments *platformobservability.Instruments) (ordersports.Executor, func(), error) {
	if cfg.Engine == EngineEntity {
		return entity.NewHost(stores.Orders, entity.WithLogger(instruments.Logger)), func() {}, nil
	}
	if !stores.Durable {
		instruments.Logger.Warn("workflow engine running against in-memory stores; worker state is not shared")
	}
	c, err := platformtemporal.Dial(platformtemporal.Config{
		Address:   cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	}, instruments, "temporal-client")
	if err != nil {
		return nil, nil, errors.Wrap(err, "workflow engine requires temporal")
	}
	instruments.Logger.Info("temporal workflows enabled", slog.String("namespace", cfg.Temporal.Namespace))
	return orderworkflows.NewTemporalExecutor(c, stores.Orders), c.Close, nil
}

func buildPricer(cfg Config, logger *slog.Logger) (ordersports.Pricer, error) {
	switch {
	case cfg.CatalogURL != "":
		client, err := catalog.NewClient(cfg.CatalogURL, nil)
		if err != nil {
			return nil, err
		}
		logger.Info("item prices resolved by the catalog service", slog.String("url", cfg.CatalogURL))
		return pricing.NewRemote(client), nil
	case cfg.Catalog != "":
		static, err := pricing.ParseCatalog(cfg.Catalog)
		if err != nil {
			return nil, errors.Wrap(err, "parse price catalog")
		}
		return static, nil
	default:
		return nil, nil
	}
}

func buildDedup(cfg Config, logger *slog.Logger) (ordersports.Deduplicator, func()) {
	if cfg.Redis.Addr == "" {
		return dedup.NewMemoryStore(cfg.Redis.DedupTTL), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info("inbound dedup configured with redis", slog.String("addr", cfg.Redis.Addr))
	return dedup.NewRedisStore(rdb, "orders:dedup:", cfg.Redis.DedupTTL), func() { _ = rdb.Close() }
}

type eventBus struct {
	publisher outbox.Publisher
	consume   func(ctx context.Context, h messaging.Handler) error
	close     func()
}

func buildBus(cfg Config, router *messaging.Router, logger *slog.Logger) (*eventBus, error) {
	switch cfg.EventBus {
	case BusRabbitMQ:
		conn, err := rabbitbus.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		publisher := rabbitbus.NewPublisher(conn, cfg.RabbitMQ.Exchange)
		consumer := rabbitbus.NewConsumer(conn, rabbitbus.Topology{
			Exchange:    cfg.RabbitMQ.Exchange,
			Queue:       cfg.RabbitMQ.Queue,
			BindingKeys: router.Names(),
		}, rabbitbus.WithConsumerLogger(logger), rabbitbus.WithPrefetch(cfg.RabbitMQ.Prefetch))
		return &eventBus{
			publisher: publisher,
			consume:   consumer.Run,
			close: func() {
				_ = publisher.Close()
				_ = conn.Close()
			},
		}, nil
	case BusKafka:
		writer := kafkabus.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		deadLetter := kafkabus.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic)
		reader := kafkabus.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group)
		consumer := kafkabus.NewConsumer(reader,
			kafkabus.WithConsumerLogger(logger),
			kafkabus.WithDeadLetter(deadLetter),
		)
		return &eventBus{
			publisher: kafkabus.NewPublisher(writer),
			consume:   consumer.Run,
			close: func() {
				_ = reader.Close()
				_ = writer.Close()
				_ = deadLetter.Close()
			},
		}, nil
	default:
		logger.Info("no event bus configured, events are delivered in-process")
		return &eventBus{
			publisher: messaging.Loopback(router, logger),
			close:     func() {},
		}, nil
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
