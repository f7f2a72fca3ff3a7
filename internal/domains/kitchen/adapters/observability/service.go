package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
)

const tracerName = "github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/adapters/observability/service"

// Service decorates the kitchen port with spans, logs, and counters.
type Service struct {
	inner    ports.Service
	tracer   trace.Tracer
	logger   *slog.Logger
	finished metric.Int64Counter
	received metric.Int64Counter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		if tr != nil {
			s.tracer = tr
		}
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		if m == nil {
			return
		}
		s.received, _ = m.Int64Counter("kitchen.service.received", metric.WithDescription("Number of tickets queued"))
		s.finished, _ = m.Int64Counter("kitchen.service.items_finished", metric.WithDescription("Number of items finished"))
	}
}

func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:  inner,
		tracer: nooptrace.NewTracerProvider().Tracer(tracerName),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Receive(ctx context.Context, in ports.ReceiveInput) (*ports.Result, error) {
	ctx, span := s.tracer.Start(ctx, "Kitchen.Receive", trace.WithAttributes(
		attribute.String("order.id", in.OrderID),
		attribute.Int("kitchen.items", len(in.Items)),
	))
	defer span.End()

	res, err := s.inner.Receive(ctx, in)
	if err != nil {
		return nil, s.fail(ctx, span, "failed to queue kitchen ticket", err, slog.String("order.id", in.OrderID))
	}
	if !res.Noop {
		add(ctx, s.received, attribute.String("order.type", in.OrderType))
		s.logger.LogAttrs(ctx, slog.LevelInfo, "kitchen ticket queued",
			slog.String("order.id", in.OrderID), slog.Int("items", len(in.Items)))
	}
	return res, nil
}

func (s *Service) Start(ctx context.Context, orderID string) (*ports.Result, error) {
	ctx, span := s.tracer.Start(ctx, "Kitchen.Start", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	res, err := s.inner.Start(ctx, orderID)
	if err != nil {
		return nil, s.fail(ctx, span, "failed to start kitchen ticket", err, slog.String("order.id", orderID))
	}
	return res, nil
}

func (s *Service) FinishItem(ctx context.Context, orderID, itemID string) (*ports.Result, error) {
	ctx, span := s.tracer.Start(ctx, "Kitchen.FinishItem", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("item.id", itemID),
	))
	defer span.End()

	res, err := s.inner.FinishItem(ctx, orderID, itemID)
	if err != nil {
		return nil, s.fail(ctx, span, "failed to finish kitchen item", err,
			slog.String("order.id", orderID), slog.String("item.id", itemID))
	}
	span.SetAttributes(attribute.Bool("kitchen.noop", res.Noop))
	if !res.Noop {
		add(ctx, s.finished)
		s.logger.LogAttrs(ctx, slog.LevelInfo, "kitchen item finished",
			slog.String("order.id", orderID),
			slog.String("item.id", itemID),
			slog.String("state", string(res.Ticket.Entity.State)),
		)
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*ports.TicketProjection, error) {
	ctx, span := s.tracer.Start(ctx, "Kitchen.Get", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	res, err := s.inner.Get(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Service) List(ctx context.Context, states []domain.TicketState) ([]*ports.TicketProjection, error) {
	ctx, span := s.tracer.Start(ctx, "Kitchen.List")
	defer span.End()
	res, err := s.inner.List(ctx, states)
	if err != nil {
		return nil, s.fail(ctx, span, "failed to list kitchen tickets", err)
	}
	span.SetAttributes(attribute.Int("kitchen.result.count", len(res)))
	return res, nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, msg string, err error, attrs ...slog.Attr) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
	return err
}

func add(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
