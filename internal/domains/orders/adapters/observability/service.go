package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application"
	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/observability/service"

// Service decorates the orders port with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// CreateOrder opens a basket with instrumentation.
func (s *Service) CreateOrder(ctx context.Context, input types.CreateOrderInput) (*types.TransitionResult, error) {
	ctx, span := s.startSpan(ctx, "Service.CreateOrder",
		attribute.String("order.id", input.OrderID),
		attribute.String("order.type", input.Type),
	)
	defer span.End()

	result, err := s.inner.CreateOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, domain.OpCreateOrder, err, slog.String("order.id", input.OrderID))
	}
	if !result.Noop {
		s.metrics.recordCreated(ctx, result.Order.Entity.Type)
	}
	s.recordResult(ctx, span, domain.OpCreateOrder, result)
	return result, nil
}

func (s *Service) AssignCustomer(ctx context.Context, input types.AssignCustomerInput) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpAssignCustomer, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.AssignCustomer(ctx, input)
	})
}

func (s *Service) AssignAddress(ctx context.Context, input types.AssignAddressInput) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpAssignAddress, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.AssignAddress(ctx, input)
	})
}

func (s *Service) ChangeOrderType(ctx context.Context, input types.ChangeOrderTypeInput) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpChangeOrderType, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.ChangeOrderType(ctx, input)
	}, attribute.String("order.type", input.Type))
}

func (s *Service) AddItem(ctx context.Context, input types.AddItemInput) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpAddItem, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.AddItem(ctx, input)
	}, attribute.String("product.id", input.ProductID), attribute.Int("item.quantity", input.Quantity))
}

func (s *Service) RemoveItem(ctx context.Context, input types.ItemRef) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpRemoveItem, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.RemoveItem(ctx, input)
	}, attribute.String("item.id", input.ItemID))
}

func (s *Service) ConfirmOrder(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpConfirmOrder, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.ConfirmOrder(ctx, input)
	})
}

func (s *Service) ConfirmPayment(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpConfirmPayment, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.ConfirmPayment(ctx, input)
	})
}

func (s *Service) StartProcessing(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpStartProcessing, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.StartProcessing(ctx, input)
	})
}

func (s *Service) ItemFinished(ctx context.Context, input types.ItemRef) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpItemFinished, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.ItemFinished(ctx, input)
	}, attribute.String("item.id", input.ItemID))
}

func (s *Service) StartDelivery(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpStartDelivery, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.StartDelivery(ctx, input)
	})
}

func (s *Service) Delivered(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpDelivered, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.Delivered(ctx, input)
	})
}

func (s *Service) Served(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.transition(ctx, domain.OpServed, input.OrderID, func(ctx context.Context) (*types.TransitionResult, error) {
		return s.inner.Served(ctx, input)
	})
}

// GetOrder loads a single snapshot.
func (s *Service) GetOrder(ctx context.Context, input types.OrderRef) (*types.OrderProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.GetOrder", attribute.String("order.id", input.OrderID))
	defer span.End()

	result, err := s.inner.GetOrder(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.state", string(result.Entity.State)), attribute.Int64("order.version", result.Version))
	return result, nil
}

// ListOrders searches snapshots by state.
func (s *Service) ListOrders(ctx context.Context, input types.ListOrdersInput) ([]*types.OrderProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.ListOrders", attribute.StringSlice("order.states.requested", input.States))
	defer span.End()

	result, err := s.inner.ListOrders(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "ListOrders", err, slog.Any("states", input.States))
	}
	span.SetAttributes(attribute.Int("order.result.count", len(result)))
	return result, nil
}

type call func(ctx context.Context) (*types.TransitionResult, error)

func (s *Service) transition(ctx context.Context, op domain.OperationName, orderID string, fn call, attrs ...attribute.KeyValue) (*types.TransitionResult, error) {
	attrs = append(attrs, attribute.String("order.id", orderID), attribute.String("order.operation", string(op)))
	ctx, span := s.startSpan(ctx, "Service."+string(op), attrs...)
	defer span.End()

	result, err := fn(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, op, err, slog.String("order.id", orderID))
	}
	s.recordResult(ctx, span, op, result)
	return result, nil
}

func (s *Service) recordResult(ctx context.Context, span trace.Span, op domain.OperationName, result *types.TransitionResult) {
	order := result.Order.Entity
	span.SetAttributes(
		attribute.String("order.state", string(order.State)),
		attribute.Int64("order.version", result.Order.Version),
		attribute.Bool("order.noop", result.Noop),
	)
	if result.Noop {
		s.metrics.recordNoop(ctx, op)
		s.logInfo(ctx, "order operation already applied",
			slog.String("order.id", order.ID), slog.String("operation", string(op)), slog.String("state", string(order.State)))
		return
	}
	s.metrics.recordAccepted(ctx, op, order.State)
	s.logInfo(ctx, "order transition accepted",
		slog.String("order.id", order.ID),
		slog.String("operation", string(op)),
		slog.String("state", string(order.State)),
		slog.Int64("version", result.Order.Version),
	)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// handleError records the failure. Business rejections are logged at warn
// level and counted; everything else is an error.
func (s *Service) handleError(ctx context.Context, span trace.Span, op domain.OperationName, err error, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	attrs = append(attrs, slog.String("operation", string(op)), slog.String("error", err.Error()))
	if isRejection(err) {
		span.SetStatus(codes.Error, "rejected")
		s.metrics.recordRejected(ctx, op)
		s.logger.LogAttrs(ctx, slog.LevelWarn, "order operation rejected", attrs...)
		return err
	}
	span.SetStatus(codes.Error, err.Error())
	s.logger.LogAttrs(ctx, slog.LevelError, "order operation failed", attrs...)
	return err
}

func isRejection(err error) bool {
	return domain.IsRejection(err) || errors.Is(err, application.ErrInvalidInput) || errors.Is(err, ports.ErrNotFound)
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	ordersCreated metric.Int64Counter
	accepted      metric.Int64Counter
	noops         metric.Int64Counter
	rejected      metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	ordersCreated, _ := m.Int64Counter("orders.service.created", metric.WithDescription("Number of orders created"))
	accepted, _ := m.Int64Counter("orders.service.transitions", metric.WithDescription("Number of accepted order transitions"))
	noops, _ := m.Int64Counter("orders.service.noops", metric.WithDescription("Number of operations absorbed as already applied"))
	rejected, _ := m.Int64Counter("orders.service.rejections", metric.WithDescription("Number of rejected order operations"))
	return serviceMetrics{
		ordersCreated: ordersCreated,
		accepted:      accepted,
		noops:         noops,
		rejected:      rejected,
	}
}

func (m serviceMetrics) recordCreated(ctx context.Context, orderType domain.OrderType) {
	addCounter(ctx, m.ordersCreated, 1, attribute.String("order.type", string(orderType)))
}

func (m serviceMetrics) recordAccepted(ctx context.Context, op domain.OperationName, state domain.State) {
	addCounter(ctx, m.accepted, 1, attribute.String("order.operation", string(op)), attribute.String("order.state", string(state)))
}

func (m serviceMetrics) recordNoop(ctx context.Context, op domain.OperationName) {
	addCounter(ctx, m.noops, 1, attribute.String("order.operation", string(op)))
}

func (m serviceMetrics) recordRejected(ctx context.Context, op domain.OperationName) {
	addCounter(ctx, m.rejected, 1, attribute.String("order.operation", string(op)))
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
