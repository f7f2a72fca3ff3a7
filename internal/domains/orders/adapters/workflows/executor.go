package workflows

import (
	"context"
	"errors"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	orderworkflows "github.com/Apurer/order-lifecycle-engine/internal/platform/temporal/workflows/orders"
)

var _ ports.Executor = (*TemporalExecutor)(nil)

// ErrLifecycleEnded reports an operation that would change an order whose workflow run is gone.
var ErrLifecycleEnded = ports.ErrLifecycleEnded

// TemporalExecutor drives orders through one Temporal workflow run per order.
type TemporalExecutor struct {
	client    client.Client
	repo      ports.Repository
	taskQueue string
	now       func() time.Time
}

// NewTemporalExecutor wires a Temporal client and the snapshot store the workflow writes to.
func NewTemporalExecutor(c client.Client, repo ports.Repository) *TemporalExecutor {
	return &TemporalExecutor{client: c, repo: repo, taskQueue: orderworkflows.LifecycleTaskQueue, now: time.Now}
}

// Create starts the lifecycle run for a new order, or returns the existing
// order when the run already exists.
func (e *TemporalExecutor) Create(ctx context.Context, op domain.Operation) (*types.TransitionResult, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("temporal order executor not configured")
	}
	if err := orderworkflows.ValidateCreate(op, e.now()); err != nil {
		return nil, err
	}
	stored, err := e.repo.GetByID(ctx, op.OrderID)
	switch {
	case err == nil && stored.Entity.State == domain.StateClosed:
		return e.replay(stored, op)
	case err != nil && !errors.Is(err, ports.ErrNotFound):
		return nil, err
	}

	options := client.StartWorkflowOptions{
		ID:                                       orderworkflows.WorkflowID(op.OrderID),
		TaskQueue:                                e.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	input := orderworkflows.LifecycleInput{Create: op, TraceID: workflowTraceID(ctx)}
	started := true
	if _, err := e.client.ExecuteWorkflow(ctx, options, orderworkflows.LifecycleWorkflowName, input); err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &alreadyStarted) {
			return nil, err
		}
		started = false
	}

	result, err := e.update(ctx, op.OrderID, orderworkflows.SyncUpdateName)
	if err != nil {
		if isNotFound(err) && !started {
			return e.fallback(ctx, op.OrderID, op)
		}
		return nil, err
	}
	result.Noop = !started
	return result, nil
}

// Execute sends op to the order's running lifecycle. Once the run has
// completed the stored snapshot answers: retried operations are no-ops and
// anything else is rejected by the same rules.
func (e *TemporalExecutor) Execute(ctx context.Context, orderID string, op domain.Operation) (*types.TransitionResult, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("temporal order executor not configured")
	}
	if op.Name == domain.OpCreateOrder {
		return nil, domain.ErrUnknownOperation
	}
	result, err := e.update(ctx, orderID, orderworkflows.UpdateName(op.Name), op)
	if err != nil {
		if isNotFound(err) {
			return e.fallback(ctx, orderID, op)
		}
		return nil, err
	}
	return result, nil
}

// Get reads the snapshot the workflow last persisted.
func (e *TemporalExecutor) Get(ctx context.Context, orderID string) (*types.OrderProjection, error) {
	return e.repo.GetByID(ctx, orderID)
}

func (e *TemporalExecutor) update(ctx context.Context, orderID, name string, args ...interface{}) (*types.TransitionResult, error) {
	handle, err := e.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   orderworkflows.WorkflowID(orderID),
		UpdateName:   name,
		Args:         args,
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return nil, orderworkflows.FromRejection(err)
	}
	var result types.TransitionResult
	if err := handle.Get(ctx, &result); err != nil {
		return nil, orderworkflows.FromRejection(err)
	}
	return &result, nil
}

func (e *TemporalExecutor) fallback(ctx context.Context, orderID string, op domain.Operation) (*types.TransitionResult, error) {
	stored, err := e.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return e.replay(stored, op)
}

func (e *TemporalExecutor) replay(stored *types.OrderProjection, op domain.Operation) (*types.TransitionResult, error) {
	decision, err := domain.Apply(stored.Entity, op, e.now())
	if err != nil {
		return nil, err
	}
	if !decision.Noop {
		return nil, ErrLifecycleEnded
	}
	return &types.TransitionResult{Order: stored, Noop: true}, nil
}

func isNotFound(err error) bool {
	var notFound *serviceerror.NotFound
	return errors.As(err, &notFound)
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
