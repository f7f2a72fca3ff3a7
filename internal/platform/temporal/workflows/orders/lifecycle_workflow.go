package orders

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application"
	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	orderactivities "github.com/Apurer/order-lifecycle-engine/internal/platform/temporal/activities/orders"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/temporal/sequences"
)

const (
	// LifecycleWorkflowName is the public identifier for registering the workflow.
	LifecycleWorkflowName = "orders.workflows.Lifecycle"
	// LifecycleTaskQueue is the queue consumed by the worker processing order workflows.
	LifecycleTaskQueue = "ORDER_LIFECYCLE"

	SnapshotQueryName = "orders.queries.Snapshot"
	// SyncUpdateName waits until everything accepted so far is durable.
	SyncUpdateName = "orders.updates.Sync"

	updatePrefix = "orders.updates."
)

// UpdateName is the update that carries op to a running lifecycle.
func UpdateName(op domain.OperationName) string {
	return updatePrefix + string(op)
}

// WorkflowID names the single lifecycle run of an order.
func WorkflowID(orderID string) string {
	return "order-" + orderID
}

// ValidateCreate decides a CreateOrder payload on its own, before a lifecycle
// is started or an existing one is asked to sync.
func ValidateCreate(op domain.Operation, now time.Time) error {
	if op.Name != domain.OpCreateOrder {
		return domain.ErrUnknownOperation
	}
	_, err := domain.Apply(nil, op, now)
	return err
}

// LifecycleInput starts a lifecycle from CreateOrder, or resumes one after continue-as-new.
type LifecycleInput struct {
	Create  domain.Operation
	TraceID string
	Resume  *LifecycleResume
}

// LifecycleResume carries the durable state into a fresh run.
type LifecycleResume struct {
	Order *domain.Order
	Saved *types.OrderProjection
}

// Snapshot is the in-memory state exposed by the snapshot query.
type Snapshot struct {
	Order            *domain.Order
	Version          int64
	PersistedVersion int64
	Pending          int
}

type pendingTransition struct {
	input   orderactivities.PersistTransitionInput
	awaited bool
}

// lifecycle is the workflow-local state of one order. Only workflow code touches it.
type lifecycle struct {
	order     *domain.Order
	version   int64
	persisted int64
	saved     *types.OrderProjection
	results   map[int64]*types.OrderProjection
	pending   []pendingTransition
	failure   error
}

// LifecycleWorkflow holds one order for its whole life. Each operation arrives
// as an update, is decided against the in-memory order, and returns once the
// resulting snapshot is persisted. Transitions are persisted strictly in the
// order they were accepted. The run completes when the order is closed.
func LifecycleWorkflow(ctx workflow.Context, input LifecycleInput) (*types.OrderProjection, error) {
	logger := workflow.GetLogger(ctx)
	lc := &lifecycle{results: map[int64]*types.OrderProjection{}}

	if input.Resume != nil && input.Resume.Saved != nil {
		lc.order = input.Resume.Order
		lc.saved = input.Resume.Saved
		lc.version = input.Resume.Saved.Version
		lc.persisted = lc.version
		logger.Info("LifecycleWorkflow resumed", withTraceID(input.TraceID, "orderId", lc.order.ID, "version", lc.version)...)
	} else {
		logger.Info("LifecycleWorkflow started", withTraceID(input.TraceID, "orderId", input.Create.OrderID)...)
		if _, _, err := lc.accept(ctx, input.Create, false); err != nil {
			logger.Error("LifecycleWorkflow rejected create", withTraceID(input.TraceID, "orderId", input.Create.OrderID, "error", err)...)
			return nil, err
		}
	}
	if err := lc.register(ctx); err != nil {
		return nil, err
	}

	continueAsNew := false
	for {
		err := workflow.Await(ctx, func() bool {
			if len(lc.pending) > 0 || lc.failure != nil {
				return true
			}
			if !workflow.AllHandlersFinished(ctx) {
				return false
			}
			return lc.closed() || workflow.GetInfo(ctx).GetContinueAsNewSuggested()
		})
		if err != nil {
			return nil, err
		}
		if lc.failure != nil {
			break
		}
		if len(lc.pending) == 0 {
			continueAsNew = !lc.closed()
			break
		}
		next := lc.pending[0]
		saved, err := sequences.RunPersistTransitionSequence(ctx, next.input)
		if err != nil {
			lc.failure = err
			break
		}
		lc.pending = lc.pending[1:]
		lc.persisted = next.input.Version
		lc.saved = saved
		if next.awaited {
			lc.results[next.input.Version] = saved
		}
	}

	if err := workflow.Await(ctx, func() bool { return workflow.AllHandlersFinished(ctx) }); err != nil {
		return nil, err
	}
	if lc.failure != nil {
		logger.Error("LifecycleWorkflow failed", withTraceID(input.TraceID, "orderId", lc.order.ID, "error", lc.failure)...)
		return nil, lc.failure
	}
	if continueAsNew {
		logger.Info("LifecycleWorkflow continuing as new", withTraceID(input.TraceID, "orderId", lc.order.ID, "version", lc.version)...)
		return nil, workflow.NewContinueAsNewError(ctx, LifecycleWorkflowName, LifecycleInput{
			TraceID: input.TraceID,
			Resume:  &LifecycleResume{Order: lc.order, Saved: lc.saved},
		})
	}
	logger.Info("LifecycleWorkflow completed", withTraceID(input.TraceID, "orderId", lc.order.ID, "version", lc.persisted)...)
	return lc.saved, nil
}

func (lc *lifecycle) register(ctx workflow.Context) error {
	if err := workflow.SetQueryHandler(ctx, SnapshotQueryName, func() (Snapshot, error) {
		return Snapshot{
			Order:            lc.order.Clone(),
			Version:          lc.version,
			PersistedVersion: lc.persisted,
			Pending:          len(lc.pending),
		}, nil
	}); err != nil {
		return err
	}

	for _, name := range domain.MutatingOperations() {
		name := name
		handler := func(ctx workflow.Context, op domain.Operation) (*types.TransitionResult, error) {
			op.Name = name
			return lc.handle(ctx, op)
		}
		validator := func(ctx workflow.Context, op domain.Operation) error {
			op.Name = name
			return lc.validate(ctx, op)
		}
		if err := workflow.SetUpdateHandlerWithOptions(ctx, UpdateName(name), handler, workflow.UpdateHandlerOptions{Validator: validator}); err != nil {
			return err
		}
	}

	return workflow.SetUpdateHandler(ctx, SyncUpdateName, func(ctx workflow.Context) (*types.TransitionResult, error) {
		target := lc.version
		if err := lc.awaitPersisted(ctx, target); err != nil {
			return nil, err
		}
		return &types.TransitionResult{Order: lc.saved, Noop: true}, nil
	})
}

// validate rejects an update before it is written to history.
func (lc *lifecycle) validate(ctx workflow.Context, op domain.Operation) error {
	if lc.failure != nil {
		return lc.failure
	}
	if _, err := domain.Apply(lc.order, op, workflow.Now(ctx)); err != nil {
		return RejectionError(err)
	}
	return nil
}

func (lc *lifecycle) handle(ctx workflow.Context, op domain.Operation) (*types.TransitionResult, error) {
	version, noop, err := lc.accept(ctx, op, true)
	if err != nil {
		return nil, err
	}
	if err := lc.awaitPersisted(ctx, version); err != nil {
		return nil, err
	}
	if noop {
		return &types.TransitionResult{Order: lc.saved, Noop: true}, nil
	}
	saved := lc.results[version]
	delete(lc.results, version)
	return &types.TransitionResult{Order: saved}, nil
}

// accept decides op against the in-memory order and queues the resulting
// transition. A no-op returns the current version.
func (lc *lifecycle) accept(ctx workflow.Context, op domain.Operation, awaited bool) (int64, bool, error) {
	if lc.failure != nil {
		return 0, false, lc.failure
	}
	decision, err := domain.Apply(lc.order, op, workflow.Now(ctx))
	if err != nil {
		return 0, false, RejectionError(err)
	}
	if decision.Noop {
		return lc.version, true, nil
	}
	version := lc.version + 1
	msgs, err := application.OutboxMessages(decision.Order.ID, version, decision.Events)
	if err != nil {
		return 0, false, err
	}
	lc.version = version
	lc.order = decision.Order
	lc.pending = append(lc.pending, pendingTransition{
		input:   orderactivities.PersistTransitionInput{Order: decision.Order.Clone(), Version: version, Messages: msgs},
		awaited: awaited,
	})
	return version, false, nil
}

func (lc *lifecycle) awaitPersisted(ctx workflow.Context, version int64) error {
	if err := workflow.Await(ctx, func() bool { return lc.persisted >= version || lc.failure != nil }); err != nil {
		return err
	}
	if lc.persisted < version {
		return lc.failure
	}
	return nil
}

func (lc *lifecycle) closed() bool {
	return lc.order != nil && lc.order.State == domain.StateClosed
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
