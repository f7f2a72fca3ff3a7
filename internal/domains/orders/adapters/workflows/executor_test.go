package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/entity"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/adapters/memory"
	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	orderworkflows "github.com/Apurer/order-lifecycle-engine/internal/platform/temporal/workflows/orders"
)

const orderID = "3f2a1b0c-9d8e-4f7a-8b6c-5d4e3f2a1b0c"

func newExecutor(t *testing.T) (*TemporalExecutor, *mocks.Client, *memory.Repository) {
	t.Helper()
	c := &mocks.Client{}
	t.Cleanup(func() { c.AssertExpectations(t) })
	repo := memory.NewRepository(nil)
	return NewTemporalExecutor(c, repo), c, repo
}

// closedOrder drives an order to Closed directly through the store, the way a
// finished workflow run leaves it.
func closedOrder(t *testing.T, repo ports.Repository) {
	t.Helper()
	ctx := context.Background()
	host := entity.NewHost(repo)
	_, err := host.Create(ctx, domain.CreateOrder(orderID, domain.OrderTypeTakeAway, nil, ""))
	require.NoError(t, err)
	ops := []domain.Operation{
		domain.AddItem(domain.LineItem{ID: "item-1", ProductID: "tea", Quantity: 1, UnitPrice: decimal.RequireFromString("2.00")}),
		domain.ConfirmOrder(), domain.ConfirmPayment(), domain.StartProcessing(),
		domain.ItemFinished("item-1"), domain.Served(),
	}
	for _, op := range ops {
		_, err := host.Execute(ctx, orderID, op)
		require.NoError(t, err)
	}
}

func updateFor(name string) interface{} {
	return mock.MatchedBy(func(opts client.UpdateWorkflowOptions) bool {
		return opts.WorkflowID == orderworkflows.WorkflowID(orderID) && opts.UpdateName == name
	})
}

func TestExecuteReturnsWorkflowResult(t *testing.T) {
	executor, c, _ := newExecutor(t)
	handle := &mocks.WorkflowUpdateHandle{}
	handle.On("Get", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		out := args.Get(1).(*types.TransitionResult)
		out.Noop = true
	})
	c.On("UpdateWorkflow", mock.Anything, updateFor(orderworkflows.UpdateName(domain.OpConfirmPayment))).Return(handle, nil)

	res, err := executor.Execute(context.Background(), orderID, domain.ConfirmPayment())
	require.NoError(t, err)
	assert.True(t, res.Noop)
}

func TestExecuteRebuildsRejections(t *testing.T) {
	executor, c, _ := newExecutor(t)
	rejection := orderworkflows.RejectionError(&domain.TransitionError{
		Operation: domain.OpConfirmPayment,
		Expected:  domain.StateConfirmed,
		Actual:    domain.StateCreating,
	})
	handle := &mocks.WorkflowUpdateHandle{}
	handle.On("Get", mock.Anything, mock.Anything).Return(rejection)
	c.On("UpdateWorkflow", mock.Anything, mock.Anything).Return(handle, nil)

	_, err := executor.Execute(context.Background(), orderID, domain.ConfirmPayment())
	var transition *domain.TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, domain.StateConfirmed, transition.Expected)
	assert.Equal(t, domain.StateCreating, transition.Actual)
}

func TestExecuteAfterRunCompleted(t *testing.T) {
	executor, c, repo := newExecutor(t)
	closedOrder(t, repo)
	c.On("UpdateWorkflow", mock.Anything, mock.Anything).Return(nil, serviceerror.NewNotFound("workflow execution already completed"))
	ctx := context.Background()

	res, err := executor.Execute(ctx, orderID, domain.ItemFinished("item-1"))
	require.NoError(t, err)
	assert.True(t, res.Noop)
	assert.Equal(t, domain.StateClosed, res.Order.Entity.State)

	_, err = executor.Execute(ctx, orderID, domain.RemoveItem("item-1"))
	var transition *domain.TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, domain.StateClosed, transition.Actual)
}

func TestExecuteUnknownOrder(t *testing.T) {
	executor, c, _ := newExecutor(t)
	c.On("UpdateWorkflow", mock.Anything, mock.Anything).Return(nil, serviceerror.NewNotFound("workflow not found"))

	_, err := executor.Execute(context.Background(), orderID, domain.ConfirmOrder())
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestCreateStartsLifecycle(t *testing.T) {
	executor, c, _ := newExecutor(t)
	executor.now = func() time.Time { return time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC) }
	run := &mocks.WorkflowRun{}
	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
		return opts.ID == orderworkflows.WorkflowID(orderID) && opts.TaskQueue == orderworkflows.LifecycleTaskQueue
	}), orderworkflows.LifecycleWorkflowName, mock.Anything).Return(run, nil)
	handle := &mocks.WorkflowUpdateHandle{}
	handle.On("Get", mock.Anything, mock.Anything).Return(nil)
	c.On("UpdateWorkflow", mock.Anything, updateFor(orderworkflows.SyncUpdateName)).Return(handle, nil)

	res, err := executor.Create(context.Background(), domain.CreateOrder(orderID, domain.OrderTypeInHouse, nil, ""))
	require.NoError(t, err)
	assert.False(t, res.Noop)
}

func TestCreateRejectsBeforeStarting(t *testing.T) {
	executor, _, _ := newExecutor(t)
	_, err := executor.Create(context.Background(), domain.CreateOrder(orderID, "Drone", nil, ""))
	require.ErrorIs(t, err, domain.ErrInvalidOrderType)

	_, err = executor.Execute(context.Background(), orderID, domain.CreateOrder(orderID, domain.OrderTypeInHouse, nil, ""))
	require.ErrorIs(t, err, domain.ErrUnknownOperation)
}
