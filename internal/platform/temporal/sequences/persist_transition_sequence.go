package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	orderactivities "github.com/Apurer/order-lifecycle-engine/internal/platform/temporal/activities/orders"
)

// RunPersistTransitionSequence makes one accepted transition durable. Store
// outages are retried without limit; the transition is already part of the
// workflow history and must not be dropped.
func RunPersistTransitionSequence(ctx workflow.Context, input orderactivities.PersistTransitionInput) (*types.OrderProjection, error) {
	logger := workflow.GetLogger(ctx)
	orderID := ""
	if input.Order != nil {
		orderID = input.Order.ID
	}
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			NonRetryableErrorTypes: []string{orderactivities.DivergedErrorType},
		},
	}

	var projection types.OrderProjection
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, options), orderactivities.PersistTransitionActivityName, input).Get(ctx, &projection)
	if err != nil {
		logger.Error("persist transition sequence failed", "orderId", orderID, "version", input.Version, "error", err)
		return nil, err
	}
	logger.Debug("persist transition sequence persisted", "orderId", orderID, "version", projection.Version)
	return &projection, nil
}
