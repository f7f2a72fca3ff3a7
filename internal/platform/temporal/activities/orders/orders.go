package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application"
	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

const (
	// PersistTransitionActivityName writes one accepted transition and its outbox messages.
	PersistTransitionActivityName = "orders.activities.PersistTransition"

	// DivergedErrorType marks a stored order that moved past the workflow's own history.
	DivergedErrorType = "OrderDiverged"
)

// PersistTransitionInput is the transition the workflow accepted at Version.
type PersistTransitionInput struct {
	Order    *domain.Order
	Version  int64
	Messages []outbox.Message
}

// Activities groups activities that operate on the orders bounded context.
type Activities struct {
	repo ports.Repository
}

func NewActivities(repo ports.Repository) *Activities {
	return &Activities{repo: repo}
}

// PersistTransition stores the snapshot at input.Version. A retry after a
// write that already landed finds the stored version at the target and
// succeeds without writing again.
func (a *Activities) PersistTransition(ctx context.Context, input PersistTransitionInput) (*types.OrderProjection, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.repo == nil {
		logger.Error("order persist activity not initialized")
		return nil, errors.New("order persist activity not initialized")
	}
	if input.Order == nil {
		return nil, temporal.NewNonRetryableApplicationError("transition without order", "InvalidTransition", nil)
	}
	orderID := input.Order.ID
	logger.Info("PersistTransition activity started", "orderId", orderID, "version", input.Version)

	saved, err := application.Persist(ctx, a.repo, input.Order, input.Version, input.Messages)
	if err == nil {
		logger.Info("PersistTransition activity completed", "orderId", orderID, "version", saved.Version)
		return saved, nil
	}
	if !errors.Is(err, ports.ErrVersionConflict) && !errors.Is(err, ports.ErrAlreadyExists) {
		logger.Error("PersistTransition activity failed", "orderId", orderID, "version", input.Version, "error", err)
		return nil, err
	}

	stored, getErr := a.repo.GetByID(ctx, orderID)
	if getErr != nil {
		return nil, getErr
	}
	if stored.Version == input.Version && stored.Entity.State == input.Order.State {
		logger.Info("PersistTransition already applied by a previous attempt", "orderId", orderID, "version", input.Version)
		return stored, nil
	}
	logger.Error("PersistTransition found a diverged order", "orderId", orderID, "version", input.Version, "storedVersion", stored.Version)
	return nil, temporal.NewNonRetryableApplicationError("stored order diverged from workflow history", DivergedErrorType, err)
}
