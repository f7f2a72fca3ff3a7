package ports

import (
	"context"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
)

// Executor drives the transition rules for one deployment. The entity host and
// the workflow client both implement it and must agree on every outcome.
type Executor interface {
	Create(ctx context.Context, op domain.Operation) (*types.TransitionResult, error)
	Execute(ctx context.Context, orderID string, op domain.Operation) (*types.TransitionResult, error)
	Get(ctx context.Context, orderID string) (*types.OrderProjection, error)
}
