package types

import (
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/shared/projection"
)

// OrderProjection exposes the domain aggregate together with persistence metadata.
type OrderProjection = projection.Projection[*domain.Order]

// TransitionResult is the snapshot after an operation. Noop reports that the
// operation was already satisfied and nothing was written or emitted.
type TransitionResult struct {
	Order *OrderProjection
	Noop  bool
}
