package ports

import (
	"context"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
)

// Service defines the order lifecycle use cases exposed to adapters (inbound/driving port).
type Service interface {
	CreateOrder(ctx context.Context, input types.CreateOrderInput) (*types.TransitionResult, error)
	AssignCustomer(ctx context.Context, input types.AssignCustomerInput) (*types.TransitionResult, error)
	AssignAddress(ctx context.Context, input types.AssignAddressInput) (*types.TransitionResult, error)
	ChangeOrderType(ctx context.Context, input types.ChangeOrderTypeInput) (*types.TransitionResult, error)
	AddItem(ctx context.Context, input types.AddItemInput) (*types.TransitionResult, error)
	RemoveItem(ctx context.Context, input types.ItemRef) (*types.TransitionResult, error)
	ConfirmOrder(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error)
	ConfirmPayment(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error)
	StartProcessing(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error)
	ItemFinished(ctx context.Context, input types.ItemRef) (*types.TransitionResult, error)
	StartDelivery(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error)
	Delivered(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error)
	Served(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error)
	GetOrder(ctx context.Context, input types.OrderRef) (*types.OrderProjection, error)
	ListOrders(ctx context.Context, input types.ListOrdersInput) ([]*types.OrderProjection, error)
}
