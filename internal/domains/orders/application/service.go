package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
)

// Service orchestrates the order lifecycle use cases on top of an executor.
type Service struct {
	executor ports.Executor
	repo     ports.Repository
	pricer   ports.Pricer
	newID    func() string
}

type Option func(*Service)

// WithPricer resolves unit prices for items added without one.
func WithPricer(pricer ports.Pricer) Option {
	return func(s *Service) {
		s.pricer = pricer
	}
}

// WithIDGenerator overrides uuid generation for order and item ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService wires the order service with its dependencies.
func NewService(executor ports.Executor, repo ports.Repository, opts ...Option) *Service {
	s := &Service{executor: executor, repo: repo, newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateOrder opens a new basket. A supplied order id makes the call idempotent.
func (s *Service) CreateOrder(ctx context.Context, input types.CreateOrderInput) (*types.TransitionResult, error) {
	orderID := strings.TrimSpace(input.OrderID)
	if orderID == "" {
		orderID = s.newID()
	} else if _, err := uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrInvalidOrderID)
	}
	var customer *domain.Customer
	if input.Customer != nil {
		c := toCustomer(*input.Customer)
		customer = &c
	}
	op := domain.CreateOrder(orderID, domain.OrderType(input.Type), customer, input.Comments)
	result, err := s.executor.Create(ctx, op)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// AssignCustomer attaches customer details while the basket is open.
func (s *Service) AssignCustomer(ctx context.Context, input types.AssignCustomerInput) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.AssignCustomer(toCustomer(input.Customer)))
}

// AssignAddress sets the delivery address while the basket is open.
func (s *Service) AssignAddress(ctx context.Context, input types.AssignAddressInput) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.AssignAddress(toAddress(input.Address)))
}

func (s *Service) ChangeOrderType(ctx context.Context, input types.ChangeOrderTypeInput) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.ChangeOrderType(domain.OrderType(input.Type)))
}

// AddItem prices the line when needed and adds it. A missing item id is
// derived from the idempotency key, so a retried request lands on the same
// line, or generated when there is no key. Either way it is fixed before
// dispatch so every adapter sees the same payload.
func (s *Service) AddItem(ctx context.Context, input types.AddItemInput) (*types.TransitionResult, error) {
	itemID := strings.TrimSpace(input.ItemID)
	if itemID == "" {
		if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
			itemID = ItemIDForKey(strings.TrimSpace(input.OrderID), key)
		} else {
			itemID = s.newID()
		}
	}
	price, err := s.unitPrice(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	item := domain.LineItem{
		ID:        itemID,
		ProductID: strings.TrimSpace(input.ProductID),
		Quantity:  input.Quantity,
		UnitPrice: price,
		Comment:   input.Comment,
	}
	return s.execute(ctx, input.OrderID, domain.AddItem(item))
}

// ItemIDForKey is the item id an AddItem request without one gets for its
// idempotency key. Keys are scoped to the order.
func ItemIDForKey(orderID, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("orders/"+orderID+"/items/"+key)).String()
}

func (s *Service) RemoveItem(ctx context.Context, input types.ItemRef) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.RemoveItem(input.ItemID))
}

func (s *Service) ConfirmOrder(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.ConfirmOrder())
}

func (s *Service) ConfirmPayment(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.ConfirmPayment())
}

func (s *Service) StartProcessing(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.StartProcessing())
}

// ItemFinished folds a kitchen completion into the order.
func (s *Service) ItemFinished(ctx context.Context, input types.ItemRef) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.ItemFinished(input.ItemID))
}

func (s *Service) StartDelivery(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.StartDelivery())
}

func (s *Service) Delivered(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.Delivered())
}

func (s *Service) Served(ctx context.Context, input types.OrderRef) (*types.TransitionResult, error) {
	return s.execute(ctx, input.OrderID, domain.Served())
}

// GetOrder returns the current snapshot.
func (s *Service) GetOrder(ctx context.Context, input types.OrderRef) (*types.OrderProjection, error) {
	if strings.TrimSpace(input.OrderID) == "" {
		return nil, mapError(domain.ErrInvalidOrderID)
	}
	order, err := s.executor.Get(ctx, strings.TrimSpace(input.OrderID))
	if err != nil {
		return nil, mapError(err)
	}
	return order, nil
}

// ListOrders returns stored snapshots in the given states, or in any state when none are given.
func (s *Service) ListOrders(ctx context.Context, input types.ListOrdersInput) ([]*types.OrderProjection, error) {
	states := make([]domain.State, 0, len(input.States))
	for _, raw := range input.States {
		state := domain.State(strings.TrimSpace(raw))
		if !state.Valid() {
			return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidInput, raw)
		}
		states = append(states, state)
	}
	if len(states) == 0 {
		states = domain.States()
	}
	result, err := s.repo.ListByState(ctx, states)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func (s *Service) execute(ctx context.Context, orderID string, op domain.Operation) (*types.TransitionResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, mapError(domain.ErrInvalidOrderID)
	}
	result, err := s.executor.Execute(ctx, orderID, op)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func (s *Service) unitPrice(ctx context.Context, input types.AddItemInput) (decimal.Decimal, error) {
	if input.UnitPrice != nil {
		return *input.UnitPrice, nil
	}
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return decimal.Zero, domain.ErrMissingProduct
	}
	if s.pricer == nil {
		return decimal.Zero, fmt.Errorf("%w: unit price required", ErrInvalidInput)
	}
	return s.pricer.UnitPrice(ctx, productID)
}

func toCustomer(input types.CustomerInput) domain.Customer {
	customer := domain.Customer{Name: strings.TrimSpace(input.Name), LoyaltyID: input.LoyaltyID}
	for _, addr := range input.Addresses {
		customer.Addresses = append(customer.Addresses, toAddress(addr))
	}
	return customer
}

func toAddress(input types.AddressInput) domain.Address {
	return domain.Address{
		Line1:      strings.TrimSpace(input.Line1),
		Line2:      strings.TrimSpace(input.Line2),
		City:       strings.TrimSpace(input.City),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    strings.TrimSpace(input.Country),
	}
}

var _ ports.Service = (*Service)(nil)
