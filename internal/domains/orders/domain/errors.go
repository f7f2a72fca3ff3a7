package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrderID    = errors.New("order id is required")
	ErrInvalidOrderType  = errors.New("order type is invalid")
	ErrInvalidAddress    = errors.New("address requires line1 and city")
	ErrInvalidCustomer   = errors.New("customer name is required")
	ErrMissingItemID     = errors.New("item id is required")
	ErrMissingProduct    = errors.New("item product id is required")
	ErrInvalidQuantity   = errors.New("item quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("item unit price must not be negative")
	ErrUnknownOperation  = errors.New("unknown order operation")
	ErrOrderNotCreated   = errors.New("order has not been created")
	ErrOrderIDMismatch   = errors.New("create targets a different order id")
	ErrNoItems           = errors.New("order without items cannot be confirmed")
	ErrMissingAddress    = errors.New("delivery order requires a delivery address")
	ErrItemNotFound      = errors.New("order item not found")
	ErrOrderTypeMismatch = errors.New("operation not allowed for order type")
	ErrItemsNotReady     = errors.New("order items are not all ready")
	// ErrPreconditionFailed is wrapped by every TransitionError.
	ErrPreconditionFailed = errors.New("order state precondition failed")
)

// TransitionError reports an operation rejected because the order sits in an
// earlier or incompatible state.
type TransitionError struct {
	Operation OperationName
	Expected  State
	Actual    State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s requires state %s, order is %s", e.Operation, e.Expected, e.Actual)
}

func (e *TransitionError) Unwrap() error {
	return ErrPreconditionFailed
}

// IsInvalidInput reports whether err stems from a malformed operation payload.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrInvalidOrderID, ErrInvalidOrderType, ErrInvalidAddress, ErrInvalidCustomer,
		ErrMissingItemID, ErrMissingProduct, ErrInvalidQuantity, ErrInvalidPrice, ErrUnknownOperation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRejection reports whether err is a business rejection produced by the rule table.
func IsRejection(err error) bool {
	if IsInvalidInput(err) {
		return true
	}
	for _, target := range []error{
		ErrPreconditionFailed, ErrOrderNotCreated, ErrOrderIDMismatch, ErrNoItems, ErrMissingAddress,
		ErrItemNotFound, ErrOrderTypeMismatch, ErrItemsNotReady,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func typeMismatch(op OperationName, t OrderType) error {
	return fmt.Errorf("%w: %s on %s order", ErrOrderTypeMismatch, op, t)
}
