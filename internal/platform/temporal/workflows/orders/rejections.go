package orders

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
)

// RejectionErrorType is the application error type of every rule rejection.
const RejectionErrorType = "OrderRejection"

const codePrecondition = "PreconditionFailed"

var rejectionCodes = []struct {
	code string
	err  error
}{
	{"InvalidOrderID", domain.ErrInvalidOrderID},
	{"InvalidOrderType", domain.ErrInvalidOrderType},
	{"InvalidAddress", domain.ErrInvalidAddress},
	{"InvalidCustomer", domain.ErrInvalidCustomer},
	{"MissingItemID", domain.ErrMissingItemID},
	{"MissingProduct", domain.ErrMissingProduct},
	{"InvalidQuantity", domain.ErrInvalidQuantity},
	{"InvalidPrice", domain.ErrInvalidPrice},
	{"UnknownOperation", domain.ErrUnknownOperation},
	{"OrderNotCreated", domain.ErrOrderNotCreated},
	{"OrderIDMismatch", domain.ErrOrderIDMismatch},
	{"NoItems", domain.ErrNoItems},
	{"MissingAddress", domain.ErrMissingAddress},
	{"ItemNotFound", domain.ErrItemNotFound},
	{"OrderTypeMismatch", domain.ErrOrderTypeMismatch},
	{"ItemsNotReady", domain.ErrItemsNotReady},
}

// Rejection is the error detail carried across the workflow boundary so the
// client can rebuild the same domain error.
type Rejection struct {
	Code      string               `json:"code"`
	Message   string               `json:"message"`
	Operation domain.OperationName `json:"operation,omitempty"`
	Expected  domain.State         `json:"expected,omitempty"`
	Actual    domain.State         `json:"actual,omitempty"`
}

// RejectionError wraps a rule rejection as a non-retryable application error.
func RejectionError(err error) error {
	rej := Rejection{Message: err.Error()}
	var transition *domain.TransitionError
	if errors.As(err, &transition) {
		rej.Code = codePrecondition
		rej.Operation = transition.Operation
		rej.Expected = transition.Expected
		rej.Actual = transition.Actual
	} else {
		for _, c := range rejectionCodes {
			if errors.Is(err, c.err) {
				rej.Code = c.code
				break
			}
		}
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), RejectionErrorType, nil, rej)
}

// FromRejection returns the domain error behind a rejection, or err unchanged.
func FromRejection(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != RejectionErrorType {
		return err
	}
	var rej Rejection
	if detailsErr := appErr.Details(&rej); detailsErr != nil {
		return err
	}
	return rej.Err()
}

// Err rebuilds the domain error.
func (r Rejection) Err() error {
	if r.Code == codePrecondition {
		return &domain.TransitionError{Operation: r.Operation, Expected: r.Expected, Actual: r.Actual}
	}
	for _, c := range rejectionCodes {
		if c.code == r.Code {
			return &rejectedError{msg: r.Message, sentinel: c.err}
		}
	}
	return errors.New(r.Message)
}

type rejectedError struct {
	msg      string
	sentinel error
}

func (e *rejectedError) Error() string { return e.msg }
func (e *rejectedError) Unwrap() error { return e.sentinel }
