package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
)

var (
	// ErrInvalidInput signals the request payload violated a domain invariant.
	ErrInvalidInput = errors.New("invalid order input")
	// ErrTransient signals an infrastructure failure; the operation is safe to retry.
	ErrTransient = errors.New("order store unavailable")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrTransient):
		return err
	case domain.IsInvalidInput(err), errors.Is(err, ports.ErrUnknownProduct):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case domain.IsRejection(err),
		errors.Is(err, ports.ErrLifecycleEnded),
		errors.Is(err, ports.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
}
