package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrUnknownProduct = errors.New("unknown product")

// Pricer resolves the unit price of a product when the caller does not supply one.
type Pricer interface {
	UnitPrice(ctx context.Context, productID string) (decimal.Decimal, error)
}
