package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Apurer/order-lifecycle-engine/internal/clients/http/catalog"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
)

// ProductSource is the read side of the catalog client.
type ProductSource interface {
	Product(ctx context.Context, productID string) (*catalog.Product, error)
}

// Remote prices items from the catalog service.
type Remote struct {
	source ProductSource
}

func NewRemote(source ProductSource) *Remote {
	return &Remote{source: source}
}

func (r *Remote) UnitPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	product, err := r.source.Product(ctx, productID)
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return decimal.Zero, fmt.Errorf("%w: %s", ports.ErrUnknownProduct, productID)
	case err != nil:
		return decimal.Zero, err
	}
	if product.UnitPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("catalog returned negative price for %s", productID)
	}
	return product.UnitPrice, nil
}

var _ ports.Pricer = (*Remote)(nil)
