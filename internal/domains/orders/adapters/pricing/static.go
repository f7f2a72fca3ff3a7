package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
)

// Static answers unit prices from a fixed catalog.
type Static struct {
	prices map[string]decimal.Decimal
}

func NewStatic(prices map[string]decimal.Decimal) *Static {
	copied := make(map[string]decimal.Decimal, len(prices))
	for id, price := range prices {
		copied[id] = price
	}
	return &Static{prices: copied}
}

// ParseCatalog reads "sku=price" pairs separated by commas, e.g. "latte=3.80,bagel=2.10".
func ParseCatalog(raw string) (*Static, error) {
	prices := map[string]decimal.Decimal{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, errors.Errorf("catalog entry %q: want sku=price", entry)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, errors.Wrapf(err, "catalog entry %q", entry)
		}
		if price.IsNegative() {
			return nil, errors.Errorf("catalog entry %q: negative price", entry)
		}
		prices[strings.TrimSpace(id)] = price
	}
	return NewStatic(prices), nil
}

func (s *Static) UnitPrice(_ context.Context, productID string) (decimal.Decimal, error) {
	price, ok := s.prices[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ports.ErrUnknownProduct, productID)
	}
	return price, nil
}

var _ ports.Pricer = (*Static)(nil)
