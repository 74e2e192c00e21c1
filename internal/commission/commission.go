package commission

import (
	"fmt"

	"promoledger/internal/domain"

	"github.com/shopspring/decimal"
)

var bpsDenominator = decimal.NewFromInt(domain.BasisPointsDenominator)

// Compute returns floor(orderAmount * rateBps / 10000) in minor units.
// Non-positive order amounts earn nothing.
func Compute(orderAmount int64, rateBps int) (int64, error) {
	if rateBps < 0 || rateBps > domain.BasisPointsDenominator {
		return 0, fmt.Errorf("%w: commission rate %d bps outside [0, %d]", domain.ErrInvalidConfig, rateBps, domain.BasisPointsDenominator)
	}
	if orderAmount <= 0 {
		return 0, nil
	}
	amount := decimal.NewFromInt(orderAmount).
		Mul(decimal.NewFromInt(int64(rateBps))).
		Div(bpsDenominator).
		Floor()
	return amount.IntPart(), nil
}

// Rates resolves the commission rate for a product: a per-product override,
// else the global default. Both come from configuration.
type Rates struct {
	Default  *int
	Products map[string]int
}

func NewRates(defaultBps *int, products map[string]int) *Rates {
	return &Rates{Default: defaultBps, Products: products}
}

// For returns the rate for productID, or ErrInvalidConfig when none is configured.
func (r *Rates) For(productID string) (int, error) {
	if r != nil {
		if bps, ok := r.Products[productID]; ok {
			return bps, nil
		}
		if r.Default != nil {
			return *r.Default, nil
		}
	}
	return 0, fmt.Errorf("%w: no commission rate configured for product %s", domain.ErrInvalidConfig, productID)
}
