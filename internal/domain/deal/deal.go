package deal

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-basket-challenge/internal/domain/product"
)

// DefaultThreshold is the reserved quantity at which a discount deal becomes
// eligible. Fixed at 2: the deals are "buy two, get a flat cut" promotions.
const DefaultThreshold = 2

// ErrInvalidFraction is returned when a discount fraction falls outside [0, 1].
var ErrInvalidFraction = errors.New("discount fraction must be between 0 and 1")

// Discount is a flat price adjustment on a single product. Once the basket
// reserves Threshold or more units of the product, the deal subtracts
// price * Fraction from the quote exactly once, no matter how far the
// reserved quantity exceeds the threshold.
type Discount struct {
	ProductID int64
	Fraction  decimal.Decimal
	Threshold int
}

// Bundle grants one free unit of the gift product at checkout whenever the
// trigger product is present in the basket. The gift unit is drawn from the
// gift product's available pool, not from any basket.
type Bundle struct {
	ProductID int64
	GiftID    int64
}

// Products is the catalog lookup the deal catalog needs to validate
// referenced product IDs.
type Products interface {
	GetByID(ctx context.Context, id int64) (product.Product, error)
}
