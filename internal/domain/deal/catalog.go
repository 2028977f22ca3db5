package deal

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Catalog owns the discount and bundle deal rules. Deals are append-only
// and immutable once created.
type Catalog struct {
	products Products

	mu        sync.RWMutex
	discounts []Discount
	bundles   []Bundle
}

// NewCatalog creates an empty deal catalog validating product references
// against the given lookup.
func NewCatalog(products Products) *Catalog {
	return &Catalog{products: products}
}

// AddDiscount registers a flat discount deal for a product. The fraction
// must lie in [0, 1]; the product must exist.
func (c *Catalog) AddDiscount(ctx context.Context, productID int64, fraction decimal.Decimal) (Discount, error) {
	if fraction.IsNegative() || fraction.GreaterThan(one) {
		return Discount{}, ErrInvalidFraction
	}
	if _, err := c.products.GetByID(ctx, productID); err != nil {
		return Discount{}, errors.Wrap(err, "discount product")
	}

	d := Discount{
		ProductID: productID,
		Fraction:  fraction,
		Threshold: DefaultThreshold,
	}

	c.mu.Lock()
	c.discounts = append(c.discounts, d)
	c.mu.Unlock()

	return d, nil
}

// AddBundle registers a bundle deal. Both the trigger and the gift product
// must exist.
func (c *Catalog) AddBundle(ctx context.Context, productID, giftID int64) (Bundle, error) {
	if _, err := c.products.GetByID(ctx, productID); err != nil {
		return Bundle{}, errors.Wrap(err, "bundle trigger product")
	}
	if _, err := c.products.GetByID(ctx, giftID); err != nil {
		return Bundle{}, errors.Wrap(err, "bundle gift product")
	}

	b := Bundle{ProductID: productID, GiftID: giftID}

	c.mu.Lock()
	c.bundles = append(c.bundles, b)
	c.mu.Unlock()

	return b, nil
}

// DiscountsFor returns the discount deals whose threshold is met by the
// given reservation map (productID -> reserved quantity), in insertion
// order. Eligibility is boolean per deal.
func (c *Catalog) DiscountsFor(items map[int64]int) []Discount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var eligible []Discount
	for _, d := range c.discounts {
		if items[d.ProductID] >= d.Threshold {
			eligible = append(eligible, d)
		}
	}
	return eligible
}

// BundlesFor returns the bundle deals triggered by the given product, in
// insertion order.
func (c *Catalog) BundlesFor(productID int64) []Bundle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Bundle
	for _, b := range c.bundles {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	return out
}

// Bundles returns a snapshot of every bundle deal in insertion order.
// Checkout iterates this list so that gift lines appear in a deterministic
// order on the receipt.
func (c *Catalog) Bundles() []Bundle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Bundle, len(c.bundles))
	copy(out, c.bundles)
	return out
}

// References reports whether any deal mentions the product, as a discount
// subject, a bundle trigger, or a bundle gift. Used to reject catalog
// removal of products that deals still point at.
func (c *Catalog) References(productID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, d := range c.discounts {
		if d.ProductID == productID {
			return true
		}
	}
	for _, b := range c.bundles {
		if b.ProductID == productID || b.GiftID == productID {
			return true
		}
	}
	return false
}
