package basket

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/shop-basket-challenge/internal/domain/product"
)

// Sentinel errors for basket operations.
var (
	// ErrNotFound is returned when no basket has been materialized for the
	// user yet.
	ErrNotFound = errors.New("basket not found")
	// ErrProductNotInBasket is returned when the basket holds no
	// reservation for the product. Distinct from product.ErrNotFound, which
	// means the product is missing from the catalog.
	ErrProductNotInBasket = errors.New("product not in basket")
	// ErrInvalidQuantity is returned for non-positive add quantities and
	// negative target quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Basket is a snapshot of one user's reservations: product ID to reserved
// quantity. Every present key maps to a quantity greater than zero.
type Basket struct {
	UserID int64
	Items  map[int64]int
}

// Stock is the inventory surface the store needs: atomic check-and-reserve,
// release, and existence lookup.
type Stock interface {
	Reserve(ctx context.Context, productID int64, units int) error
	Release(ctx context.Context, productID int64, units int) error
	GetByID(ctx context.Context, productID int64) (product.Product, error)
}
