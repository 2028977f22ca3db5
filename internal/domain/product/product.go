package product

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog and stock operations.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateName is returned when a product name (case-insensitive)
	// already belongs to another product.
	ErrDuplicateName = errors.New("product name already exists")
	// ErrInsufficientStock is returned when a reservation asks for more
	// units than are currently available.
	ErrInsufficientStock = errors.New("insufficient product stock")
	// ErrInvalidProduct is returned when a created or updated product
	// carries an empty name, a negative price, or a negative quantity.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInUse is returned when a product cannot be removed because a deal
	// or a basket still references it.
	ErrInUse = errors.New("product is referenced by a deal or basket")
)

// Product represents a catalog item with its available stock.
// Available counts units on hand only; units reserved into baskets have
// already been subtracted and come back through Release when a reservation
// shrinks.
type Product struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	Description string
	Available   int
}

// Validate checks the field constraints shared by create and update.
func (p Product) Validate() error {
	if p.Name == "" {
		return errors.Wrap(ErrInvalidProduct, "name is required")
	}
	if p.Price.IsNegative() {
		return errors.Wrap(ErrInvalidProduct, "price must not be negative")
	}
	if p.Available < 0 {
		return errors.Wrap(ErrInvalidProduct, "quantity must not be negative")
	}
	return nil
}
