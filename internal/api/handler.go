// Package api exposes the basket and store operations over HTTP. Routes and
// status codes mirror the service's public contract: reservation rejections
// surface as 403, missing entities as 404, name conflicts as 409.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/shop-basket-challenge/internal/domain/basket"
	"github.com/xenking/shop-basket-challenge/internal/domain/checkout"
	"github.com/xenking/shop-basket-challenge/internal/domain/deal"
	"github.com/xenking/shop-basket-challenge/internal/domain/product"
)

// Inventory is the catalog surface the store endpoints need.
type Inventory interface {
	List(ctx context.Context) []product.Product
	GetByID(ctx context.Context, id int64) (product.Product, error)
	Create(ctx context.Context, p product.Product) (product.Product, error)
	Update(ctx context.Context, p product.Product) error
	Remove(ctx context.Context, id int64) error
}

// Deals is the rule surface the store endpoints need.
type Deals interface {
	AddDiscount(ctx context.Context, productID int64, fraction decimal.Decimal) (deal.Discount, error)
	AddBundle(ctx context.Context, productID, giftID int64) (deal.Bundle, error)
	References(productID int64) bool
}

// Baskets is the reservation surface the basket endpoints need.
type Baskets interface {
	All(ctx context.Context) []basket.Basket
	View(ctx context.Context, userID int64) basket.Basket
	AddItem(ctx context.Context, userID, productID int64, quantity int) (basket.Basket, error)
	SetQuantity(ctx context.Context, userID, productID int64, target int) (basket.Basket, error)
	RemoveItem(ctx context.Context, userID, productID int64) (basket.Basket, error)
	Holding(ctx context.Context, productID int64) bool
}

// Checkout is the pricing and settlement surface.
type Checkout interface {
	QuotePrice(ctx context.Context, userID int64) (decimal.Decimal, error)
	Checkout(ctx context.Context, userID int64) (*checkout.Receipt, error)
}

// Handler serves the basket and store routes, delegating to the injected
// domain components.
type Handler struct {
	inventory Inventory
	deals     Deals
	baskets   Baskets
	checkout  Checkout
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(inventory Inventory, deals Deals, baskets Baskets, co Checkout) *Handler {
	return &Handler{
		inventory: inventory,
		deals:     deals,
		baskets:   baskets,
		checkout:  co,
	}
}

// Routes registers every endpoint on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /basket/all", h.listBaskets)
	mux.HandleFunc("GET /basket/get", h.getBasket)
	mux.HandleFunc("POST /basket/add", h.addItem)
	mux.HandleFunc("PUT /basket/amend", h.amendItem)
	mux.HandleFunc("DELETE /basket/remove", h.removeItem)
	mux.HandleFunc("GET /basket/price", h.quotePrice)
	mux.HandleFunc("POST /basket/checkout", h.checkoutBasket)

	mux.HandleFunc("GET /store/products", h.listProducts)
	mux.HandleFunc("GET /store/product", h.getProduct)
	mux.HandleFunc("POST /store/product/add", h.createProduct)
	mux.HandleFunc("PUT /store/product/update", h.updateProduct)
	mux.HandleFunc("DELETE /store/product/remove", h.removeProduct)
	mux.HandleFunc("POST /store/discounts/add", h.addDiscount)
	mux.HandleFunc("POST /store/bundles/add", h.addBundle)
}

// respondJSON writes v with the given status. Encoding failures can only
// happen after the status line is sent, so they are logged and dropped.
func respondJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(ctx).Warn("encode response", zap.Error(err))
	}
}

// errorResponse is the JSON body for every failed request.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// respondError maps domain errors to HTTP statuses and writes the error
// body. Unknown errors become 500 and are logged.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(ctx).Error("request failed", zap.Error(err))
		err = errors.New("internal server error")
	}
	respondJSON(ctx, w, status, errorResponse{Code: status, Message: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, basket.ErrNotFound),
		errors.Is(err, basket.ErrProductNotInBasket):
		return http.StatusNotFound
	case errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, checkout.ErrGiftOutOfStock):
		return http.StatusForbidden
	case errors.Is(err, product.ErrDuplicateName),
		errors.Is(err, product.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, basket.ErrInvalidQuantity),
		errors.Is(err, product.ErrInvalidProduct),
		errors.Is(err, deal.ErrInvalidFraction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryInt64 parses a required integer query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.Errorf("query parameter %q is required", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("query parameter %q must be an integer", name)
	}
	return v, nil
}

// badRequest writes a 400 with the given parse error.
func badRequest(ctx context.Context, w http.ResponseWriter, err error) {
	respondJSON(ctx, w, http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	})
}
