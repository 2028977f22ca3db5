package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-basket-challenge/internal/domain/product"
)

type productRequest struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
}

type productResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
}

type createProductResponse struct {
	ID int64 `json:"id"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Quantity:    p.Available,
	}
}

func (r productRequest) toDomain() product.Product {
	return product.Product{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Description: r.Description,
		Available:   r.Quantity,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products := h.inventory.List(ctx)
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := queryInt64(r, "id")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}

	p, err := h.inventory.GetByID(ctx, id)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, errors.Wrap(err, "decode request"))
		return
	}

	created, err := h.inventory.Create(ctx, req.toDomain())
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, createProductResponse{ID: created.ID})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, errors.Wrap(err, "decode request"))
		return
	}

	if err := h.inventory.Update(ctx, req.toDomain()); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// removeProduct deletes a product unless a deal references it or a basket
// still holds a reservation for it.
func (h *Handler) removeProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := queryInt64(r, "id")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}

	if _, err := h.inventory.GetByID(ctx, id); err != nil {
		respondError(ctx, w, err)
		return
	}
	if h.deals.References(id) || h.baskets.Holding(ctx, id) {
		respondError(ctx, w, product.ErrInUse)
		return
	}

	if err := h.inventory.Remove(ctx, id); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := queryInt64(r, "productId")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}
	fraction, err := decimal.NewFromString(r.URL.Query().Get("discount"))
	if err != nil {
		badRequest(ctx, w, errors.New("query parameter \"discount\" must be a decimal"))
		return
	}

	if _, err := h.deals.AddDiscount(ctx, productID, fraction); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) addBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := queryInt64(r, "productId")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}
	giftID, err := queryInt64(r, "giftId")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}

	if _, err := h.deals.AddBundle(ctx, productID, giftID); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
