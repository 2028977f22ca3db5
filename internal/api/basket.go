package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-basket-challenge/internal/domain/basket"
	"github.com/xenking/shop-basket-challenge/internal/domain/checkout"
)

// updateBasketRequest is the body of basket add and amend calls.
type updateBasketRequest struct {
	UserID    int64 `json:"userId"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type basketResponse struct {
	UserID int64         `json:"userId"`
	Items  map[int64]int `json:"items"`
}

type priceResponse struct {
	Price decimal.Decimal `json:"price"`
}

type purchaseLineResponse struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type giftLineResponse struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type receiptResponse struct {
	ID        string                 `json:"id"`
	UserID    int64                  `json:"userId"`
	Purchases []purchaseLineResponse `json:"purchases"`
	Gifts     []giftLineResponse     `json:"gifts"`
	Amount    decimal.Decimal        `json:"amount"`
	CreatedAt time.Time              `json:"createdAt"`
}

func toBasketResponse(b basket.Basket) basketResponse {
	return basketResponse{UserID: b.UserID, Items: b.Items}
}

func toReceiptResponse(r *checkout.Receipt) receiptResponse {
	purchases := make([]purchaseLineResponse, len(r.Purchases))
	for i, line := range r.Purchases {
		purchases[i] = purchaseLineResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.UnitPrice,
			Quantity:  line.Quantity,
		}
	}
	gifts := make([]giftLineResponse, len(r.Gifts))
	for i, line := range r.Gifts {
		gifts[i] = giftLineResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
		}
	}
	return receiptResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		Purchases: purchases,
		Gifts:     gifts,
		Amount:    r.Total,
		CreatedAt: r.CreatedAt,
	}
}

func (h *Handler) listBaskets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	baskets := h.baskets.All(ctx)
	out := make([]basketResponse, len(baskets))
	for i, b := range baskets {
		out[i] = toBasketResponse(b)
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

func (h *Handler) getBasket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := queryInt64(r, "userId")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toBasketResponse(h.baskets.View(ctx, userID)))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateBasketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, errors.Wrap(err, "decode request"))
		return
	}

	b, err := h.baskets.AddItem(ctx, req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toBasketResponse(b))
}

func (h *Handler) amendItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateBasketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(ctx, w, errors.Wrap(err, "decode request"))
		return
	}

	b, err := h.baskets.SetQuantity(ctx, req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toBasketResponse(b))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := queryInt64(r, "userId")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}
	productID, err := queryInt64(r, "productId")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}

	b, err := h.baskets.RemoveItem(ctx, userID, productID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toBasketResponse(b))
}

func (h *Handler) quotePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := queryInt64(r, "userId")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}

	price, err := h.checkout.QuotePrice(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, priceResponse{Price: price})
}

func (h *Handler) checkoutBasket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := queryInt64(r, "userId")
	if err != nil {
		badRequest(ctx, w, err)
		return
	}

	receipt, err := h.checkout.Checkout(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toReceiptResponse(receipt))
}
