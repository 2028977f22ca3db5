package checkout

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-basket-challenge/internal/domain/basket"
	"github.com/xenking/shop-basket-challenge/internal/domain/deal"
	"github.com/xenking/shop-basket-challenge/internal/domain/product"
)

// ErrGiftOutOfStock is returned when a satisfied bundle deal cannot draw its
// gift unit from available stock. The whole checkout aborts; no partial
// settlement is observable.
var ErrGiftOutOfStock = errors.New("bundle gift out of stock")

// Stock is the inventory surface the engine needs: price lookups for
// quoting and reserve/release for staging bundle gifts.
type Stock interface {
	GetByID(ctx context.Context, id int64) (product.Product, error)
	Reserve(ctx context.Context, id int64, units int) error
	Release(ctx context.Context, id int64, units int) error
}

// Deals exposes the rule evaluations the engine prices against.
type Deals interface {
	DiscountsFor(items map[int64]int) []deal.Discount
	Bundles() []deal.Bundle
}

// Baskets exposes basket reads and the settlement critical section.
type Baskets interface {
	Get(ctx context.Context, userID int64) (basket.Basket, error)
	Settle(ctx context.Context, userID int64, fn func(ctx context.Context, items map[int64]int) error) error
}

// Engine orchestrates pricing and settlement over the inventory, the deal
// catalog, and the basket store.
type Engine struct {
	stock   Stock
	deals   Deals
	baskets Baskets
	now     func() time.Time
}

// NewEngine creates a checkout engine with the required domain dependencies.
func NewEngine(stock Stock, deals Deals, baskets Baskets) *Engine {
	return &Engine{
		stock:   stock,
		deals:   deals,
		baskets: baskets,
		now:     time.Now,
	}
}

// QuotePrice returns the basket's price: reserved quantity times current
// unit price summed over all entries, minus the flat adjustment of every
// eligible discount deal. The result is exact, no rounding is applied.
func (e *Engine) QuotePrice(ctx context.Context, userID int64) (decimal.Decimal, error) {
	b, err := e.baskets.Get(ctx, userID)
	if err != nil {
		return decimal.Decimal{}, err
	}

	_, total, err := e.priceLines(ctx, b.Items)
	return total, err
}

// Checkout finalizes the basket: the reservations become permanent
// purchases, every satisfied bundle deal draws one gift unit from available
// stock, and the basket is cleared. The operation is all-or-nothing: a gift
// that cannot be drawn aborts the checkout with ErrGiftOutOfStock, rolling
// back any gifts already staged and leaving basket and stock unchanged.
func (e *Engine) Checkout(ctx context.Context, userID int64) (*Receipt, error) {
	var receipt *Receipt

	err := e.baskets.Settle(ctx, userID, func(ctx context.Context, items map[int64]int) error {
		purchases, total, err := e.priceLines(ctx, items)
		if err != nil {
			return err
		}

		gifts, err := e.stageGifts(ctx, items)
		if err != nil {
			return err
		}

		receipt = &Receipt{
			ID:        uuid.New().String(),
			UserID:    userID,
			Purchases: purchases,
			Gifts:     gifts,
			Total:     total,
			CreatedAt: e.now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// priceLines builds purchase line snapshots and the discounted total for
// the given reservations. Lines are ordered by product ID.
func (e *Engine) priceLines(ctx context.Context, items map[int64]int) ([]PurchaseLine, decimal.Decimal, error) {
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lines := make([]PurchaseLine, 0, len(ids))
	total := decimal.Zero
	for _, id := range ids {
		p, err := e.stock.GetByID(ctx, id)
		if err != nil {
			return nil, decimal.Decimal{}, errors.Wrapf(err, "price product %d", id)
		}

		quantity := items[id]
		lines = append(lines, PurchaseLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  quantity,
		})
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(quantity))))
	}

	for _, d := range e.deals.DiscountsFor(items) {
		p, err := e.stock.GetByID(ctx, d.ProductID)
		if err != nil {
			return nil, decimal.Decimal{}, errors.Wrapf(err, "price discount product %d", d.ProductID)
		}
		total = total.Sub(p.Price.Mul(d.Fraction))
	}

	return lines, total, nil
}

// stageGifts reserves one gift unit per triggered bundle deal, in deal
// insertion order. On any failure it releases every gift already staged and
// returns the error, so the stock is unchanged.
func (e *Engine) stageGifts(ctx context.Context, items map[int64]int) ([]GiftLine, error) {
	var (
		gifts  []GiftLine
		staged []int64
	)

	rollback := func() {
		for _, giftID := range staged {
			_ = e.stock.Release(ctx, giftID, 1)
		}
	}

	for _, b := range e.deals.Bundles() {
		if items[b.ProductID] == 0 {
			continue
		}

		gift, err := e.stock.GetByID(ctx, b.GiftID)
		if err != nil {
			rollback()
			return nil, errors.Wrapf(err, "gift product %d", b.GiftID)
		}

		if err := e.stock.Reserve(ctx, b.GiftID, 1); err != nil {
			rollback()
			if errors.Is(err, product.ErrInsufficientStock) {
				return nil, ErrGiftOutOfStock
			}
			return nil, errors.Wrapf(err, "reserve gift %d", b.GiftID)
		}
		staged = append(staged, b.GiftID)

		gifts = append(gifts, GiftLine{
			ProductID: gift.ID,
			Name:      gift.Name,
			Quantity:  1,
		})
	}
	return gifts, nil
}
