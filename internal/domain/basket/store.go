package basket

import (
	"context"
	"sort"
	"sync"
)

// Store owns every user's basket and choreographs reservations against the
// stock: an item enters a basket only after the stock grants the units, and
// units flow back on shrink or removal, so available + reserved stays
// constant for every product until checkout consumes the reservation.
//
// Locking model: the store mutex guards the basket map; each basket carries
// its own mutex held for the full reserve-then-record step (and for the
// whole settlement at checkout). A basket evicted between lookup and lock
// reports evicted and the operation retries.
type Store struct {
	stock Stock

	mu      sync.RWMutex
	baskets map[int64]*entry
}

type entry struct {
	mu      sync.Mutex
	evicted bool
	items   map[int64]int
}

// NewStore creates an empty basket store reserving against the given stock.
func NewStore(stock Stock) *Store {
	return &Store{
		stock:   stock,
		baskets: make(map[int64]*entry),
	}
}

// AddItem reserves quantity units of the product and adds them to the
// user's basket, materializing the basket on first success. On a failed
// reservation the basket is left exactly as before the call; a basket
// created by this call is discarded again.
func (s *Store) AddItem(ctx context.Context, userID, productID int64, quantity int) (Basket, error) {
	if quantity <= 0 {
		return Basket{}, ErrInvalidQuantity
	}

	for {
		e, created := s.materialize(userID)
		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}

		if err := s.stock.Reserve(ctx, productID, quantity); err != nil {
			if created && len(e.items) == 0 {
				s.evict(userID, e)
			}
			e.mu.Unlock()
			return Basket{}, err
		}

		e.items[productID] += quantity
		b := snapshot(userID, e.items)
		e.mu.Unlock()
		return b, nil
	}
}

// SetQuantity sets the basket's reservation for the product to target,
// reserving or releasing the difference. Target 0 removes the entry. The
// basket must already exist; the product must exist in the catalog even
// when the difference is zero.
func (s *Store) SetQuantity(ctx context.Context, userID, productID int64, target int) (Basket, error) {
	if target < 0 {
		return Basket{}, ErrInvalidQuantity
	}

	e, err := s.lockExisting(userID)
	if err != nil {
		return Basket{}, err
	}
	defer e.mu.Unlock()

	current := e.items[productID]
	switch delta := target - current; {
	case delta > 0:
		if err := s.stock.Reserve(ctx, productID, delta); err != nil {
			return Basket{}, err
		}
	case delta < 0:
		if err := s.stock.Release(ctx, productID, -delta); err != nil {
			return Basket{}, err
		}
	default:
		if _, err := s.stock.GetByID(ctx, productID); err != nil {
			return Basket{}, err
		}
	}

	if target == 0 {
		delete(e.items, productID)
	} else {
		e.items[productID] = target
	}
	return snapshot(userID, e.items), nil
}

// RemoveItem releases the basket's full reservation for the product back to
// the stock and removes the entry. It fails with ErrProductNotInBasket when
// the basket holds no such reservation.
func (s *Store) RemoveItem(ctx context.Context, userID, productID int64) (Basket, error) {
	e, err := s.lockExisting(userID)
	if err != nil {
		return Basket{}, err
	}
	defer e.mu.Unlock()

	if _, err := s.stock.GetByID(ctx, productID); err != nil {
		return Basket{}, err
	}

	quantity, ok := e.items[productID]
	if !ok {
		return Basket{}, ErrProductNotInBasket
	}

	if err := s.stock.Release(ctx, productID, quantity); err != nil {
		return Basket{}, err
	}
	delete(e.items, productID)
	return snapshot(userID, e.items), nil
}

// Get returns a snapshot of the user's basket, or ErrNotFound when no
// basket has been materialized.
func (s *Store) Get(_ context.Context, userID int64) (Basket, error) {
	e, err := s.lockExisting(userID)
	if err != nil {
		return Basket{}, err
	}
	defer e.mu.Unlock()
	return snapshot(userID, e.items), nil
}

// View returns the user's basket or a default-empty view. A lookup never
// materializes a basket.
func (s *Store) View(ctx context.Context, userID int64) Basket {
	b, err := s.Get(ctx, userID)
	if err != nil {
		return Basket{UserID: userID, Items: map[int64]int{}}
	}
	return b
}

// All returns snapshots of every materialized basket, ordered by user ID.
func (s *Store) All(_ context.Context) []Basket {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.baskets))
	entries := make([]*entry, 0, len(s.baskets))
	for id, e := range s.baskets {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Basket, 0, len(entries))
	for i, e := range entries {
		e.mu.Lock()
		if !e.evicted {
			out = append(out, snapshot(ids[i], e.items))
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Holding reports whether any basket currently reserves the product.
func (s *Store) Holding(_ context.Context, productID int64) bool {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.baskets))
	for _, e := range s.baskets {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		_, held := e.items[productID]
		e.mu.Unlock()
		if held {
			return true
		}
	}
	return false
}

// Settle runs fn inside the basket's critical section and clears the basket
// when fn returns nil. fn receives the live reservation map and must not
// mutate it; no other basket operation for this user can interleave. On a
// non-nil error the basket is left untouched. Used by checkout: the cleared
// reservations are never released, the stock has been consumed.
func (s *Store) Settle(ctx context.Context, userID int64, fn func(ctx context.Context, items map[int64]int) error) error {
	e, err := s.lockExisting(userID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := fn(ctx, e.items); err != nil {
		return err
	}
	clear(e.items)
	return nil
}

// materialize returns the user's entry, creating it when absent. The second
// return value reports whether this call created the entry.
func (s *Store) materialize(userID int64) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.baskets[userID]; ok {
		return e, false
	}
	e := &entry{items: make(map[int64]int)}
	s.baskets[userID] = e
	return e, true
}

// lockExisting returns the user's entry with its mutex held, retrying past
// entries evicted between lookup and lock. The caller must unlock.
func (s *Store) lockExisting(userID int64) (*entry, error) {
	for {
		s.mu.RLock()
		e, ok := s.baskets[userID]
		s.mu.RUnlock()
		if !ok {
			return nil, ErrNotFound
		}

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		return e, nil
	}
}

// evict removes an entry that never received a reservation. Must be called
// with e.mu held.
func (s *Store) evict(userID int64, e *entry) {
	s.mu.Lock()
	if s.baskets[userID] == e {
		delete(s.baskets, userID)
	}
	e.evicted = true
	s.mu.Unlock()
}

func snapshot(userID int64, items map[int64]int) Basket {
	copied := make(map[int64]int, len(items))
	for id, qty := range items {
		copied[id] = qty
	}
	return Basket{UserID: userID, Items: copied}
}
