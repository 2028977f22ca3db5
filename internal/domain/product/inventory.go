package product

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
)

// Inventory owns the product catalog and the available stock counts.
//
// Locking model: the inventory mutex guards the maps and the ID counter
// only. Each record carries its own mutex so that check-and-reserve on one
// product is atomic without serializing unrelated products. Lookups release
// the inventory lock before touching a record; a record evicted in between
// reports removed and the operation retries the map lookup, which then
// fails with ErrNotFound.
type Inventory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*record
	byName map[string]int64 // lowercased name -> id
}

type record struct {
	mu      sync.Mutex
	removed bool
	p       Product
}

// NewInventory returns an empty inventory. Products are added through
// Create, which assigns IDs from a monotonically increasing counter.
func NewInventory() *Inventory {
	return &Inventory{
		byID:   make(map[int64]*record),
		byName: make(map[string]int64),
	}
}

// Create adds a new product to the catalog and returns it with its assigned
// ID. The name must be unique case-insensitively; a clash fails with
// ErrDuplicateName.
func (inv *Inventory) Create(_ context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}

	key := strings.ToLower(p.Name)

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, exists := inv.byName[key]; exists {
		return Product{}, ErrDuplicateName
	}

	inv.nextID++
	p.ID = inv.nextID
	inv.byID[p.ID] = &record{p: p}
	inv.byName[key] = p.ID

	return p, nil
}

// Update replaces every field of an existing product, including its
// available quantity. Renaming onto another product's name fails with
// ErrDuplicateName.
func (inv *Inventory) Update(_ context.Context, p Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	key := strings.ToLower(p.Name)

	inv.mu.Lock()
	defer inv.mu.Unlock()

	rec, ok := inv.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	if other, exists := inv.byName[key]; exists && other != p.ID {
		return ErrDuplicateName
	}

	rec.mu.Lock()
	oldKey := strings.ToLower(rec.p.Name)
	rec.p = p
	rec.mu.Unlock()

	if oldKey != key {
		delete(inv.byName, oldKey)
		inv.byName[key] = p.ID
	}
	return nil
}

// GetByID returns a snapshot copy of the product.
func (inv *Inventory) GetByID(_ context.Context, id int64) (Product, error) {
	rec, ok := inv.lookup(id)
	if !ok {
		return Product{}, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return Product{}, ErrNotFound
	}
	return rec.p, nil
}

// List returns snapshot copies of every product, ordered by ID.
func (inv *Inventory) List(_ context.Context) []Product {
	inv.mu.RLock()
	recs := make([]*record, 0, len(inv.byID))
	for _, rec := range inv.byID {
		recs = append(recs, rec)
	}
	inv.mu.RUnlock()

	out := make([]Product, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.removed {
			out = append(out, rec.p)
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of products in the catalog.
func (inv *Inventory) Count(_ context.Context) int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.byID)
}

// Remove deletes a product from the catalog. Callers enforce the
// referenced-by-deal-or-basket policy before removal.
func (inv *Inventory) Remove(_ context.Context, id int64) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	rec, ok := inv.byID[id]
	if !ok {
		return ErrNotFound
	}

	rec.mu.Lock()
	rec.removed = true
	name := strings.ToLower(rec.p.Name)
	rec.mu.Unlock()

	delete(inv.byID, id)
	delete(inv.byName, name)
	return nil
}

// Reserve atomically moves units out of the available pool. It fails with
// ErrInsufficientStock — leaving the count untouched — when fewer than the
// requested units are available.
func (inv *Inventory) Reserve(_ context.Context, id int64, units int) error {
	if units <= 0 {
		return errors.Wrap(ErrInvalidProduct, "reserve units must be positive")
	}

	rec, ok := inv.lookup(id)
	if !ok {
		return ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return ErrNotFound
	}
	if rec.p.Available < units {
		return ErrInsufficientStock
	}
	rec.p.Available -= units
	return nil
}

// Release returns units to the available pool. Used when a basket
// reservation shrinks or is removed; it always succeeds for an existing
// product.
func (inv *Inventory) Release(_ context.Context, id int64, units int) error {
	if units <= 0 {
		return errors.Wrap(ErrInvalidProduct, "release units must be positive")
	}

	rec, ok := inv.lookup(id)
	if !ok {
		return ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return ErrNotFound
	}
	rec.p.Available += units
	return nil
}

func (inv *Inventory) lookup(id int64) (*record, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	rec, ok := inv.byID[id]
	return rec, ok
}
