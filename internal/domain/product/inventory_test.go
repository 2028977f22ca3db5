package product

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestInventory(t *testing.T, products ...Product) *Inventory {
	t.Helper()
	inv := NewInventory()
	for _, p := range products {
		_, err := inv.Create(context.Background(), p)
		require.NoError(t, err)
	}
	return inv
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	inv := NewInventory()
	ctx := context.Background()

	a, err := inv.Create(ctx, Product{Name: "Apple", Price: decimal.RequireFromString("5.67"), Available: 100})
	require.NoError(t, err)
	b, err := inv.Create(ctx, Product{Name: "Bike", Price: decimal.RequireFromString("380000.00"), Available: 5})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, 2, inv.Count(ctx))
}

func TestCreate_DuplicateNameCaseInsensitive(t *testing.T) {
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 1})

	_, err := inv.Create(context.Background(), Product{Name: "APPLE", Price: decimal.NewFromInt(2), Available: 3})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestCreate_InvalidProduct(t *testing.T) {
	inv := NewInventory()
	ctx := context.Background()

	_, err := inv.Create(ctx, Product{Name: "", Price: decimal.NewFromInt(1), Available: 1})
	require.ErrorIs(t, err, ErrInvalidProduct)

	_, err = inv.Create(ctx, Product{Name: "Apple", Price: decimal.NewFromInt(-1), Available: 1})
	require.ErrorIs(t, err, ErrInvalidProduct)

	_, err = inv.Create(ctx, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: -1})
	require.ErrorIs(t, err, ErrInvalidProduct)
}

func TestUpdate_ReplacesAllFields(t *testing.T) {
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 10})
	ctx := context.Background()

	err := inv.Update(ctx, Product{
		ID:          1,
		Name:        "Green Apple",
		Price:       decimal.RequireFromString("1.25"),
		Description: "crisp",
		Available:   42,
	})
	require.NoError(t, err)

	p, err := inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Green Apple", p.Name)
	assert.True(t, decimal.RequireFromString("1.25").Equal(p.Price))
	assert.Equal(t, 42, p.Available)

	// The old name is free again, the new one is taken.
	_, err = inv.Create(ctx, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 1})
	require.NoError(t, err)
	_, err = inv.Create(ctx, Product{Name: "green apple", Price: decimal.NewFromInt(1), Available: 1})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestUpdate_RejectsNameClash(t *testing.T) {
	inv := newTestInventory(t,
		Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 1},
		Product{Name: "Banana", Price: decimal.NewFromInt(2), Available: 1},
	)

	err := inv.Update(context.Background(), Product{ID: 2, Name: "apple", Price: decimal.NewFromInt(2), Available: 1})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestUpdate_NotFound(t *testing.T) {
	inv := NewInventory()

	err := inv.Update(context.Background(), Product{ID: 99, Name: "Ghost", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReserve_DecrementsAvailable(t *testing.T) {
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 10})
	ctx := context.Background()

	require.NoError(t, inv.Reserve(ctx, 1, 4))

	p, err := inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Available)
}

func TestReserve_InsufficientStockLeavesCountUntouched(t *testing.T) {
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 3})
	ctx := context.Background()

	err := inv.Reserve(ctx, 1, 4)
	require.ErrorIs(t, err, ErrInsufficientStock)

	p, err := inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Available)
}

func TestReserve_ExactRemainingStock(t *testing.T) {
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 3})
	ctx := context.Background()

	require.NoError(t, inv.Reserve(ctx, 1, 3))

	p, err := inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Available)

	require.ErrorIs(t, inv.Reserve(ctx, 1, 1), ErrInsufficientStock)
}

func TestReserve_InvalidUnits(t *testing.T) {
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 3})

	require.ErrorIs(t, inv.Reserve(context.Background(), 1, 0), ErrInvalidProduct)
	require.ErrorIs(t, inv.Reserve(context.Background(), 1, -2), ErrInvalidProduct)
}

func TestRelease_ReturnsUnits(t *testing.T) {
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 10})
	ctx := context.Background()

	require.NoError(t, inv.Reserve(ctx, 1, 7))
	require.NoError(t, inv.Release(ctx, 1, 5))

	p, err := inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Available)
}

func TestReserve_UnknownProduct(t *testing.T) {
	inv := NewInventory()

	require.ErrorIs(t, inv.Reserve(context.Background(), 42, 1), ErrNotFound)
	require.ErrorIs(t, inv.Release(context.Background(), 42, 1), ErrNotFound)
}

func TestRemove_ThenLookupFails(t *testing.T) {
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 1})
	ctx := context.Background()

	require.NoError(t, inv.Remove(ctx, 1))

	_, err := inv.GetByID(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, inv.Reserve(ctx, 1, 1), ErrNotFound)
	assert.Empty(t, inv.List(ctx))

	// Removing frees the name for reuse.
	_, err = inv.Create(ctx, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 1})
	require.NoError(t, err)
}

func TestList_OrderedByID(t *testing.T) {
	inv := newTestInventory(t,
		Product{Name: "Cherry", Price: decimal.NewFromInt(3), Available: 1},
		Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: 1},
		Product{Name: "Banana", Price: decimal.NewFromInt(2), Available: 1},
	)

	out := inv.List(context.Background())
	require.Len(t, out, 3)
	assert.Equal(t, "Cherry", out[0].Name)
	assert.Equal(t, "Apple", out[1].Name)
	assert.Equal(t, "Banana", out[2].Name)
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	const (
		stock   = 50
		workers = 100
	)
	inv := newTestInventory(t, Product{Name: "Apple", Price: decimal.NewFromInt(1), Available: stock})
	ctx := context.Background()

	var g errgroup.Group
	granted := make(chan struct{}, workers)
	for range workers {
		g.Go(func() error {
			if err := inv.Reserve(ctx, 1, 1); err == nil {
				granted <- struct{}{}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(granted)

	assert.Equal(t, stock, len(granted))

	p, err := inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Available)
}
