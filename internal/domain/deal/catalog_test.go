package deal

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-basket-challenge/internal/domain/product"
)

type mockProducts struct {
	known map[int64]product.Product
}

func (m *mockProducts) GetByID(_ context.Context, id int64) (product.Product, error) {
	p, ok := m.known[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

func knownProducts(ids ...int64) *mockProducts {
	known := make(map[int64]product.Product, len(ids))
	for _, id := range ids {
		known[id] = product.Product{ID: id}
	}
	return &mockProducts{known: known}
}

func TestAddDiscount_ValidatesFraction(t *testing.T) {
	c := NewCatalog(knownProducts(1))
	ctx := context.Background()

	_, err := c.AddDiscount(ctx, 1, decimal.RequireFromString("-0.1"))
	require.ErrorIs(t, err, ErrInvalidFraction)

	_, err = c.AddDiscount(ctx, 1, decimal.RequireFromString("1.01"))
	require.ErrorIs(t, err, ErrInvalidFraction)

	// Boundary fractions are valid.
	_, err = c.AddDiscount(ctx, 1, decimal.Zero)
	require.NoError(t, err)
	_, err = c.AddDiscount(ctx, 1, decimal.NewFromInt(1))
	require.NoError(t, err)
}

func TestAddDiscount_UnknownProduct(t *testing.T) {
	c := NewCatalog(knownProducts())

	_, err := c.AddDiscount(context.Background(), 42, decimal.RequireFromString("0.5"))
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAddDiscount_UsesDefaultThreshold(t *testing.T) {
	c := NewCatalog(knownProducts(1))

	d, err := c.AddDiscount(context.Background(), 1, decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, d.Threshold)
}

func TestAddBundle_ValidatesBothProducts(t *testing.T) {
	c := NewCatalog(knownProducts(1))
	ctx := context.Background()

	_, err := c.AddBundle(ctx, 1, 99)
	require.ErrorIs(t, err, product.ErrNotFound)

	_, err = c.AddBundle(ctx, 99, 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestDiscountsFor_ThresholdEligibility(t *testing.T) {
	c := NewCatalog(knownProducts(1, 2))
	ctx := context.Background()

	half := decimal.RequireFromString("0.5")
	_, err := c.AddDiscount(ctx, 1, half)
	require.NoError(t, err)

	// Below threshold.
	assert.Empty(t, c.DiscountsFor(map[int64]int{1: 1}))

	// At and above threshold the deal applies once, regardless of quantity.
	eligible := c.DiscountsFor(map[int64]int{1: 2})
	require.Len(t, eligible, 1)
	assert.True(t, half.Equal(eligible[0].Fraction))

	eligible = c.DiscountsFor(map[int64]int{1: 10})
	require.Len(t, eligible, 1)
}

func TestDiscountsFor_MultipleDealsSameProduct(t *testing.T) {
	c := NewCatalog(knownProducts(1))
	ctx := context.Background()

	_, err := c.AddDiscount(ctx, 1, decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	_, err = c.AddDiscount(ctx, 1, decimal.RequireFromString("0.25"))
	require.NoError(t, err)

	eligible := c.DiscountsFor(map[int64]int{1: 2})
	require.Len(t, eligible, 2)
	assert.True(t, decimal.RequireFromString("0.5").Equal(eligible[0].Fraction))
	assert.True(t, decimal.RequireFromString("0.25").Equal(eligible[1].Fraction))
}

func TestBundlesFor_TriggerMatch(t *testing.T) {
	c := NewCatalog(knownProducts(1, 2, 3))
	ctx := context.Background()

	_, err := c.AddBundle(ctx, 1, 2)
	require.NoError(t, err)
	_, err = c.AddBundle(ctx, 1, 3)
	require.NoError(t, err)
	_, err = c.AddBundle(ctx, 2, 3)
	require.NoError(t, err)

	bundles := c.BundlesFor(1)
	require.Len(t, bundles, 2)
	assert.Equal(t, int64(2), bundles[0].GiftID)
	assert.Equal(t, int64(3), bundles[1].GiftID)

	assert.Empty(t, c.BundlesFor(3))
}

func TestReferences(t *testing.T) {
	c := NewCatalog(knownProducts(1, 2, 3))
	ctx := context.Background()

	_, err := c.AddDiscount(ctx, 1, decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	_, err = c.AddBundle(ctx, 2, 3)
	require.NoError(t, err)

	assert.True(t, c.References(1))  // discount subject
	assert.True(t, c.References(2))  // bundle trigger
	assert.True(t, c.References(3))  // bundle gift
	assert.False(t, c.References(4)) // unreferenced
}
