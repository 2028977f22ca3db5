package seed

import (
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `[
  {"name": "Apple", "price": "5.67", "description": "crisp", "quantity": 100},
  {"name": "Espresso Machine", "price": 380000.00, "quantity": 5}
]`

func TestLoad_PlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	products, err := Load(path)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "Apple", products[0].Name)
	assert.True(t, decimal.RequireFromString("5.67").Equal(products[0].Price))
	assert.Equal(t, "crisp", products[0].Description)
	assert.Equal(t, 100, products[0].Quantity)

	// Prices decode from plain JSON numbers too.
	assert.True(t, decimal.RequireFromString("380000.00").Equal(products[1].Price))
	assert.Equal(t, 5, products[1].Quantity)
}

func TestLoad_Gzipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleJSON))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	products, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}
