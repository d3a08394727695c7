package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/types"
)

const sample = `{
  "products": [
    {"id": 1, "name": "Pressure Cooker", "site": "amazon.in", "url": "https://www.amazon.in/dp/B0X", "targetPrice": 9999},
    {"id": "goa-stay", "name": "Goa Stay", "site": "agoda.com", "url": "https://www.agoda.com/h", "roomType": "Deluxe King Pool View", "status": "error", "lastError": "blocked"}
  ],
  "owner": "ops"
}`

func TestLoadAndSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Products, 2)
	assert.Equal(t, types.ProductID("1"), c.Products[0].ID)
	assert.Equal(t, types.StatusPending, c.Products[0].Status)
	assert.Equal(t, "blocked", c.Products[1].ErrorMessage())

	c.Products[1].MarkActive(time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC))
	require.NoError(t, c.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Owner    string           `json:"owner"`
		Products []map[string]any `json:"products"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "ops", doc.Owner)
	require.Len(t, doc.Products, 2)
	assert.Equal(t, 9999.0, doc.Products[0]["targetPrice"])
	assert.Equal(t, "active", doc.Products[1]["status"])
	assert.Nil(t, doc.Products[1]["lastError"])
	assert.Equal(t, "2024-06-30T12:00:00Z", doc.Products[1]["lastUpdated"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, ErrNoCatalog)
	require.NotNil(t, c)
	assert.Empty(t, c.Products)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"products": [`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCatalog)
}

func TestDecodeBareArrayAndFilter(t *testing.T) {
	c, err := Decode([]byte(`[{"id":"a","site":"amazon.in"},null,{"id":"b","site":"flipkart.com"}]`))
	require.NoError(t, err)
	require.Len(t, c.Products, 2)

	assert.Len(t, c.Filter(nil), 2)
	only := c.Filter([]string{"b"})
	require.Len(t, only, 1)
	assert.Equal(t, "flipkart.com", only[0].Site)

	p, ok := c.Find("a")
	require.True(t, ok)
	assert.Equal(t, "amazon.in", p.Site)

	empty, err := Decode([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, empty.Products)
}
