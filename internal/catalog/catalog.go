// Package catalog reads and writes the tracked product list.
//
// The file is a JSON object {"products": [...]}; a bare array is also
// accepted on load. Other top-level keys and unknown product fields survive
// a load/save round trip.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/IshaanNene/pricetracker/internal/storage"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// ErrNoCatalog is returned by Load when the catalog file does not exist.
var ErrNoCatalog = errors.New("catalog file not found")

// Catalog is the decoded catalog file.
type Catalog struct {
	Products []*types.Product
	extra    map[string]json.RawMessage
}

// Load reads the catalog at path. A missing file returns ErrNoCatalog along
// with an empty catalog; malformed JSON is an error.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Catalog{}, ErrNoCatalog
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Decode(data)
}

// Decode parses catalog JSON.
func Decode(data []byte) (*Catalog, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Catalog{}, nil
	}

	if data[0] == '[' {
		var products []*types.Product
		if err := json.Unmarshal(data, &products); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return &Catalog{Products: compact(products)}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c := &Catalog{}
	if list, ok := raw["products"]; ok {
		if err := json.Unmarshal(list, &c.Products); err != nil {
			return nil, fmt.Errorf("decode catalog products: %w", err)
		}
		delete(raw, "products")
	}
	c.Products = compact(c.Products)
	if len(raw) > 0 {
		c.extra = raw
	}
	return c, nil
}

// Encode renders the catalog as indented JSON.
func (c *Catalog) Encode() ([]byte, error) {
	out := make(map[string]any, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	products := c.Products
	if products == nil {
		products = []*types.Product{}
	}
	out["products"] = products
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the catalog to path atomically.
func (c *Catalog) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

// Filter keeps products whose id is in ids. An empty ids keeps everything.
func (c *Catalog) Filter(ids []string) []*types.Product {
	if len(ids) == 0 {
		return c.Products
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.Product
	for _, p := range c.Products {
		if want[string(p.ID)] {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the product with id.
func (c *Catalog) Find(id string) (*types.Product, bool) {
	for _, p := range c.Products {
		if string(p.ID) == id {
			return p, true
		}
	}
	return nil, false
}

func compact(ps []*types.Product) []*types.Product {
	out := ps[:0]
	for _, p := range ps {
		if p != nil {
			if p.Status == "" {
				p.Status = types.StatusPending
			}
			out = append(out, p)
		}
	}
	return out
}
