// Package storage persists per-product price history: a JSON file per
// product as the source of truth, with optional database mirrors.
package storage

import (
	"context"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// Mirror receives a copy of every history entry written to the file store.
type Mirror interface {
	// Mirror records one entry for productID.
	Mirror(ctx context.Context, productID string, e types.HistoryEntry) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}
