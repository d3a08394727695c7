// Package monitor detects price movements between consecutive successful
// scrapes of the same product.
package monitor

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// Direction identifies which way a price moved.
type Direction string

const (
	Drop Direction = "drop"
	Rise Direction = "rise"
)

// Change is a detected price movement.
type Change struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Site      string    `json:"site"`
	Direction Direction `json:"direction"`
	OldPrice  float64   `json:"old_price"`
	NewPrice  float64   `json:"new_price"`
	Currency  string    `json:"currency"`
	Amount    float64   `json:"amount"`
	Percent   float64   `json:"percent"`
	Since     string    `json:"since"`
}

func (c Change) String() string {
	return fmt.Sprintf("%s (%s): %s %s %.2f -> %.2f (%.2f, %.1f%%)",
		c.ProductID, c.Site, c.Direction, c.Currency, c.OldPrice, c.NewPrice, c.Amount, c.Percent)
}

// ChangeDetector compares fresh outcomes against the last recorded success.
type ChangeDetector struct {
	logger  *slog.Logger
	mu      sync.Mutex
	changes []Change
}

// NewChangeDetector creates a new change detector.
func NewChangeDetector(logger *slog.Logger) *ChangeDetector {
	return &ChangeDetector{
		logger: logger.With("component", "change_detector"),
	}
}

// Detect compares o with the newest success in prior, the history as it was
// before o was recorded. Failed outcomes, first observations and currency
// switches never produce a change.
func (cd *ChangeDetector) Detect(p *types.Product, prior *types.History, o types.Outcome) (Change, bool) {
	if !o.OK || prior == nil {
		return Change{}, false
	}
	last, ok := prior.LastSuccess()
	if !ok {
		return Change{}, false
	}
	if last.Currency != nil && o.Currency != "" && *last.Currency != o.Currency {
		return Change{}, false
	}
	old := *last.Price
	if old == o.Price {
		return Change{}, false
	}

	c := Change{
		ProductID: string(p.ID),
		Name:      p.Name,
		Site:      p.Site,
		OldPrice:  old,
		NewPrice:  o.Price,
		Currency:  o.Currency,
		Amount:    math.Abs(o.Price - old),
		Since:     last.Date,
	}
	if old > 0 {
		c.Percent = math.Round(c.Amount/old*1000) / 10
	}
	c.Direction = Rise
	if o.Price < old {
		c.Direction = Drop
	}

	cd.mu.Lock()
	cd.changes = append(cd.changes, c)
	cd.mu.Unlock()

	cd.logger.Info("price "+string(c.Direction),
		"product_id", c.ProductID,
		"site", c.Site,
		"old", c.OldPrice,
		"new", c.NewPrice,
		"amount", c.Amount,
		"percent", c.Percent,
	)
	return c, true
}

// Changes returns every change detected so far, in detection order.
func (cd *ChangeDetector) Changes() []Change {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	out := make([]Change, len(cd.changes))
	copy(out, cd.changes)
	return out
}
