// Package extract finds a product price on a loaded page by walking
// progressively looser tiers: configured selectors, DOM heuristics,
// a currency pattern scan over the HTML and a bare-number scan over the text.
package extract

import (
	"github.com/IshaanNene/pricetracker/internal/config"
)

// Plan is everything the tier walk needs to know about one vendor.
type Plan struct {
	Site               string
	PriceSelectors     []string
	HeuristicSelectors []string
	Patterns           []string
	Ranges             config.RangeSet
	// Structured enables JSON-LD, microdata and meta price tags in tier A.
	Structured bool

	// Room lookup, used by lodging vendors.
	RowSelectors      []string
	RoomNameSelectors []string
	MaxAncestorDepth  int
}

// PlanFor builds the plan for site from its vendor profile.
func PlanFor(site string, v config.VendorConfig) Plan {
	depth := v.MaxAncestorDepth
	if depth <= 0 {
		depth = 6
	}
	return Plan{
		Site:               site,
		PriceSelectors:     v.PriceSelectors,
		HeuristicSelectors: v.HeuristicSelectors,
		Patterns:           v.Patterns,
		Ranges:             v.Ranges,
		Structured:         v.Kind == config.KindRetail,
		RowSelectors:       v.RowSelectors,
		RoomNameSelectors:  v.RoomNameSelectors,
		MaxAncestorDepth:   depth,
	}
}
