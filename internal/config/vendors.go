package config

import (
	"time"

	"github.com/IshaanNene/pricetracker/internal/parser"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// Vendor kinds.
const (
	KindRetail  = "retail"
	KindLodging = "lodging"
)

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1"
)

// DefaultHeuristicSelectors are the class-name selectors used by the heuristic tier.
var DefaultHeuristicSelectors = []string{
	`[class*="price"]`,
	`[class*="Price"]`,
	`[class*="amount"]`,
	`[class*="Amount"]`,
	`[data-price]`,
}

// DefaultBlockTitleMarkers flag interstitial and bot-check pages by title.
var DefaultBlockTitleMarkers = []string{
	"Access Denied",
	"Blocked",
	"Robot Check",
	"captcha",
	"Are you a human",
	"Attention Required",
	"Sorry",
}

// DefaultBlockURLMarkers flag bot checks and error redirects by final URL.
var DefaultBlockURLMarkers = []string{
	"captcha",
	"/errors/",
	"/error",
}

func browserHeaders() map[string]string {
	return map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	}
}

// DefaultVendors returns the built-in profiles for every supported site.
func DefaultVendors() map[string]VendorConfig {
	return map[string]VendorConfig{
		"amazon.in": {
			Kind:     KindRetail,
			Currency: types.DefaultCurrency,
			Render: RenderConfig{
				UserAgent:      iphoneUA,
				ViewportWidth:  375,
				ViewportHeight: 667,
				Mobile:         true,
				Headers:        browserHeaders(),
				Wait:           "idle",
				Timeout:        30 * time.Second,
			},
			// Mobile pages trip bot detection less often.
			Rewrites: []RewriteRule{{From: "www.amazon.in", To: "m.amazon.in"}},
			PriceSelectors: []string{
				".a-price-whole",
				".a-price",
				`[data-automation-id="list-price"]`,
				".a-color-price",
			},
			NameSelectors: []string{"#productTitle", "#title", "h1"},
			Patterns:      parser.DefaultCurrencyPatterns,
			Ranges: RangeSet{
				Selector:  types.PriceRange{Min: 1, Max: 1000000},
				Heuristic: types.PriceRange{Min: 100, Max: 500000},
				Pattern:   types.PriceRange{Min: 100, Max: 500000},
				Bare:      types.PriceRange{Min: 500, Max: 200000},
			},
		},
		"flipkart.com": {
			Kind:     KindRetail,
			Currency: types.DefaultCurrency,
			Render: RenderConfig{
				UserAgent:      desktopUA,
				ViewportWidth:  1366,
				ViewportHeight: 768,
				Headers:        browserHeaders(),
				Wait:           "idle",
				Timeout:        45 * time.Second,
				Settle:         3 * time.Second,
			},
			PriceSelectors: []string{
				"._1_WHN1",
				"._30jeq3._16Jk6d",
				"._3I9_wc._2p6lqe",
				".notranslate._1_WHN1",
				"._25b18c .notranslate",
				"._1vC4OE",
				"._3qQ9m1",
				"._16Jk6d",
				".CEmiEU .Nx9bqj",
				"._2rQ-NK",
			},
			NameSelectors: []string{
				".B_NuCI",
				"._35KyD6",
				".yhZ0Tl",
				".x-product-title-label",
				"._2V5EHH",
			},
			DefaultName: "Flipkart Product",
			Patterns: []string{
				`₹\s*([\d,]+)`,
				`"price"[^>]*>([^<]*?₹\s*[\d,]+[^<]*?)<`,
				`class="[^"]*price[^"]*"[^>]*>([^<]*?[\d,]+[^<]*?)<`,
			},
			BlockURLMarkers: append([]string{"blocked"}, DefaultBlockURLMarkers...),
			Ranges: RangeSet{
				Selector:  types.PriceRange{Min: 1, Max: 1000000},
				Heuristic: types.PriceRange{Min: 100, Max: 50000},
				Pattern:   types.PriceRange{Min: 1000, Max: 20000},
				Bare:      types.PriceRange{Min: 1000, Max: 20000},
			},
		},
		"argoswatch.in": {
			Kind:     KindRetail,
			Currency: types.DefaultCurrency,
			Render: RenderConfig{
				UserAgent: desktopUA,
				Headers:   browserHeaders(),
				Wait:      "idle",
				Timeout:   30 * time.Second,
			},
			PriceSelectors: []string{
				".price",
				".product-price",
				"[data-price]",
				".money",
				".amount",
			},
			NameSelectors: []string{".product-title", ".product__title", "h1"},
			Patterns:      parser.DefaultCurrencyPatterns,
			Ranges: RangeSet{
				Selector:  types.PriceRange{Min: 1, Max: 1000000},
				Heuristic: types.PriceRange{Min: 100, Max: 200000},
				Pattern:   types.PriceRange{Min: 100, Max: 200000},
				Bare:      types.PriceRange{Min: 500, Max: 100000},
			},
		},
		"agoda.com": {
			Kind:     KindLodging,
			Currency: types.DefaultCurrency,
			Render: RenderConfig{
				UserAgent:      desktopUA,
				ViewportWidth:  1920,
				ViewportHeight: 1080,
				Headers:        browserHeaders(),
				Wait:           "idle",
				Timeout:        60 * time.Second,
				Settle:         5 * time.Second,
			},
			PriceSelectors: []string{
				`[data-selenium="display-price-room"]`,
				".PropertyPriceSection__Value",
				".PriceDisplay__Value",
				`[data-selenium="hotel-rooms-room-price"]`,
				".room-price-section .currency",
				".PropertyPriceSection .currency",
				".Price__Value",
				".price-display",
				`[class*="Price"] [class*="Value"]`,
				".price .currency",
			},
			RowSelectors: []string{
				`[data-selenium="hotel-rooms-room-row"]`,
				".RoomGridRow",
				".PropertyRoomRow",
			},
			RoomNameSelectors: []string{
				`[data-selenium="hotel-rooms-room-name"]`,
				".RoomGridRow__RoomName",
				".RoomName",
				".room-type-name",
				".PropertyRoomRow__RoomName",
			},
			DefaultRoomType:   "Deluxe King Pool View",
			CheckInOffsetDays: 7,
			Nights:            1,
			MaxAncestorDepth:  6,
			Patterns: []string{
				`₹\s*([\d,]+)`,
				`INR\s*([\d,]+)`,
				`"price"[^>]*>([^<]*?[\d,]+[^<]*?)<`,
			},
			Ranges: RangeSet{
				Selector:  types.PriceRange{Min: 1000, Max: 50000},
				Heuristic: types.PriceRange{Min: 1000, Max: 50000},
				Pattern:   types.PriceRange{Min: 2000, Max: 30000},
				Bare:      types.PriceRange{Min: 2000, Max: 30000},
			},
		},
	}
}

// withDefaults fills the zero-valued fields of v from def.
// A vendor section in the config file only needs to name what it changes.
func (v VendorConfig) withDefaults(def VendorConfig) VendorConfig {
	if v.Kind == "" {
		v.Kind = def.Kind
	}
	if v.Currency == "" {
		v.Currency = def.Currency
	}
	v.Render = v.Render.withDefaults(def.Render)
	if len(v.Rewrites) == 0 {
		v.Rewrites = def.Rewrites
	}
	v.PriceSelectors = orStrings(v.PriceSelectors, def.PriceSelectors)
	v.HeuristicSelectors = orStrings(v.HeuristicSelectors, def.HeuristicSelectors)
	v.Patterns = orStrings(v.Patterns, def.Patterns)
	v.BlockTitleMarkers = orStrings(v.BlockTitleMarkers, def.BlockTitleMarkers)
	v.BlockURLMarkers = orStrings(v.BlockURLMarkers, def.BlockURLMarkers)
	v.NameSelectors = orStrings(v.NameSelectors, def.NameSelectors)
	v.RowSelectors = orStrings(v.RowSelectors, def.RowSelectors)
	v.RoomNameSelectors = orStrings(v.RoomNameSelectors, def.RoomNameSelectors)
	v.Ranges.Selector = orRange(v.Ranges.Selector, def.Ranges.Selector)
	v.Ranges.Heuristic = orRange(v.Ranges.Heuristic, def.Ranges.Heuristic)
	v.Ranges.Pattern = orRange(v.Ranges.Pattern, def.Ranges.Pattern)
	v.Ranges.Bare = orRange(v.Ranges.Bare, def.Ranges.Bare)
	if v.MinNameLength == 0 {
		v.MinNameLength = def.MinNameLength
	}
	if v.DefaultName == "" {
		v.DefaultName = def.DefaultName
	}
	if v.DefaultRoomType == "" {
		v.DefaultRoomType = def.DefaultRoomType
	}
	if v.CheckInOffsetDays == 0 {
		v.CheckInOffsetDays = def.CheckInOffsetDays
	}
	if v.Nights == 0 {
		v.Nights = def.Nights
	}
	if v.MaxAncestorDepth == 0 {
		v.MaxAncestorDepth = def.MaxAncestorDepth
	}
	return v
}

func (r RenderConfig) withDefaults(def RenderConfig) RenderConfig {
	if r.UserAgent == "" {
		r.UserAgent = def.UserAgent
	}
	if r.ViewportWidth == 0 && r.ViewportHeight == 0 {
		r.ViewportWidth, r.ViewportHeight, r.Mobile = def.ViewportWidth, def.ViewportHeight, def.Mobile
	}
	if len(r.Headers) == 0 {
		r.Headers = def.Headers
	}
	if r.Wait == "" {
		r.Wait = def.Wait
	}
	if r.Timeout == 0 {
		r.Timeout = def.Timeout
	}
	if r.Settle == 0 {
		r.Settle = def.Settle
	}
	return r
}

// genericVendor supplies the fields every profile needs regardless of site.
func genericVendor(b BrowserConfig) VendorConfig {
	return VendorConfig{
		Kind:               KindRetail,
		Currency:           types.DefaultCurrency,
		Render:             RenderConfig{UserAgent: b.UserAgent, Headers: browserHeaders(), Wait: "idle", Timeout: b.DefaultTimeout},
		HeuristicSelectors: DefaultHeuristicSelectors,
		Patterns:           parser.DefaultCurrencyPatterns,
		BlockTitleMarkers:  DefaultBlockTitleMarkers,
		BlockURLMarkers:    DefaultBlockURLMarkers,
		MinNameLength:      6,
		CheckInOffsetDays:  7,
		Nights:             1,
		MaxAncestorDepth:   6,
	}
}

// normalizeVendors merges each configured vendor with its built-in profile
// and the generic fallbacks.
func normalizeVendors(cfg *Config) {
	builtin := DefaultVendors()
	generic := genericVendor(cfg.Browser)
	if cfg.Vendors == nil {
		cfg.Vendors = map[string]VendorConfig{}
	}
	for site, def := range builtin {
		if _, ok := cfg.Vendors[site]; !ok {
			cfg.Vendors[site] = def
		}
	}
	for site, v := range cfg.Vendors {
		if def, ok := builtin[site]; ok {
			v = v.withDefaults(def)
		}
		cfg.Vendors[site] = v.withDefaults(generic)
	}
}

func orStrings(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

func orRange(v, def types.PriceRange) types.PriceRange {
	if v.Min == 0 && v.Max == 0 {
		return def
	}
	return v
}
