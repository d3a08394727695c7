package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/parser"
	"github.com/IshaanNene/pricetracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newRunner(t *testing.T) *Runner {
	t.Helper()
	sc, err := parser.NewScanner(16, testLogger)
	require.NoError(t, err)
	return NewRunner(sc, testLogger)
}

func session(t *testing.T, body string) *fetcher.StaticSession {
	t.Helper()
	s, err := fetcher.NewStaticSession("https://shop.example/p/1", body)
	require.NoError(t, err)
	return s
}

func vendorPlan(t *testing.T, site string) Plan {
	t.Helper()
	v, ok := config.DefaultConfig().Vendor(site)
	require.True(t, ok)
	return PlanFor(site, v)
}

func TestRunSelectorTier(t *testing.T) {
	r := newRunner(t)
	sess := session(t, `<html><body>
		<span class="a-price"><span class="a-offscreen">₹12,499.00</span><span class="a-price-whole">12,499.</span></span>
		<span class="a-price-whole">2,999.</span>
	</body></html>`)

	c, err := r.Run(context.Background(), sess, vendorPlan(t, "amazon.in"))
	require.NoError(t, err)
	assert.Equal(t, 12499.0, c.Value)
	assert.Equal(t, types.TierSelector, c.Tier)
	assert.Equal(t, ".a-price-whole", c.Selector)
}

func TestRunSelectorTierBeatsEarlierPatternMatch(t *testing.T) {
	r := newRunner(t)
	page := `<html><head><script>var bundle = {"comboPrice": "₹9,999"};</script></head><body>
		<div class="a-section"><span class="a-price-whole">12,499.</span></div>
	</body></html>`

	patternOnly := vendorPlan(t, "amazon.in")
	patternOnly.PriceSelectors = nil
	patternOnly.HeuristicSelectors = nil
	c, err := r.Run(context.Background(), session(t, page), patternOnly)
	require.NoError(t, err)
	assert.Equal(t, 9999.0, c.Value)
	assert.Equal(t, types.TierPattern, c.Tier)

	c, err = r.Run(context.Background(), session(t, page), vendorPlan(t, "amazon.in"))
	require.NoError(t, err)
	assert.Equal(t, 12499.0, c.Value)
	assert.Equal(t, types.TierSelector, c.Tier)
}

func TestRunStructuredData(t *testing.T) {
	tests := []struct {
		name     string
		head     string
		body     string
		want     float64
		selector string
	}{
		{
			name:     "json-ld product offer",
			head:     `<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Titan Watch","offers":{"@type":"Offer","price":"8499.00","priceCurrency":"INR"}}</script>`,
			want:     8499,
			selector: "structured:json-ld",
		},
		{
			name:     "json-ld graph aggregate offer",
			head:     `<script type="application/ld+json">{"@graph":[{"@type":"BreadcrumbList"},{"@type":"Product","offers":{"@type":"AggregateOffer","lowPrice":6250,"highPrice":7100}}]}</script>`,
			want:     6250,
			selector: "structured:json-ld",
		},
		{
			name:     "microdata",
			body:     `<div itemscope itemtype="https://schema.org/Offer"><meta itemprop="price" content="7250"><span>Best seller</span></div>`,
			want:     7250,
			selector: "structured:microdata",
		},
		{
			name:     "product meta tag",
			head:     `<meta property="product:price:amount" content="5400.00"><meta property="product:price:currency" content="INR">`,
			want:     5400,
			selector: "structured:meta",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(t)
			page := `<html><head>` + tt.head + `</head><body>` + tt.body + `<p class="deal-price">₹99,999</p></body></html>`
			c, err := r.Run(context.Background(), session(t, page), vendorPlan(t, "argoswatch.in"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Value)
			assert.Equal(t, types.TierSelector, c.Tier)
			assert.Equal(t, tt.selector, c.Selector)
		})
	}
}

func TestRunStructuredDataDisabled(t *testing.T) {
	r := newRunner(t)
	plan := vendorPlan(t, "argoswatch.in")
	plan.Structured = false
	page := `<html><head><meta property="product:price:amount" content="5400"></head><body><p>₹4,100</p></body></html>`
	c, err := r.Run(context.Background(), session(t, page), plan)
	require.NoError(t, err)
	assert.Equal(t, 4100.0, c.Value)
	assert.NotEqual(t, types.TierSelector, c.Tier)
}

func TestRunSelectorTierSkipsDecoys(t *testing.T) {
	r := newRunner(t)
	sess := session(t, `<html><body>
		<span class="price">Save ₹500</span>
		<span class="price">₹7,250</span>
	</body></html>`)
	c, err := r.Run(context.Background(), sess, vendorPlan(t, "argoswatch.in"))
	require.NoError(t, err)
	assert.Equal(t, 7250.0, c.Value)
	assert.Equal(t, types.TierSelector, c.Tier)
}

func TestRunHeuristicPrefersLargerUnstruckPrice(t *testing.T) {
	r := newRunner(t)
	plan := Plan{
		Site:               "shop.example",
		HeuristicSelectors: config.DefaultHeuristicSelectors,
		Ranges: config.RangeSet{
			Selector:  types.PriceRange{Min: 1, Max: 1e6},
			Heuristic: types.PriceRange{Min: 100, Max: 50000},
			Pattern:   types.PriceRange{Min: 100, Max: 50000},
			Bare:      types.PriceRange{Min: 100, Max: 50000},
		},
	}
	sess := session(t, `<html><body>
		<div><del>₹4,999</del></div>
		<div><span style="font-size: 14px">₹1,299</span></div>
		<div><span style="font-size: 28px">₹3,499</span></div>
	</body></html>`)

	c, err := r.Run(context.Background(), sess, plan)
	require.NoError(t, err)
	assert.Equal(t, 3499.0, c.Value)
	assert.Equal(t, types.TierHeuristic, c.Tier)
}

func TestRunPatternTier(t *testing.T) {
	r := newRunner(t)
	plan := vendorPlan(t, "flipkart.com")
	plan.PriceSelectors = nil
	plan.HeuristicSelectors = nil
	sess := session(t, `<html><head><script>window.__STATE__ = {"display": "₹8,499", "emi": "₹999/month"};</script></head>
		<body><p>Nothing visible here</p></body></html>`)

	c, err := r.Run(context.Background(), sess, plan)
	require.NoError(t, err)
	assert.Equal(t, 8499.0, c.Value)
	assert.Equal(t, types.TierPattern, c.Tier)
}

func TestRunBareTierTakesMode(t *testing.T) {
	r := newRunner(t)
	plan := vendorPlan(t, "argoswatch.in")
	plan.Patterns = []string{`NOMATCH(\d+)`}
	sess := session(t, `<html><body>
		<p>Model 2024 edition</p>
		<p>Was 5,400 now 4,800</p>
		<p>Pay 4,800 today</p>
	</body></html>`)

	c, err := r.Run(context.Background(), sess, plan)
	require.NoError(t, err)
	assert.Equal(t, 4800.0, c.Value)
	assert.Equal(t, types.TierBare, c.Tier)
}

func TestRunFailureKinds(t *testing.T) {
	r := newRunner(t)
	plan := vendorPlan(t, "argoswatch.in")

	_, err := r.Run(context.Background(), session(t, `<html><body><p>Out of stock</p></body></html>`), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = r.Run(context.Background(), session(t, `<html><body><span class="price">₹5,00,00,000</span></body></html>`), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidRange)
	var se *types.ScrapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "argoswatch.in", se.Site)
}

func TestRunStrayDigitsAreNotFound(t *testing.T) {
	r := newRunner(t)
	_, err := r.Run(context.Background(),
		session(t, `<html><body><p>Only 3 left in stock. Ships in 2 days.</p></body></html>`),
		vendorPlan(t, "amazon.in"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NotErrorIs(t, err, types.ErrInvalidRange)
}

func TestRunHonorsCancellation(t *testing.T) {
	r := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, session(t, `<html><body></body></html>`), vendorPlan(t, "amazon.in"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMode(t *testing.T) {
	got := mode([]types.Candidate{{Value: 10}, {Value: 20}, {Value: 20}, {Value: 10}, {Value: 30}})
	assert.Equal(t, 10.0, got.Value, "ties go to the first occurrence")
	assert.Equal(t, 2.0, got.Score)
}

func TestBlockDetector(t *testing.T) {
	d := NewBlockDetector(config.DefaultBlockTitleMarkers, []string{"captcha", "blocked"})

	blocked, why := d.Check("Access Denied", "https://www.amazon.in/dp/X")
	assert.True(t, blocked)
	assert.Equal(t, "title:access denied", why)

	blocked, why = d.Check("Flipkart", "https://www.flipkart.com/blocked?x=1")
	assert.True(t, blocked)
	assert.Equal(t, "url:blocked", why)

	blocked, _ = d.Check("Prestige Pressure Cooker 5L", "https://www.flipkart.com/p/itm1")
	assert.False(t, blocked)
}

func TestBlockDetectorVendorMarkers(t *testing.T) {
	for _, site := range []string{"amazon.in", "flipkart.com", "argoswatch.in", "agoda.com"} {
		v, ok := config.DefaultConfig().Vendor(site)
		require.True(t, ok)
		d := NewBlockDetector(v.BlockTitleMarkers, v.BlockURLMarkers)

		blocked, why := d.Check("Sorry! Something went wrong!", "https://"+site+"/dp/X")
		assert.True(t, blocked, site)
		assert.Equal(t, "title:sorry", why, site)

		blocked, why = d.Check("Amazon.in", "https://"+site+"/errors/500?ref=x")
		assert.True(t, blocked, site)
		assert.Equal(t, "url:/errors/", why, site)

		blocked, _ = d.Check("Prestige Svachh 5L Pressure Cooker", "https://"+site+"/dp/B0X")
		assert.False(t, blocked, site)
	}
}

func TestDiagnosticsCapture(t *testing.T) {
	dir := t.TempDir()
	d := NewDiagnostics(dir, testLogger)
	page := `<html><body><span class="price">₹1,234</span></body></html>`

	rep := d.Capture(session(t, page), "shop.example", "42")
	assert.True(t, rep.HasRupee)
	assert.False(t, rep.HasINR)
	assert.True(t, rep.HasPriceTag)
	assert.Empty(t, rep.Screenshot)
	require.NotEmpty(t, rep.Snapshot)

	raw, err := os.ReadFile(rep.Snapshot)
	require.NoError(t, err)
	decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, page, string(decoded))

	off := NewDiagnostics("", testLogger).Capture(session(t, page), "shop.example", "42")
	assert.Empty(t, off.Snapshot)
	assert.Equal(t, len(page), off.HTMLLength)
	assert.Empty(t, off.ReadyState)
}

// liveSession stands in for a renderer that can run scripts.
type liveSession struct {
	*fetcher.StaticSession
	scripts []string
}

func (s *liveSession) Evaluate(js string) (any, error) {
	s.scripts = append(s.scripts, js)
	return "interactive", nil
}

func TestDiagnosticsReadsReadyState(t *testing.T) {
	sess := &liveSession{StaticSession: session(t, `<html><body><p>Loading rooms</p></body></html>`)}
	rep := NewDiagnostics("", testLogger).Capture(sess, "agoda.com", "7")
	assert.Equal(t, "interactive", rep.ReadyState)
	require.Len(t, sess.scripts, 1)
	assert.Contains(t, sess.scripts[0], "document.readyState")
}
