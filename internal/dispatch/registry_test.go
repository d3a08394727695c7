package dispatch

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/extract"
	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/parser"
	"github.com/IshaanNene/pricetracker/internal/types"
	"github.com/IshaanNene/pricetracker/internal/vendor"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fixedStrategy struct {
	out   types.Outcome
	calls []types.Target
}

func (f *fixedStrategy) Scrape(_ context.Context, t types.Target) types.Outcome {
	f.calls = append(f.calls, t)
	return f.out
}

func TestDispatchRoutesBySite(t *testing.T) {
	r := NewRegistry(testLogger)
	shop := &fixedStrategy{out: types.Success(types.Candidate{Value: 10, Tier: types.TierSelector}, "")}
	hotel := &fixedStrategy{out: types.Success(types.Candidate{Value: 20, Tier: types.TierHeuristic}, "")}
	require.NoError(t, r.Register("shop.example", shop))
	require.NoError(t, r.Register("hotel.example", hotel))

	out := r.Dispatch(context.Background(), &types.Product{ID: "1", Site: "www.Hotel.example", URL: "https://hotel.example/h", RoomType: "Suite"})
	require.True(t, out.OK)
	assert.Equal(t, 20.0, out.Price)
	require.Len(t, hotel.calls, 1)
	assert.Equal(t, "Suite", hotel.calls[0].RoomType)
	assert.Empty(t, shop.calls)
}

func TestDispatchUnsupportedSite(t *testing.T) {
	r := NewRegistry(testLogger)
	out := r.Dispatch(context.Background(), &types.Product{ID: "1", Site: "ebay.com"})
	require.False(t, out.OK)
	assert.ErrorIs(t, out.Err, types.ErrUnsupportedSite)
	assert.Equal(t, "unsupported site: ebay.com", out.Reason)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry(testLogger)
	require.NoError(t, r.Register("shop.example", &fixedStrategy{}))
	assert.Error(t, r.Register("SHOP.example", &fixedStrategy{}))
	assert.Error(t, r.Register("", &fixedStrategy{}))
	assert.Error(t, r.Register("other.example", nil))
	assert.Equal(t, []string{"shop.example"}, r.Sites())
}

func TestFromConfigRegistersBuiltins(t *testing.T) {
	sc, err := parser.NewScanner(8, testLogger)
	require.NoError(t, err)
	cfg := config.DefaultConfig()
	r, err := FromConfig(cfg, vendor.Deps{
		Provider: fetcher.NewStaticProvider(),
		Runner:   extract.NewRunner(sc, testLogger),
		Browser:  cfg.Browser,
		Logger:   testLogger,
	}, testLogger)
	require.NoError(t, err)
	assert.Equal(t, []string{"agoda.com", "amazon.in", "argoswatch.in", "flipkart.com"}, r.Sites())

	s, ok := r.Get("agoda.com")
	require.True(t, ok)
	assert.IsType(t, &vendor.LodgingStrategy{}, s)
}
