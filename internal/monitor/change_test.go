package monitor

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func history(prices ...float64) *types.History {
	h := &types.History{ProductID: "1"}
	for _, p := range prices {
		p := p
		cur := "INR"
		h.Prices = append(h.Prices, types.HistoryEntry{Date: "2024-06-29", Price: &p, Currency: &cur, Status: types.EntrySuccess})
	}
	return h
}

func success(price float64) types.Outcome {
	return types.Success(types.Candidate{Value: price, Tier: types.TierSelector}, "INR")
}

func TestDetect(t *testing.T) {
	p := &types.Product{ID: "1", Name: "Cooker", Site: "amazon.in"}

	tests := []struct {
		name      string
		prior     *types.History
		outcome   types.Outcome
		want      bool
		direction Direction
		amount    float64
		percent   float64
	}{
		{"first observation", history(), success(100), false, "", 0, 0},
		{"unchanged", history(100), success(100), false, "", 0, 0},
		{"drop", history(200, 100), success(80), true, Drop, 20, 20},
		{"rise", history(12000), success(13442), true, Rise, 1442, 12},
		{"failure ignored", history(100), types.Failure(types.ErrBlocked), false, "", 0, 0},
		{"nil history", nil, success(100), false, "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cd := NewChangeDetector(testLogger)
			c, ok := cd.Detect(p, tt.prior, tt.outcome)
			require.Equal(t, tt.want, ok)
			if !ok {
				assert.Empty(t, cd.Changes())
				return
			}
			assert.Equal(t, tt.direction, c.Direction)
			assert.InDelta(t, tt.amount, c.Amount, 0.001)
			assert.InDelta(t, tt.percent, c.Percent, 0.001)
			assert.Equal(t, "2024-06-29", c.Since)
			assert.Equal(t, []Change{c}, cd.Changes())
		})
	}
}

func TestDetectSkipsErrorEntries(t *testing.T) {
	h := history(500)
	h.Prices = append(h.Prices, types.HistoryEntry{Date: "2024-06-30", Status: types.EntryError, Error: "blocked"})

	cd := NewChangeDetector(testLogger)
	c, ok := cd.Detect(&types.Product{ID: "1"}, h, success(450))
	require.True(t, ok)
	assert.Equal(t, 500.0, c.OldPrice)
	assert.Contains(t, c.String(), "drop INR 500.00 -> 450.00")
}

func TestDetectIgnoresCurrencySwitch(t *testing.T) {
	cd := NewChangeDetector(testLogger)
	_, ok := cd.Detect(&types.Product{ID: "1"}, history(100), types.Success(types.Candidate{Value: 2}, "USD"))
	assert.False(t, ok)
}
