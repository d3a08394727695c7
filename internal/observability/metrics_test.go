package observability

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestObserve(t *testing.T) {
	m := NewMetrics(testLogger)
	amazon := &types.Product{ID: "1", Site: "amazon.in"}
	agoda := &types.Product{ID: "2", Site: "agoda.com"}

	m.Observe(amazon, types.Success(types.Candidate{Value: 12499, Tier: types.TierSelector}, "INR"), 2*time.Second)
	m.Observe(agoda, types.Failure(types.NewScrapeError(types.ErrBlocked, "agoda.com", "", "title:access denied")), time.Second)
	m.Skip(agoda)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("amazon.in", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("agoda.com", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TierHits.WithLabelValues("amazon.in", "A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("agoda.com", "blocked")))
	assert.Equal(t, 12499.0, testutil.ToFloat64(m.LastPrice.WithLabelValues("1", "amazon.in", "INR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Skipped.WithLabelValues("agoda.com")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ScrapeDuration))
}

func TestHandler(t *testing.T) {
	m := NewMetrics(testLogger)
	m.Observe(&types.Product{ID: "1", Site: "flipkart.com"}, types.Failure(types.ErrNotFound), time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `pricetracker_failures_total{kind="not_found",site="flipkart.com"} 1`)
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics(testLogger)
	m.Observe(&types.Product{ID: "1", Site: "amazon.in"}, types.Success(types.Candidate{Value: 10, Tier: types.TierPattern}, ""), time.Second)

	path := filepath.Join(t.TempDir(), "pricetracker.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pricetracker_tier_hits_total{site="amazon.in",tier="C"} 1`)
}
