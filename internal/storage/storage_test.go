package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var today = time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC)

func clock() time.Time { return today }

func successEntry(day time.Time, price float64) types.HistoryEntry {
	return types.EntryFromOutcome(types.Success(types.Candidate{Value: price, Raw: "₹", Tier: types.TierSelector}, ""), day)
}

func TestAppendCreatesHistoryFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 60, testLogger, WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, s.Append("7", successEntry(today, 12499)))
	require.NoError(t, s.Append("7", types.EntryFromOutcome(types.Failure(types.ErrBlocked), today)))

	raw, err := os.ReadFile(filepath.Join(dir, "7.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "7", doc["productId"])

	prices := doc["prices"].([]any)
	require.Len(t, prices, 2)
	first := prices[0].(map[string]any)
	assert.Equal(t, "2024-06-30", first["date"])
	assert.Equal(t, 12499.0, first["price"])
	assert.Equal(t, "INR", first["currency"])
	assert.Equal(t, "success", first["status"])

	second := prices[1].(map[string]any)
	assert.Nil(t, second["price"])
	assert.Nil(t, second["currency"])
	assert.Equal(t, "error", second["status"])
	assert.Equal(t, "blocked", second["error"])
}

func TestRetentionBoundary(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 60, testLogger, WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, s.Append("p", successEntry(today.AddDate(0, 0, -61), 100)))
	require.NoError(t, s.Append("p", successEntry(today.AddDate(0, 0, -60), 200)))

	h, err := s.Load("p")
	require.NoError(t, err)
	require.Len(t, h.Prices, 1, "61 days old is dropped, exactly 60 is kept")
	assert.Equal(t, "2024-05-01", h.Prices[0].Date)
	assert.Equal(t, 200.0, *h.Prices[0].Price)
}

func TestRetentionPrunesExistingEntries(t *testing.T) {
	dir := t.TempDir()
	old := types.History{ProductID: "p", Prices: []types.HistoryEntry{
		successEntry(today.AddDate(0, 0, -90), 1),
		successEntry(today.AddDate(0, 0, -10), 2),
		{Date: "not-a-date", Status: types.EntryError, Error: "x"},
	}}
	data, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.json"), data, 0o644))

	s, err := NewFileStore(dir, 60, testLogger, WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, s.Append("p", successEntry(today, 3)))

	h, err := s.Load("p")
	require.NoError(t, err)
	require.Len(t, h.Prices, 3)
	assert.Equal(t, 2.0, *h.Prices[0].Price)
	assert.Equal(t, "not-a-date", h.Prices[1].Date)
	assert.Equal(t, 3.0, *h.Prices[2].Price)
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 0, testLogger)
	require.NoError(t, err)

	h, err := s.Load("nothing")
	require.NoError(t, err)
	assert.Equal(t, "nothing", h.ProductID)
	assert.Empty(t, h.Prices)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	_, err = s.Load("bad")
	var se *types.StorageError
	assert.ErrorAs(t, err, &se)
}

func TestFileNameStaysInDir(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 60, testLogger)
	require.NoError(t, err)
	assert.Equal(t, s.dir, filepath.Dir(s.Path("../../etc/passwd")))
	assert.Equal(t, s.dir, filepath.Dir(s.Path("..")))
}

type recordingMirror struct {
	entries []string
	err     error
	closed  bool
}

func (m *recordingMirror) Mirror(_ context.Context, productID string, e types.HistoryEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, productID+"@"+e.Date)
	return nil
}

func (m *recordingMirror) Close() error { m.closed = true; return nil }
func (m *recordingMirror) Name() string { return "recording" }

func TestMultiStoreMirrorsAndToleratesMirrorFailures(t *testing.T) {
	file, err := NewFileStore(t.TempDir(), 60, testLogger, WithClock(clock))
	require.NoError(t, err)
	good := &recordingMirror{}
	bad := &recordingMirror{err: assert.AnError}
	s := NewMultiStore(file, []Mirror{bad, good}, testLogger)

	require.NoError(t, s.Record(context.Background(), "1", successEntry(today, 10)))
	assert.Equal(t, []string{"1@2024-06-30"}, good.entries)

	h, err := s.Load("1")
	require.NoError(t, err)
	assert.Len(t, h.Prices, 1)

	require.NoError(t, s.Close())
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
}

func TestOpenWithoutMirrors(t *testing.T) {
	cfg := config.DefaultConfig().Storage
	cfg.PricesDir = filepath.Join(t.TempDir(), "nested", "prices")
	s, err := Open(context.Background(), cfg, testLogger)
	require.NoError(t, err)
	assert.Empty(t, s.mirrors)
	assert.DirExists(t, cfg.PricesDir)
}

func TestEntryDocument(t *testing.T) {
	doc := entryDocument("9", types.EntryFromOutcome(types.Failure(types.ErrNotFound), today), today)
	assert.Equal(t, "9", doc["productId"])
	assert.Nil(t, doc["price"])
	assert.Equal(t, "price not found", doc["error"])
	assert.NotContains(t, doc, "label")
}
