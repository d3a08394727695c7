package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// DefaultRetentionDays is how many calendar days of history are kept.
const DefaultRetentionDays = 60

// FileStore keeps one JSON history document per product under dir.
type FileStore struct {
	dir           string
	retentionDays int
	now           func() time.Time
	mu            sync.Mutex
	logger        *slog.Logger
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithClock sets the time source used for retention.
func WithClock(now func() time.Time) FileOption {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore creates the history directory if needed.
func NewFileStore(dir string, retentionDays int, logger *slog.Logger, opts ...FileOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("create history dir: %w", err)}
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	s := &FileStore{
		dir:           dir,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        logger.With("component", "history_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FileStore) Name() string { return "file" }

// Path returns the history file for productID.
func (s *FileStore) Path(productID string) string {
	return filepath.Join(s.dir, fileName(productID)+".json")
}

// Load reads the history of productID. A product with no file yet has an
// empty history.
func (s *FileStore) Load(productID string) (*types.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(productID)
}

func (s *FileStore) load(productID string) (*types.History, error) {
	data, err := os.ReadFile(s.Path(productID))
	if errors.Is(err, fs.ErrNotExist) {
		return &types.History{ProductID: productID, Prices: []types.HistoryEntry{}}, nil
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "file", Err: err}
	}
	var h types.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("decode %s: %w", s.Path(productID), err)}
	}
	if h.ProductID == "" {
		h.ProductID = productID
	}
	if h.Prices == nil {
		h.Prices = []types.HistoryEntry{}
	}
	return &h, nil
}

// Append adds e to the history of productID, drops entries older than the
// retention window and rewrites the file.
func (s *FileStore) Append(productID string, e types.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.load(productID)
	if err != nil {
		return err
	}
	h.Prices = append(h.Prices, e)
	before := len(h.Prices)
	h.Prices = Prune(h.Prices, s.now(), s.retentionDays)
	if dropped := before - len(h.Prices); dropped > 0 {
		s.logger.Debug("history pruned", "product_id", productID, "dropped", dropped)
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return &types.StorageError{Backend: "file", Err: fmt.Errorf("encode history: %w", err)}
	}
	if err := WriteFileAtomic(s.Path(productID), data); err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}
	return nil
}

// Prune keeps entries dated no more than retentionDays calendar days (UTC)
// before now. An entry exactly retentionDays old is kept. Entries with an
// unreadable date are kept.
func Prune(entries []types.HistoryEntry, now time.Time, retentionDays int) []types.HistoryEntry {
	y, m, d := now.UTC().Date()
	cutoff := time.Date(y, m, d-retentionDays, 0, 0, 0, 0, time.UTC)

	out := entries[:0]
	for _, e := range entries {
		day, err := time.Parse(types.DateLayout, e.Date)
		if err != nil || !day.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// fileName keeps product ids from escaping the history directory.
func fileName(productID string) string {
	id := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, productID)
	if id == "" || id == "." || id == ".." {
		return "_" + id
	}
	return id
}
