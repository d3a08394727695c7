package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/pricetracker/internal/fetcher"
)

// Diagnostics captures what a page looked like when extraction failed:
// a screenshot where the renderer supports it and a brotli-compressed
// HTML snapshot.
type Diagnostics struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewDiagnostics writes captures under dir. An empty dir disables capture.
func NewDiagnostics(dir string, logger *slog.Logger) *Diagnostics {
	return &Diagnostics{
		dir:    dir,
		now:    time.Now,
		logger: logger.With("component", "diagnostics"),
	}
}

// Report summarizes a capture.
type Report struct {
	Screenshot  string
	Snapshot    string
	HTMLLength  int
	HasRupee    bool
	HasINR      bool
	HasPriceTag bool
	// ReadyState is document.readyState from the live page, empty when the
	// renderer cannot run scripts.
	ReadyState string
}

// Capture records sess for productID. Failures are logged, never returned:
// diagnostics must not change the outcome of a scrape.
func (d *Diagnostics) Capture(sess fetcher.Session, site, productID string) Report {
	var rep Report
	content, err := sess.HTML()
	if err != nil {
		d.logger.Warn("could not read page html", "product_id", productID, "error", err)
	}
	rep.HTMLLength = len(content)
	rep.HasRupee = strings.Contains(content, "₹") || strings.Contains(content, "&#8377;")
	rep.HasINR = strings.Contains(content, "INR")
	rep.HasPriceTag = strings.Contains(strings.ToLower(content), "price")

	switch state, err := sess.Evaluate(`() => document.readyState`); {
	case err == nil:
		rep.ReadyState, _ = state.(string)
	case !errors.Is(err, fetcher.ErrEvaluateUnsupported):
		d.logger.Debug("could not read ready state", "product_id", productID, "error", err)
	}

	if d.dir == "" {
		d.logReport(site, productID, rep)
		return rep
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Warn("could not create diagnostics dir", "dir", d.dir, "error", err)
		d.logReport(site, productID, rep)
		return rep
	}

	base := filepath.Join(d.dir, fmt.Sprintf("%s-%s-%d", sanitize(site), sanitize(productID), d.now().Unix()))

	shot := base + ".png"
	switch err := sess.Screenshot(shot); {
	case err == nil:
		rep.Screenshot = shot
	case errors.Is(err, fetcher.ErrScreenshotUnsupported):
		d.logger.Debug("renderer cannot take screenshots", "product_id", productID)
	default:
		d.logger.Warn("screenshot failed", "product_id", productID, "error", err)
	}

	if content != "" {
		snap := base + ".html.br"
		if err := writeBrotli(snap, content); err != nil {
			d.logger.Warn("snapshot failed", "product_id", productID, "error", err)
		} else {
			rep.Snapshot = snap
		}
	}

	d.logReport(site, productID, rep)
	return rep
}

func (d *Diagnostics) logReport(site, productID string, rep Report) {
	d.logger.Info("extraction diagnostics",
		"site", site,
		"product_id", productID,
		"html_length", rep.HTMLLength,
		"has_rupee", rep.HasRupee,
		"has_inr", rep.HasINR,
		"has_price_text", rep.HasPriceTag,
		"ready_state", rep.ReadyState,
		"screenshot", rep.Screenshot,
		"snapshot", rep.Snapshot,
	)
}

func writeBrotli(path, content string) error {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write([]byte(content)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
