// Package engine runs one sequential pass over the product catalog.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/pricetracker/internal/catalog"
	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/guard"
	"github.com/IshaanNene/pricetracker/internal/monitor"
	"github.com/IshaanNene/pricetracker/internal/observability"
	"github.com/IshaanNene/pricetracker/internal/types"
)

// State represents the runner's lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
	StateStopped State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Dispatcher produces an outcome for one product.
type Dispatcher interface {
	Dispatch(ctx context.Context, p *types.Product) types.Outcome
}

// HistoryStore persists outcomes.
type HistoryStore interface {
	Record(ctx context.Context, productID string, e types.HistoryEntry) error
	Load(productID string) (*types.History, error)
}

// Summary describes a finished run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Changes   []monitor.Change
	Elapsed   time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("%d successful, %d failed", s.Succeeded, s.Failed)
}

// Option configures a Runner.
type Option func(*Runner)

// WithGuard skips products the guard reports as recently scraped.
func WithGuard(g guard.Guard) Option {
	return func(r *Runner) { r.guard = g }
}

// WithMetrics records outcomes into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides the time source used for statuses and history dates.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSleep overrides the pause between products.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithoutJitter disables the pause between products.
func WithoutJitter() Option {
	return func(r *Runner) { r.jitter = false }
}

// Runner is the run controller: it owns the product list for the duration
// of a run and processes products strictly one at a time.
type Runner struct {
	cfg        config.RunConfig
	dispatcher Dispatcher
	store      HistoryStore
	guard      guard.Guard
	detector   *monitor.ChangeDetector
	metrics    *observability.Metrics
	logger     *slog.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter bool
	rng    *rand.Rand

	state atomic.Int32
}

// New creates a Runner.
func New(cfg config.RunConfig, d Dispatcher, store HistoryStore, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:        cfg,
		dispatcher: d,
		store:      store,
		guard:      guard.Nop{},
		logger:     logger.With("component", "runner"),
		now:        time.Now,
		sleep:      fetcher.SleepContext,
		jitter:     true,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.detector = monitor.NewChangeDetector(logger)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetState returns the current runner state.
func (r *Runner) GetState() State {
	return State(r.state.Load())
}

// Run processes every catalog product once and writes the catalog back.
// Per-product failures are recorded, never returned; the error is non-nil
// only when the catalog or the history store cannot be used.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return Summary{}, fmt.Errorf("runner is in state %s, cannot start", r.GetState())
	}
	defer r.state.Store(int32(StateStopped))

	start := time.Now()
	cat, err := catalog.Load(r.cfg.CatalogPath)
	if errors.Is(err, catalog.ErrNoCatalog) {
		r.logger.Warn("no catalog found, nothing to track", "path", r.cfg.CatalogPath)
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, err
	}

	products := cat.Filter(r.cfg.Only)
	summary := Summary{Total: len(products)}
	r.logger.Info("starting price tracking run", "products", len(products), "catalog", r.cfg.CatalogPath)

	var runErr error
	for i, p := range products {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if i > 0 && r.jitter {
			if err := r.sleep(ctx, r.delay()); err != nil {
				runErr = err
				break
			}
		}

		r.logger.Info("scraping product",
			"progress", fmt.Sprintf("%d/%d", i+1, len(products)),
			"product_id", p.ID,
			"site", p.Site,
			"name", p.Name,
		)
		if err := r.process(ctx, p, &summary); err != nil {
			runErr = err
			break
		}
	}

	if err := cat.Save(r.cfg.CatalogPath); err != nil {
		return summary, errors.Join(runErr, err)
	}
	if runErr != nil {
		return summary, runErr
	}

	summary.Changes = r.detector.Changes()
	summary.Elapsed = time.Since(start)
	r.logger.Info("run complete",
		"summary", summary.String(),
		"skipped", summary.Skipped,
		"changes", len(summary.Changes),
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary, nil
}

// process scrapes one product and records the outcome. Only a history
// write failure is returned.
func (r *Runner) process(ctx context.Context, p *types.Product, summary *Summary) error {
	id := string(p.ID)

	recent, err := r.guard.Recent(ctx, id)
	if err != nil {
		r.logger.Warn("recent-scrape guard unavailable", "product_id", id, "error", err)
	}
	if recent {
		summary.Skipped++
		if r.metrics != nil {
			r.metrics.Skip(p)
		}
		r.logger.Info("skipping recently scraped product", "product_id", id)
		return nil
	}

	prior, err := r.store.Load(id)
	if err != nil {
		r.logger.Warn("could not read previous history", "product_id", id, "error", err)
		prior = nil
	}

	began := time.Now()
	o := r.dispatcher.Dispatch(ctx, p)
	elapsed := time.Since(began)
	now := r.now()

	if o.OK {
		p.MarkActive(now)
		summary.Succeeded++
		r.logger.Info("price recorded",
			"product_id", id,
			"price", o.Price,
			"currency", o.Currency,
			"tier", o.Tier,
			"label", o.Label,
		)
		r.detector.Detect(p, prior, o)
		if err := r.guard.Mark(ctx, id); err != nil {
			r.logger.Warn("could not mark product", "product_id", id, "error", err)
		}
	} else {
		p.MarkError(o.Reason, now)
		summary.Failed++
		r.logger.Error("scrape failed", "product_id", id, "site", p.Site, "reason", o.Reason)
	}
	if r.metrics != nil {
		r.metrics.Observe(p, o, elapsed)
	}

	if err := r.store.Record(ctx, id, types.EntryFromOutcome(o, now)); err != nil {
		return fmt.Errorf("record history for %s: %w", id, err)
	}
	return nil
}

// delay returns a uniformly jittered pause within [JitterMin, JitterMax].
func (r *Runner) delay() time.Duration {
	lo, hi := r.cfg.JitterMin, r.cfg.JitterMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.rng.Int63n(int64(hi-lo)+1))
}
