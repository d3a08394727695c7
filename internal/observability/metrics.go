// Package observability exposes run metrics in Prometheus format.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// Metrics tracks per-site scrape results on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ScrapesTotal   *prometheus.CounterVec
	TierHits       *prometheus.CounterVec
	FailuresTotal  *prometheus.CounterVec
	ScrapeDuration *prometheus.HistogramVec
	LastPrice      *prometheus.GaugeVec
	Skipped        *prometheus.CounterVec

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ScrapesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetracker_scrapes_total",
			Help: "Scrape attempts by site and outcome status",
		}, []string{"site", "status"}),
		TierHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetracker_tier_hits_total",
			Help: "Successful extractions by site and tier",
		}, []string{"site", "tier"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetracker_failures_total",
			Help: "Failed scrapes by site and error kind",
		}, []string{"site", "kind"}),
		ScrapeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricetracker_scrape_duration_seconds",
			Help:    "Time spent rendering and extracting one product",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"site"}),
		LastPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricetracker_last_price",
			Help: "Most recently scraped price per product",
		}, []string{"product_id", "site", "currency"}),
		Skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetracker_skipped_total",
			Help: "Products skipped because they were scraped recently",
		}, []string{"site"}),
		logger: logger.With("component", "metrics"),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records one scrape outcome.
func (m *Metrics) Observe(p *types.Product, o types.Outcome, elapsed time.Duration) {
	m.ScrapeDuration.WithLabelValues(p.Site).Observe(elapsed.Seconds())
	if !o.OK {
		m.ScrapesTotal.WithLabelValues(p.Site, types.EntryError).Inc()
		m.FailuresTotal.WithLabelValues(p.Site, types.Kind(o.Err)).Inc()
		return
	}
	m.ScrapesTotal.WithLabelValues(p.Site, types.EntrySuccess).Inc()
	m.TierHits.WithLabelValues(p.Site, string(o.Tier)).Inc()
	m.LastPrice.WithLabelValues(string(p.ID), p.Site, o.Currency).Set(o.Price)
}

// Skip records a product skipped by the recent-scrape guard.
func (m *Metrics) Skip(p *types.Product) {
	m.Skipped.WithLabelValues(p.Site).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server. The returned server should be
// shut down by the caller.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops a server returned by StartServer.
func (m *Metrics) Shutdown(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown", "error", err)
	}
}

// WriteTextfile writes the registry for the node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	m.logger.Debug("metrics textfile written", "path", path)
	return nil
}
