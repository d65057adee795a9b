// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace-scraper/utils"
)

var (
	PagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Discovery pages visited, labeled by site and outcome (ok, empty, failed).",
		},
		[]string{"site", "outcome"},
	)
	ListingsDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_listings_discovered_total",
			Help: "Listing cards turned into basic records.",
		},
		[]string{"site"},
	)
	ListingsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_listings_dropped_total",
			Help: "Listing cards dropped during discovery, labeled by reason.",
		},
		[]string{"site", "reason"},
	)
	DetailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_details_total",
			Help: "Detail visits, labeled by outcome (ok, failed, checkpoint).",
		},
		[]string{"site", "outcome"},
	)
	FieldMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_field_misses_total",
			Help: "Detail fields left unknown after every strategy was tried.",
		},
		[]string{"site", "field"},
	)
	ImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_images_total",
			Help: "Image downloads, labeled by outcome (ok, failed).",
		},
		[]string{"outcome"},
	)
	DetailDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_detail_duration_seconds",
			Help:    "Time spent on one detail page including images.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"site"},
	)
	SinkWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_sink_records_total",
			Help: "Records handed to output sinks, labeled by sink and outcome.",
		},
		[]string{"sink", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(PagesTotal)
	prometheus.MustRegister(ListingsDiscovered)
	prometheus.MustRegister(ListingsDropped)
	prometheus.MustRegister(DetailsTotal)
	prometheus.MustRegister(FieldMisses)
	prometheus.MustRegister(ImagesTotal)
	prometheus.MustRegister(DetailDuration)
	prometheus.MustRegister(SinkWrites)
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *utils.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("[metrics] Exposing Prometheus metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("[metrics] Metrics server failed: %v", err)
	}
}
