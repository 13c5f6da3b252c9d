package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	initOnce sync.Once

	// RunsTotal counts finished ingestion runs by result (ok, failed, aborted).
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds observes wall time of full ingestion runs.
	RunDurationSeconds prometheus.Histogram

	// RowsParsedTotal counts raw rows parsed per feed source.
	RowsParsedTotal *prometheus.CounterVec

	// RowsKeptTotal counts rows that survived normalization per feed source.
	RowsKeptTotal *prometheus.CounterVec

	// RowsRejectedTotal counts rows dropped by the normalization gate.
	RowsRejectedTotal *prometheus.CounterVec

	// OffersDemotedTotal counts offers flipped out of stock by the staleness sweep.
	OffersDemotedTotal prometheus.Counter

	// SourceFailuresTotal counts feed sources that failed to fetch or parse.
	SourceFailuresTotal *prometheus.CounterVec

	// ClicksTotal counts outbound redirects served.
	ClicksTotal prometheus.Counter

	// IngestRunning is 1 while an ingestion run holds the lock.
	IngestRunning prometheus.Gauge
)

// InitMetrics registers all collectors on the default registry.
// Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricehound_ingest_runs_total",
			Help: "Finished ingestion runs by result.",
		}, []string{"result"})

		RunDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricehound_ingest_run_duration_seconds",
			Help:    "Wall time of ingestion runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		})

		RowsParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricehound_rows_parsed_total",
			Help: "Raw feed rows parsed per source.",
		}, []string{"source"})

		RowsKeptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricehound_rows_kept_total",
			Help: "Feed rows kept after normalization per source.",
		}, []string{"source"})

		RowsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricehound_rows_rejected_total",
			Help: "Feed rows rejected by normalization per source.",
		}, []string{"source"})

		OffersDemotedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricehound_offers_demoted_total",
			Help: "Offers marked out of stock by the staleness sweep.",
		})

		SourceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricehound_source_failures_total",
			Help: "Feed sources that failed to fetch or parse.",
		}, []string{"source"})

		ClicksTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricehound_clicks_total",
			Help: "Outbound offer redirects served.",
		})

		IngestRunning = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricehound_ingest_running",
			Help: "1 while an ingestion run is in progress.",
		})
	})
}
