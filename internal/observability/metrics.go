// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Quote metrics
	QuoteFetches      *prometheus.CounterVec
	QuoteFetchLatency prometheus.Histogram
	QuoteCacheLookups *prometheus.CounterVec
	PriceOrigins      *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	AssetOutcomes     *prometheus.CounterVec
	ForecastLatency   *prometheus.HistogramVec
	ForecastError     *prometheus.GaugeVec
	ReportsGenerated  *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec

	// History metrics
	HistoryRowsWritten *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
	LastSuccessfulAppend   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "commodity_forecast"
	}

	return &Metrics{
		QuoteFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "fetches_total",
			Help:      "Total number of live quote fetches by asset and result",
		}, []string{"asset", "result"}),
		QuoteFetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "fetch_latency_seconds",
			Help:      "Live quote fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		QuoteCacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "cache_lookups_total",
			Help:      "Quote cache lookups by result",
		}, []string{"result"}),
		PriceOrigins: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "price_origin_total",
			Help:      "Resolved today prices by origin (live or fallback)",
		}, []string{"asset", "origin"}),

		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"phase"}),
		AssetOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "asset_outcomes_total",
			Help:      "Per-asset run outcomes by final state",
		}, []string{"asset", "state"}),
		ForecastLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "latency_seconds",
			Help:      "Forecaster latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		ForecastError: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "absolute_error",
			Help:      "Absolute error of the latest forecast per asset",
		}, []string{"asset"}),
		ReportsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated by format",
		}, []string{"format"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Forecast events published by status",
		}, []string{"status"}),

		HistoryRowsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "rows_written_total",
			Help:      "History rows written by source tag",
		}, []string{"source"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulPipeline: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last pipeline run without failures",
		}),
		LastSuccessfulAppend: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_append_timestamp",
			Help:      "Unix timestamp of last history append",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordQuoteFetch records a live quote fetch.
func RecordQuoteFetch(asset string, available bool, seconds float64) {
	result := "available"
	if !available {
		result = "unavailable"
	}
	DefaultMetrics.QuoteFetches.WithLabelValues(asset, result).Inc()
	DefaultMetrics.QuoteFetchLatency.Observe(seconds)
}

// RecordCacheLookup records a quote cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		DefaultMetrics.QuoteCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	DefaultMetrics.QuoteCacheLookups.WithLabelValues("miss").Inc()
}

// RecordPriceOrigin records whether today's price came from live data or fallback.
func RecordPriceOrigin(asset, origin string) {
	DefaultMetrics.PriceOrigins.WithLabelValues(asset, origin).Inc()
}

// RecordAssetOutcome records the final state of one asset in a run.
func RecordAssetOutcome(asset, state string) {
	DefaultMetrics.AssetOutcomes.WithLabelValues(asset, state).Inc()
}

// RecordForecast records forecaster latency and, on success, the absolute error.
func RecordForecast(model, asset string, seconds, absError float64) {
	DefaultMetrics.ForecastLatency.WithLabelValues(model).Observe(seconds)
	DefaultMetrics.ForecastError.WithLabelValues(asset).Set(absError)
}

// RecordReport increments the reports counter.
func RecordReport(format string) {
	DefaultMetrics.ReportsGenerated.WithLabelValues(format).Inc()
}

// RecordEventPublished records a forecast event publish attempt.
func RecordEventPublished(err error) {
	if err != nil {
		DefaultMetrics.EventsPublished.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.EventsPublished.WithLabelValues("ok").Inc()
}

// RecordHistoryRows records history rows written for a source tag.
func RecordHistoryRows(source string, n int) {
	DefaultMetrics.HistoryRowsWritten.WithLabelValues(source).Add(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a job run. phase is forecast, append or backfill.
// A successful forecast run also updates the last success gauge.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
	if phase == "forecast" && status == "success" {
		DefaultMetrics.LastSuccessfulPipeline.Set(float64(time.Now().Unix()))
	}
}

// MarkAppend sets the last successful append timestamp.
func MarkAppend() {
	DefaultMetrics.LastSuccessfulAppend.Set(float64(time.Now().Unix()))
}
