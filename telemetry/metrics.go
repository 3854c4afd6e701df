// Package telemetry provides Prometheus metrics, OpenTelemetry tracing and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	QueriesTotal     *prometheus.CounterVec // result=matched|not_found|error
	RatingsTotal     *prometheus.CounterVec // result=stored|rejected|error
	UpdatesTotal     *prometheus.CounterVec // kind=text|callback|source_post|ignored
	DeliveryFailures *prometheus.CounterVec // op=send|forward|edit|delete|answer
	DeletionsTotal   *prometheus.CounterVec // outcome=deleted|already_gone|failed
	IndexRunsTotal   *prometheus.CounterVec // result=ok|error
	MoviesIndexed    prometheus.Counter

	// Histograms
	MatchScore       prometheus.Observer
	UpdateDuration   prometheus.Observer
	IndexRunDuration prometheus.Observer

	// Gauges
	PendingDeletions prometheus.Gauge
	CatalogSize      prometheus.Gauge
	DBOpenConns      prometheus.Gauge
	DBInUseConns     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "reelbot_queries_total", Help: "Title queries handled, by result"}, []string{"result"})
		RatingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "reelbot_ratings_total", Help: "Rating button presses handled, by result"}, []string{"result"})
		UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "reelbot_updates_total", Help: "Telegram updates received, by kind"}, []string{"kind"})
		DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "reelbot_delivery_failures_total", Help: "Failed Telegram operations, by operation"}, []string{"op"})
		DeletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "reelbot_retention_deletions_total", Help: "Retention deletions fired, by outcome"}, []string{"outcome"})
		IndexRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "reelbot_index_runs_total", Help: "Catalog index runs, by result"}, []string{"result"})
		MoviesIndexed = promauto.NewCounter(prometheus.CounterOpts{Name: "reelbot_movies_indexed_total", Help: "Movies newly inserted into the catalog"})
		MatchScore = promauto.NewHistogram(prometheus.HistogramOpts{Name: "reelbot_match_score", Help: "Best fuzzy score per query", Buckets: prometheus.LinearBuckets(10, 10, 10)})
		UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "reelbot_update_duration_seconds", Help: "Time spent handling one update", Buckets: prometheus.DefBuckets})
		IndexRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "reelbot_index_run_duration_seconds", Help: "Catalog index run duration seconds", Buckets: prometheus.DefBuckets})
		PendingDeletions = promauto.NewGauge(prometheus.GaugeOpts{Name: "reelbot_retention_pending", Help: "Deletions armed and not yet fired"})
		CatalogSize = promauto.NewGauge(prometheus.GaugeOpts{Name: "reelbot_catalog_movies", Help: "Movies in the catalog after the last index run"})
		DBOpenConns = promauto.NewGauge(prometheus.GaugeOpts{Name: "reelbot_db_open_connections", Help: "Open database connections"})
		DBInUseConns = promauto.NewGauge(prometheus.GaugeOpts{Name: "reelbot_db_in_use_connections", Help: "Database connections in use"})
	})
}

// IncQuery counts a title query outcome.
func IncQuery(result string) {
	if QueriesTotal != nil {
		QueriesTotal.WithLabelValues(result).Inc()
	}
}

// IncRating counts a rating outcome.
func IncRating(result string) {
	if RatingsTotal != nil {
		RatingsTotal.WithLabelValues(result).Inc()
	}
}

// IncUpdate counts a received update by kind.
func IncUpdate(kind string) {
	if UpdatesTotal != nil {
		UpdatesTotal.WithLabelValues(kind).Inc()
	}
}

// IncDeliveryFailure counts a failed transport operation.
func IncDeliveryFailure(op string) {
	if DeliveryFailures != nil {
		DeliveryFailures.WithLabelValues(op).Inc()
	}
}

// IncDeletion counts a fired retention deletion.
func IncDeletion(outcome string) {
	if DeletionsTotal != nil {
		DeletionsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordIndexRun records the outcome of one indexer pass.
func RecordIndexRun(err error, inserted int, d time.Duration) {
	if IndexRunsTotal == nil {
		return
	}
	if err != nil {
		IndexRunsTotal.WithLabelValues("error").Inc()
	} else {
		IndexRunsTotal.WithLabelValues("ok").Inc()
	}
	MoviesIndexed.Add(float64(inserted))
	IndexRunDuration.Observe(d.Seconds())
}

// IncMoviesIndexed counts movies inserted outside a full index run.
func IncMoviesIndexed(n int) {
	if MoviesIndexed != nil {
		MoviesIndexed.Add(float64(n))
	}
}

// ObserveMatchScore records the best score of a query.
func ObserveMatchScore(score int) {
	if MatchScore != nil {
		MatchScore.Observe(float64(score))
	}
}

// SetPendingDeletions records the number of armed retention timers.
func SetPendingDeletions(n int) {
	if PendingDeletions != nil {
		PendingDeletions.Set(float64(n))
	}
}

// SetCatalogSize records the catalog size.
func SetCatalogSize(n int) {
	if CatalogSize != nil {
		CatalogSize.Set(float64(n))
	}
}

// UpdateDatabasePoolMetrics mirrors sql.DBStats into gauges.
func UpdateDatabasePoolMetrics(stats sql.DBStats) {
	if DBOpenConns != nil {
		DBOpenConns.Set(float64(stats.OpenConnections))
		DBInUseConns.Set(float64(stats.InUse))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
