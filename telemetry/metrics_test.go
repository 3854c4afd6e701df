package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // idempotent

	if QueriesTotal == nil || RatingsTotal == nil || DeletionsTotal == nil {
		t.Fatal("counter vectors not initialized")
	}
	if MatchScore == nil || UpdateDuration == nil || IndexRunDuration == nil {
		t.Fatal("histograms not initialized")
	}
	if PendingDeletions == nil || CatalogSize == nil {
		t.Fatal("gauges not initialized")
	}
}

func TestCounterHelpers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("matched"))
	IncQuery("matched")
	IncQuery("matched")
	if got := testutil.ToFloat64(QueriesTotal.WithLabelValues("matched")); got != before+2 {
		t.Errorf("queries matched = %v, want %v", got, before+2)
	}

	before = testutil.ToFloat64(DeletionsTotal.WithLabelValues("already_gone"))
	IncDeletion("already_gone")
	if got := testutil.ToFloat64(DeletionsTotal.WithLabelValues("already_gone")); got != before+1 {
		t.Errorf("deletions already_gone = %v, want %v", got, before+1)
	}

	beforeErr := testutil.ToFloat64(IndexRunsTotal.WithLabelValues("error"))
	beforeIndexed := testutil.ToFloat64(MoviesIndexed)
	RecordIndexRun(errors.New("boom"), 0, time.Millisecond)
	RecordIndexRun(nil, 3, time.Millisecond)
	if got := testutil.ToFloat64(IndexRunsTotal.WithLabelValues("error")); got != beforeErr+1 {
		t.Errorf("index errors = %v, want %v", got, beforeErr+1)
	}
	if got := testutil.ToFloat64(MoviesIndexed); got != beforeIndexed+3 {
		t.Errorf("movies indexed = %v, want %v", got, beforeIndexed+3)
	}
}

func TestGauges(t *testing.T) {
	Init()

	SetPendingDeletions(4)
	if got := testutil.ToFloat64(PendingDeletions); got != 4 {
		t.Errorf("pending deletions = %v, want 4", got)
	}
	SetCatalogSize(12)
	if got := testutil.ToFloat64(CatalogSize); got != 12 {
		t.Errorf("catalog size = %v, want 12", got)
	}
	UpdateDatabasePoolMetrics(sql.DBStats{OpenConnections: 5, InUse: 2})
	if got := testutil.ToFloat64(DBInUseConns); got != 2 {
		t.Errorf("db in use = %v, want 2", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})

	executed := false
	d := TimeFunc(h, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})
	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if d < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", d)
	}
	if n := testutil.CollectAndCount(h); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}

	ran := false
	TimeFunc(nil, func() { ran = true })
	if !ran {
		t.Error("TimeFunc with a nil observer did not execute provided function")
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if GetCorrelation(ctx) != "" {
		t.Error("expected empty correlation on bare context")
	}
	ctx = WithCorrelation(ctx, "abc")
	if got := GetCorrelation(ctx); got != "abc" {
		t.Errorf("GetCorrelation = %q, want abc", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
