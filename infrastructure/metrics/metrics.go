package metrics

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "freightledger_"

	resultSuccess  = "success"
	resultError    = "error"
	resultGap      = "gap"
	resultConflict = "conflict"
)

var (
	registerOnce sync.Once

	reconcileTotal   *prometheus.CounterVec
	reconcileLatency *prometheus.HistogramVec

	batchRunsTotal      *prometheus.CounterVec
	batchProcessedTotal prometheus.Counter
	batchFailedTotal    prometheus.Counter
	batchLastFailures   prometheus.Gauge
	batchDuration       prometheus.Histogram

	clockWritesTotal *prometheus.CounterVec
	projectionsTotal *prometheus.CounterVec
)

// Init registers ledger metrics with the default registry. db, when non-nil,
// backs gauges computed from stored counters. Safe to call more than once.
func Init(db *sql.DB, logger *slog.Logger) {
	registerOnce.Do(func() {
		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_total",
				Help: "Consignment reconciliations by result",
			},
			[]string{"result"},
		)
		reconcileLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconcile_latency_seconds",
				Help:    "Consignment reconciliation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		batchRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_runs_total",
				Help: "Full reconciliation runs by result",
			},
			[]string{"result"},
		)
		batchProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "batch_processed_total",
			Help: "Consignments processed by full reconciliation runs",
		})
		batchFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "batch_failed_total",
			Help: "Consignments that failed during full reconciliation runs",
		})
		batchLastFailures = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "batch_last_failures",
			Help: "Failures recorded by the most recent full reconciliation run",
		})
		batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "batch_duration_seconds",
			Help:    "Full reconciliation run duration in seconds",
			Buckets: prometheus.DefBuckets,
		})
		clockWritesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "clock_writes_total",
				Help: "Time reference writes by operation",
			},
			[]string{"op"},
		)
		projectionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "projections_total",
				Help: "Earliest-booking projections by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			reconcileTotal,
			reconcileLatency,
			batchRunsTotal,
			batchProcessedTotal,
			batchFailedTotal,
			batchLastFailures,
			batchDuration,
			clockWritesTotal,
			projectionsTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *slog.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "overbooked_lots",
			Help: "Pallet lots whose unbooked quantity is negative",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM pallet_lots WHERE unbooked_qty < 0")
		},
	))
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "overbooked_estimates",
			Help: "Unreceived consignments whose unbooked estimate is negative",
		},
		func() float64 {
			return queryCount(db, logger, `
SELECT COUNT(*) FROM consignments c
WHERE c.unbooked_qty < 0
  AND NOT EXISTS (SELECT 1 FROM pallet_lots pl WHERE pl.consignment_id = c.id)`)
		},
	))
}

func queryCount(db *sql.DB, logger *slog.Logger, query string) float64 {
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", slog.Any("err", err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}

// ObserveReconcile records one consignment reconciliation.
func ObserveReconcile(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(result).Inc()
	}
	if reconcileLatency != nil {
		reconcileLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveBatch records a finished full reconciliation run.
func ObserveBatch(result string, processed, failed int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if batchRunsTotal != nil {
		batchRunsTotal.WithLabelValues(result).Inc()
	}
	if batchProcessedTotal != nil && processed > 0 {
		batchProcessedTotal.Add(float64(processed))
	}
	if batchFailedTotal != nil && failed > 0 {
		batchFailedTotal.Add(float64(failed))
	}
	if batchLastFailures != nil {
		batchLastFailures.Set(float64(failed))
	}
	if batchDuration != nil {
		batchDuration.Observe(duration.Seconds())
	}
}

// IncClockWrite counts a time reference write.
func IncClockWrite(op string) {
	if op == "" {
		op = "unknown"
	}
	if clockWritesTotal != nil {
		clockWritesTotal.WithLabelValues(op).Inc()
	}
}

// IncProjection counts an earliest-booking projection.
func IncProjection(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if projectionsTotal != nil {
		projectionsTotal.WithLabelValues(outcome).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultGap      = resultGap
	ResultConflict = resultConflict
)
