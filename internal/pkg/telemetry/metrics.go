// Package telemetry exposes the Prometheus metrics the ledger records,
// adapted from the teacher's banking metrics to the currency/UUID-keyed
// domain.
package telemetry

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)
)

var (
	AccountsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_accounts_created_total",
			Help: "Total number of accounts created",
		},
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of posting operations",
		},
		[]string{"operation", "status"}, // deposit|transfer|withdrawal, success|error
	)

	OperationAmountHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_amount",
			Help:    "Distribution of operation amounts by currency",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"currency"},
	)

	AccountBalanceHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_account_balance",
			Help:    "Distribution of account balances by currency",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000},
		},
		[]string{"currency"},
	)

	IdempotencyOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_idempotency_outcomes_total",
			Help: "Idempotency Gate outcomes",
		},
		[]string{"outcome"}, // fresh|replayed|conflict|in_progress
	)
)

var (
	GoroutinesGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_goroutines_current",
			Help: "Current number of goroutines",
		},
	)

	MemoryUsageGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_memory_usage_bytes",
			Help: "Current heap memory usage in bytes",
		},
	)
)

func RecordOperation(operation, status string) {
	LedgerOperationsTotal.WithLabelValues(operation, status).Inc()
}

func RecordOperationAmount(currency string, amount float64) {
	OperationAmountHistogram.WithLabelValues(currency).Observe(amount)
}

func RecordAccountBalance(currency string, balance float64) {
	AccountBalanceHistogram.WithLabelValues(currency).Observe(balance)
}

func RecordIdempotencyOutcome(outcome string) {
	IdempotencyOutcomesTotal.WithLabelValues(outcome).Inc()
}

// StartSystemMetricsCollector periodically samples goroutine count and
// heap usage, mirroring the teacher's background sampling loop.
func StartSystemMetricsCollector(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				GoroutinesGauge.Set(float64(runtime.NumGoroutine()))
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				MemoryUsageGauge.Set(float64(m.HeapAlloc))
			case <-stop:
				return
			}
		}
	}()
}
