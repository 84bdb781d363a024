package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storageOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderreports_storage_operations_total",
		Help: "Total number of storage core operations",
	}, []string{"component", "operation", "result"})

	storageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderreports_storage_operation_duration_seconds",
		Help:    "Duration of storage core operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation"})

	openTenantDatabases = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderreports_open_tenant_databases",
		Help: "Number of per-brand database handles currently open",
	})

	stagedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderreports_staged_files",
		Help: "Number of files currently parked in the upload staging area",
	})

	stagingSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderreports_staging_sweep_removals_total",
		Help: "Count of stale staged files handled by the background sweeper",
	}, []string{"result"})

	ingestedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderreports_ingested_rows_total",
		Help: "Count of order rows ingested per brand",
	}, []string{"brand"})
)

// ObserveStorageOp records one storage operation with its outcome and duration.
func ObserveStorageOp(component, operation string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	storageOperationsTotal.WithLabelValues(component, operation, result).Inc()
	storageOperationDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// SetOpenTenantDatabases updates the open-handle gauge.
func SetOpenTenantDatabases(n int) {
	openTenantDatabases.Set(float64(n))
}

// IncStagedFiles notes a new file entering the staging area.
func IncStagedFiles() {
	stagedFiles.Inc()
}

// DecStagedFiles notes a staged file leaving the staging area.
func DecStagedFiles() {
	stagedFiles.Dec()
}

// ObserveSweep increments the sweeper counter for the given result.
func ObserveSweep(result string) {
	stagingSweeps.WithLabelValues(result).Inc()
}

// AddIngestedRows adds ingested row counts for a brand.
func AddIngestedRows(brand string, n int) {
	ingestedRows.WithLabelValues(brand).Add(float64(n))
}
