package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность операции от AUTHORIZE до конверта
	OperationDuration *prometheus.HistogramVec

	// Traffic: общее кол-во вызовов операций
	TotalOperations *prometheus.CounterVec

	// Errors: классификация отказов по шагам конвейера
	FailureTotal *prometheus.CounterVec

	// Cache: попадания/промахи кэша записей
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный,
	// который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		OperationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erp_operation_duration_seconds",
			Help:    "Histogram of pipeline operation latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"resource", "operation", "status"}),

		TotalOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "erp_operations_total",
			Help: "Total number of pipeline invocations.",
		}, []string{"resource", "operation"}),

		FailureTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "erp_failures_total",
			Help: "Total number of failures by pipeline step.",
		}, []string{"step"}), // шаги: forbidden, validation, not_found, conflict, backend, panic

		CacheHits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "erp_record_cache_hits_total",
			Help: "Record cache hits by resource.",
		}, []string{"resource"}),

		CacheMisses: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "erp_record_cache_misses_total",
			Help: "Record cache misses by resource.",
		}, []string{"resource"}),
	}
}
