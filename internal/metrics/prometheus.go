package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"navfund/pkg/errors"
)

var (
	// Fund operation metrics
	FundOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navfund_operations_total",
			Help: "Total number of fund operations",
		},
		[]string{"operation", "status"}, // status: ok|<error code>
	)

	FundOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navfund_operation_duration_seconds",
			Help:    "Fund operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)

	// Fund state gauges, refreshed by the fund monitor
	NavCents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navfund_nav_cents",
			Help: "Latest NAV per share in cents",
		},
		[]string{"fund_id"},
	)

	RedemptionQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navfund_redemption_queue_depth",
			Help: "Redemption requests by status",
		},
		[]string{"fund_id", "status"},
	)

	TotalDeposits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navfund_total_deposits",
			Help: "Sum of subscribe deposits in payment base units",
		},
		[]string{"fund_id"},
	)

	TotalRedemptionPayouts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navfund_total_redemption_payouts",
			Help: "Sum of settled redemption payouts in payment base units",
		},
		[]string{"fund_id"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navfund_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navfund_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navfund_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Oracle API metrics
	OracleAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navfund_oracle_api_calls_total",
			Help: "Total number of NAV oracle API calls",
		},
		[]string{"endpoint", "status"}, // status: success|error
	)

	OracleAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navfund_oracle_api_latency_seconds",
			Help:    "NAV oracle API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navfund_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navfund_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navfund_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			FundOperations,
			FundOperationDuration,
			NavCents,
			RedemptionQueueDepth,
			TotalDeposits,
			TotalRedemptionPayouts,
			WorkerExecutions,
			WorkerDuration,
			WorkerLastRun,
			OracleAPICalls,
			OracleAPILatency,
			DBQueries,
			DBQueryDuration,
			KafkaMessages,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFundOperation records a fund operation outcome labelled with its error code
func RecordFundOperation(operation string, duration time.Duration, err error) {
	FundOperations.WithLabelValues(operation, errors.Code(err)).Inc()
	FundOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordOracleAPICall records a NAV oracle API call
func RecordOracleAPICall(endpoint string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	OracleAPICalls.WithLabelValues(endpoint, status).Inc()
	OracleAPILatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a produced or consumed message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}
