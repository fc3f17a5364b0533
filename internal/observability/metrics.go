// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Claim results used as label values.
const (
	ClaimResultSuccess  = "success"
	ClaimResultRejected = "rejected"
	ClaimResultFailed   = "failed"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Vesting metrics
	SchedulesCreated  *prometheus.CounterVec
	ClaimsTotal       *prometheus.CounterVec
	ClaimedTokens     prometheus.Counter
	ClaimLatency      prometheus.Histogram
	AnalyticsFailures prometheus.Counter

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulClaim prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_vesting"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SchedulesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "schedules_created_total",
			Help:      "Total number of schedule creation attempts by result",
		}, []string{"result"}),
		ClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "claims_total",
			Help:      "Total number of claim attempts by result",
		}, []string{"result"}),
		ClaimedTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "claimed_tokens_total",
			Help:      "Total base units released to beneficiaries",
		}),
		ClaimLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "claim_latency_seconds",
			Help:      "Claim processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		AnalyticsFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "analytics_failures_total",
			Help:      "Total number of claim events that could not be mirrored to analytics",
		}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulClaim: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_claim_timestamp",
			Help:      "Unix timestamp of the last successful claim",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordScheduleCreated records a schedule creation attempt.
func RecordScheduleCreated(result string) {
	DefaultMetrics.SchedulesCreated.WithLabelValues(result).Inc()
}

// RecordClaim records a claim attempt. amount is only counted on success.
func RecordClaim(result string, amount uint64, seconds float64, at int64) {
	DefaultMetrics.ClaimsTotal.WithLabelValues(result).Inc()
	DefaultMetrics.ClaimLatency.Observe(seconds)
	if result == ClaimResultSuccess {
		DefaultMetrics.ClaimedTokens.Add(float64(amount))
		DefaultMetrics.LastSuccessfulClaim.Set(float64(at))
	}
}

// RecordAnalyticsFailure increments the analytics mirror failure counter.
func RecordAnalyticsFailure() {
	DefaultMetrics.AnalyticsFailures.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
