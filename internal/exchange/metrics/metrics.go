package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for exchange operations.
type Metrics struct {
	ExchangesCreated      *prometheus.CounterVec
	ExchangeTransitions   *prometheus.CounterVec
	SubmissionsRejected   *prometheus.CounterVec
	ConcurrentCompletions prometheus.Counter
	VerificationLatency   *prometheus.HistogramVec
	UpstreamLatency       *prometheus.HistogramVec
	ExchangesSwept        prometheus.Counter
}

// New registers and returns exchange metrics collectors.
func New() *Metrics {
	return &Metrics{
		ExchangesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_exchanges_created_total",
			Help: "Total number of exchanges created, labeled by workflow type",
		}, []string{"workflow_type"}),
		ExchangeTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_exchange_transitions_total",
			Help: "Total number of exchange state transitions, labeled by target state",
		}, []string{"workflow_type", "state"}),
		SubmissionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_submissions_rejected_total",
			Help: "Total number of rejected wallet submissions, labeled by reason code",
		}, []string{"reason"}),
		ConcurrentCompletions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_concurrent_completions_total",
			Help: "Submissions that lost the completion race to an already successful submission",
		}),
		VerificationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verigate_verification_latency_seconds",
			Help:    "Latency of presentation verification in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verigate_upstream_latency_seconds",
			Help:    "Latency of exchange initiation against upstream services in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"workflow_type"}),
		ExchangesSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_exchanges_swept_total",
			Help: "Exchanges moved to expired by the background sweeper",
		}),
	}
}

func (m *Metrics) IncrementCreated(workflowType string) {
	m.ExchangesCreated.WithLabelValues(workflowType).Inc()
}

func (m *Metrics) IncrementTransition(workflowType, state string) {
	m.ExchangeTransitions.WithLabelValues(workflowType, state).Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	m.SubmissionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementConcurrentCompletion() {
	m.ConcurrentCompletions.Inc()
}

func (m *Metrics) ObserveVerification(outcome string, d time.Duration) {
	m.VerificationLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpstream(workflowType string, d time.Duration) {
	m.UpstreamLatency.WithLabelValues(workflowType).Observe(d.Seconds())
}

func (m *Metrics) AddSwept(n int) {
	m.ExchangesSwept.Add(float64(n))
}
