package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine. Services guard every
// increment with a nil check so unit tests can run without a registry.
type Metrics struct {
	Decisions            *prometheus.CounterVec
	SnapshotsGenerated   prometheus.Counter
	SnapshotFailures     prometheus.Counter
	ProofExports         *prometheus.CounterVec
	ImpersonationStarts  prometheus.Counter
	ImpersonationStops   prometheus.Counter
	OperatorRouteBlocked prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_decisions_total",
			Help: "Authorization decisions by outcome and reason",
		}, []string{"decision", "reason"}),
		SnapshotsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_capability_snapshots_total",
			Help: "Capability snapshots generated successfully",
		}),
		SnapshotFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_capability_snapshot_failures_total",
			Help: "Fail-closed capability snapshots served",
		}),
		ProofExports: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_proof_exports_total",
			Help: "Proof export bundles built, by format",
		}, []string{"format"}),
		ImpersonationStarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_impersonation_starts_total",
			Help: "Impersonation sessions started",
		}),
		ImpersonationStops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_impersonation_stops_total",
			Help: "Impersonation sessions stopped",
		}),
		OperatorRouteBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_operator_route_blocked_total",
			Help: "Operator routes blocked while impersonation was active",
		}),
	}
}

// IncrementDecision records one evaluator decision.
func (m *Metrics) IncrementDecision(decision, reason string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(decision, reason).Inc()
}
