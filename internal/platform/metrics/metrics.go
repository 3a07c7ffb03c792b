package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vault.
type Metrics struct {
	CredentialsIssued    prometheus.Counter
	CredentialsRetrieved prometheus.Counter
	AuthFailures         prometheus.Counter
	AuditAppendFailures  prometheus.Counter
	ChainPublishes       prometheus.Counter
	ChainConflicts       prometheus.Counter
	EndpointLatency      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers against an explicit registerer so tests can
// use a private registry without collisions.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracevault_credentials_issued_total",
			Help: "Total number of credentials written to the vault",
		}),
		CredentialsRetrieved: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracevault_credentials_retrieved_total",
			Help: "Total number of credential bodies released after gate verification",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracevault_auth_failures_total",
			Help: "Total number of retrievals rejected by the signature gate",
		}),
		AuditAppendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracevault_audit_append_failures_total",
			Help: "Access events that could not be persisted; silent loss of audit entries is a defect, so operators alert on this",
		}),
		ChainPublishes: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracevault_chain_publishes_total",
			Help: "Successful pointer publications on the chained audit log",
		}),
		ChainConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracevault_chain_conflicts_total",
			Help: "Compare-and-publish conflicts observed before a successful append",
		}),
		EndpointLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracevault_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}
