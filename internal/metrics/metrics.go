package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipgate_submissions_total",
			Help: "Upload attempts by outcome",
		},
		[]string{"outcome"}, // accepted|already_submitted|storage_failure|customer_not_found|error
	)

	CustomersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipgate_customers_total",
			Help: "Registry mutations by operation",
		},
		[]string{"op"}, // registered|removed
	)

	ArtifactStoreSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipgate_artifact_store_seconds",
			Help:    "Latency of payload writes to the artifact store",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"result"}, // ok|error
	)

	ProjectedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipgate_projected_events_total",
			Help: "Outbox events written to the ClickHouse projection",
		},
		[]string{"type"},
	)
)

var once sync.Once

// MustRegister registers the collectors once per process; serve and worker share it.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			SubmissionsTotal,
			CustomersTotal,
			ArtifactStoreSeconds,
			ProjectedEventsTotal,
		)
	})
}
