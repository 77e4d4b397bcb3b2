package metrics

import (
	"encoding/json"
	"sync"

	"suppliersync/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suppliersync",
			Name:      "jobs_total",
			Help:      "Sync jobs by type and terminal status.",
		},
		[]string{"job_type", "status"},
	)

	recordsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suppliersync",
			Name:      "records_upserted_total",
			Help:      "Raw records upserted by kind.",
		},
		[]string{"kind"},
	)

	supplierCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suppliersync",
			Name:      "supplier_calls_total",
			Help:      "Supplier API calls by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	reconcileOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suppliersync",
			Name:      "reconcile_outcomes_total",
			Help:      "Order reconciliation outcomes by reason.",
		},
		[]string{"reason"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suppliersync",
			Name:      "http_requests_total",
			Help:      "HTTP API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(jobsTotal, recordsUpserted, supplierCalls, reconcileOutcomes, httpRequests)
	})
}

// IncJob increments the job counter for a terminal status.
func IncJob(jobType, status string) {
	jobsTotal.WithLabelValues(jobType, status).Inc()
}

// AddRecords counts upserted raw records of a kind.
func AddRecords(kind string, n int) {
	recordsUpserted.WithLabelValues(kind).Add(float64(n))
}

// IncSupplierCall counts one supplier API call.
func IncSupplierCall(endpoint, outcome string) {
	supplierCalls.WithLabelValues(endpoint, outcome).Inc()
}

// IncReconcile counts one reconciliation outcome ("linked" or a failure
// reason).
func IncReconcile(reason string) {
	reconcileOutcomes.WithLabelValues(reason).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// SubscribeJobs wires job and reconcile events into the counters.
func SubscribeJobs(bus *events.EventBus) {
	if bus == nil {
		return
	}

	jobHandler := func(status string) events.EventHandler {
		return func(e *events.Event) error {
			var p events.JobEventPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return err
			}
			IncJob(p.JobType, status)
			return nil
		}
	}
	bus.Subscribe(events.EventJobSucceeded, jobHandler("succeeded"))
	bus.Subscribe(events.EventJobFailed, jobHandler("failed"))

	bus.Subscribe(events.EventOrderReconciled, func(e *events.Event) error {
		IncReconcile("linked")
		return nil
	})
	bus.Subscribe(events.EventReconcileFailed, func(e *events.Event) error {
		var p events.ReconcilePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		IncReconcile(p.Reason)
		return nil
	})
}
