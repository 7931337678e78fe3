package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reconciliation counters exported on /metrics.
type Metrics struct {
	EventsProcessed        *prometheus.CounterVec
	SignatureFailures      prometheus.Counter
	ResolutionMisses       prometheus.Counter
	PartialReconciliations prometheus.Counter
	SweepRepairs           prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pitchside_webhook_events_total",
			Help: "Webhook events by gateway event type and reconciliation outcome",
		}, []string{"event_type", "outcome"}),
		SignatureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitchside_webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for a bad or missing signature",
		}),
		ResolutionMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitchside_webhook_resolution_misses_total",
			Help: "Verified events with no matching payment row",
		}),
		PartialReconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitchside_partial_reconciliations_total",
			Help: "Payment updated but the booking write failed; repaired by the sweep",
		}),
		SweepRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pitchside_sweep_repairs_total",
			Help: "Booking statuses repaired by the reconciliation sweep",
		}),
	}
	reg.MustRegister(m.EventsProcessed, m.SignatureFailures, m.ResolutionMisses, m.PartialReconciliations, m.SweepRepairs)
	return m
}
