// Package metrics is the Prometheus surface SPEC_FULL.md §4.12 adds,
// grounded directly in the teacher's monitoring/prometheus.go: package
// level promauto vectors plus small Record*/Set* functions, rather than
// a metrics struct threaded through every component.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowfix_events_applied_total",
			Help: "Total order events appended to the event store, by outcome",
		},
		[]string{"outcome"}, // applied, duplicate, error
	)

	shadowOrdersEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowfix_shadow_orders_emitted_total",
			Help: "Total outbound shadow orders emitted, by message type and shadow account",
		},
		[]string{"msg_type", "shadow_account"},
	)

	replicationsByRule = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowfix_replications_total",
			Help: "Total replication fan-outs, by copy rule id",
		},
		[]string{"rule_id"},
	)

	rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowfix_rejections_total",
			Help: "Total rejection ExecutionReports observed, by classification",
		},
		[]string{"reason"},
	)

	locateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowfix_locate_transitions_total",
			Help: "Total LocateRequest status transitions, by resulting status",
		},
		[]string{"status"},
	)

	handlerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shadowfix_handler_latency_milliseconds",
			Help:    "Dispatcher handler processing latency in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"handler"},
	)

	workerPoolDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shadowfix_worker_pool_submitted_total",
			Help: "Cumulative work items submitted to the dispatcher worker pool",
		},
	)
)

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEventApplied records one AppendEvent outcome.
func RecordEventApplied(outcome string) {
	eventsApplied.WithLabelValues(outcome).Inc()
}

// RecordShadowOrderEmitted records one outbound shadow order.
func RecordShadowOrderEmitted(msgType, shadowAccount string) {
	shadowOrdersEmitted.WithLabelValues(msgType, shadowAccount).Inc()
}

// RecordReplication records one copy-rule fan-out.
func RecordReplication(ruleID string) {
	replicationsByRule.WithLabelValues(ruleID).Inc()
}

// RecordRejection records one classified rejection.
func RecordRejection(reason string) {
	rejections.WithLabelValues(reason).Inc()
}

// RecordLocateTransition records one LocateRequest status change.
func RecordLocateTransition(status string) {
	locateTransitions.WithLabelValues(status).Inc()
}

// ObserveHandlerLatency records how long a dispatcher handler took.
func ObserveHandlerLatency(handler string, d time.Duration) {
	handlerLatency.WithLabelValues(handler).Observe(float64(d.Milliseconds()))
}

// IncWorkerPoolSubmitted records one work item submitted to the pool.
func IncWorkerPoolSubmitted() {
	workerPoolDepth.Inc()
}
