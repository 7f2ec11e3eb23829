// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queries_routed_total",
			Help: "Total number of queries processed, by terminal routing state",
		},
		[]string{"state"},
	)

	QueriesBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queries_blocked_total",
			Help: "Total number of queries denied by the access gate",
		},
		[]string{"organization"},
	)

	SourceSearchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_search_failures_total",
			Help: "Total number of source searches that failed and were degraded to empty results",
		},
		[]string{"source"},
	)

	TicketsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_created_total",
			Help: "Total number of tickets assembled, by category and creation method",
		},
		[]string{"category", "method"},
	)

	RoutingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "query_routing_duration_seconds",
			Help: "Duration of end-to-end query routing in seconds",
		},
		[]string{"state"},
	)

	PendingQuestionFlows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pending_question_flows",
			Help: "Number of question flows currently awaiting a user reply",
		},
		[]string{"category"},
	)
)
