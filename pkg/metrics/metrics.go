// Copyright 2025 Lattice Relay
//
// Metrics: counters/gauges for the relay loop's observable outcomes,
// exposed over the optional core.prometheus_endpoint (spec.md §6). Grounded
// on the teacher's direct github.com/prometheus/client_golang dependency
// (go.mod); no file in the retrieved corpus calls the library's API
// directly, so this package follows client_golang's own documented
// promauto.NewCounterVec/NewGaugeVec idiom rather than inventing one, per
// DESIGN.md's note on this package.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lattice_relay"

// Registry holds every metric the relay engine updates, labeled by chain
// pair direction ("source", "destination") where relevant.
type Registry struct {
	MessagesSubmitted  *prometheus.CounterVec
	MessagesDropped    *prometheus.CounterVec
	SubmitRetries      *prometheus.CounterVec
	MisbehaviourEvents *prometheus.CounterVec
	ScanErrors         *prometheus.CounterVec
	LatestSourceHeight *prometheus.GaugeVec
}

// New registers every metric against a fresh registry so multiple Engine
// instances in the same process (e.g. under test) do not collide on the
// global default registerer.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		MessagesSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_submitted_total",
			Help:      "Messages successfully submitted to a destination chain.",
		}, []string{"source", "destination", "message_type"}),

		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages classified chain-rejected and dropped without retry.",
		}, []string{"source", "destination", "message_type"}),

		SubmitRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submit_retries_total",
			Help:      "Retry attempts issued by the submitter for a transient failure.",
		}, []string{"destination"}),

		MisbehaviourEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misbehaviour_events_total",
			Help:      "Conflicting finality proofs detected and submitted as evidence.",
		}, []string{"source", "destination"}),

		ScanErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Per-channel scan failures aggregated by the scanner.",
		}, []string{"source", "destination"}),

		LatestSourceHeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_source_height",
			Help:      "Most recent finalized source height observed by a relay direction.",
		}, []string{"source"}),
	}, reg
}

// Handler returns the HTTP handler to mount at core.prometheus_endpoint.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
