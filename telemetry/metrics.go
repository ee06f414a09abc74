// Package telemetry exposes request counters over /metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TurnsTotal counts processed turns by kind (text, image, add_message)
	// and status (ok, error).
	TurnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_turns_total",
		Help: "Processed chat turns by kind and status.",
	}, []string{"kind", "status"})

	// UpstreamFailures counts failed calls to the inference API by kind.
	UpstreamFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_upstream_failures_total",
		Help: "Failed upstream generation calls by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(TurnsTotal, UpstreamFailures)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
