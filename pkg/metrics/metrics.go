// Package metrics defines the Prometheus collectors for tool calls and
// upstream requests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ToolCalls        *prometheus.CounterVec
	ToolDuration     *prometheus.HistogramVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ToolCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapagent",
			Name:      "tool_calls_total",
			Help:      "Total number of tool invocations by outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mapagent",
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool invocations, upstream round trip included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		UpstreamRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapagent",
			Name:      "upstream_requests_total",
			Help:      "Total number of requests sent to upstream providers by status code.",
		}, []string{"service", "code"}),
		UpstreamDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mapagent",
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests to upstream providers.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"service"}),
	}
}

// ObserveTool records one tool invocation. A nil receiver is a no-op.
func (m *Metrics) ObserveTool(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveUpstream records one upstream round trip. code is the HTTP status
// or "error" when no response arrived. A nil receiver is a no-op.
func (m *Metrics) ObserveUpstream(service, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(service, code).Inc()
	m.UpstreamDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}
