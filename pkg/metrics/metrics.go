// Package metrics records tool calls and Router queries in Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is nil-safe: a nil *Recorder drops every observation.
type Recorder struct {
	toolCalls     *prometheus.CounterVec
	toolRetries   *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	queries       *prometheus.CounterVec
	intents       *prometheus.CounterVec
	queryDuration prometheus.Histogram
}

// NewRecorder registers the collectors on reg. A nil reg uses the default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Tool invocations by operation and outcome code",
			},
			[]string{"operation", "code"},
		),
		toolRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_retries_total",
				Help: "Extra attempts made by the retry policy",
			},
			[]string{"operation"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool invocations including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_queries_total",
				Help: "Router queries by terminal status",
			},
			[]string{"status"},
		),
		intents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_intents_total",
				Help: "Dispatched intents by outcome",
			},
			[]string{"intent", "outcome"},
		),
		queryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "router_query_duration_seconds",
				Help:    "End to end Router query duration",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (r *Recorder) ObserveToolCall(operation, code string, attempts int, duration time.Duration) {
	if r == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	r.toolCalls.WithLabelValues(operation, code).Inc()
	if attempts > 1 {
		r.toolRetries.WithLabelValues(operation).Add(float64(attempts - 1))
	}
	r.toolDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (r *Recorder) ObserveIntent(intent string, ok bool) {
	if r == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	r.intents.WithLabelValues(intent, outcome).Inc()
}

func (r *Recorder) ObserveQuery(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.queries.WithLabelValues(status).Inc()
	r.queryDuration.Observe(duration.Seconds())
}
