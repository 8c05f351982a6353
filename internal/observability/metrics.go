package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursegen",
		Name:      "llm_calls_total",
		Help:      "LLM facade calls by prompt and outcome.",
	}, []string{"prompt", "outcome"})

	llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coursegen",
		Name:      "llm_call_seconds",
		Help:      "LLM facade call latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90},
	}, []string{"prompt"})

	jobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursegen",
		Name:      "job_transitions_total",
		Help:      "Generation job state transitions.",
	}, []string{"kind", "state"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coursegen",
		Name:      "job_run_seconds",
		Help:      "Wall time of one generation job attempt.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"kind", "outcome"})

	httpRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coursegen",
		Name:      "http_request_seconds",
		Help:      "HTTP request latency by route template and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coursegen",
		Name:      "http_requests_inflight",
		Help:      "HTTP requests currently being served.",
	})

	vectorOps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coursegen",
		Name:      "vector_op_seconds",
		Help:      "Vector index operations by provider, operation and status.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"provider", "operation", "status"})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coursegen",
		Name:      "ws_connections",
		Help:      "Open progress websocket connections on this instance.",
	})
)

func ObserveLLMCall(prompt, outcome string, dur time.Duration) {
	llmCalls.WithLabelValues(prompt, outcome).Inc()
	llmLatency.WithLabelValues(prompt).Observe(dur.Seconds())
}

func ObserveJobTransition(kind, state string) {
	jobTransitions.WithLabelValues(kind, state).Inc()
}

func ObserveJobRun(kind, outcome string, dur time.Duration) {
	jobDuration.WithLabelValues(kind, outcome).Observe(dur.Seconds())
}

func ObserveHTTP(method, route, status string, dur time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func HTTPInflight(delta float64) { httpInflight.Add(delta) }

func ObserveVectorOp(provider, operation, status string, dur time.Duration) {
	vectorOps.WithLabelValues(provider, operation, status).Observe(dur.Seconds())
}

func WSConnected()    { wsConnections.Inc() }
func WSDisconnected() { wsConnections.Dec() }

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
