// Package metrics exposes pipeline and model-gateway counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "callq"

// Recorder owns a private registry so tests and the one-shot batch can each
// gather exactly what they produced.
type Recorder struct {
	reg *prometheus.Registry

	callsTotal   *prometheus.CounterVec
	tokensTotal  prometheus.Counter
	llmRequests  *prometheus.CounterVec
	llmRetries   *prometheus.CounterVec
	llmLatency   prometheus.Histogram
	reportsSaved prometheus.Counter
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		callsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Calls settled by the orchestrator, by outcome.",
		}, []string{"outcome"}),
		tokensTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the model gateway.",
		}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Model gateway requests, by outcome.",
		}, []string{"outcome"}),
		llmRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Retries scheduled, by failure kind.",
		}, []string{"kind"}),
		llmLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model gateway request latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 300},
		}),
		reportsSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_saved_total",
			Help:      "Analysis reports written to storage.",
		}),
	}
}

// WithRuntime adds the Go and process collectors; the API server wants them,
// the batch job does not.
func (r *Recorder) WithRuntime() *Recorder {
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveOutcome(outcome string) {
	r.callsTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) AddTokens(n int) {
	if n > 0 {
		r.tokensTotal.Add(float64(n))
	}
}

func (r *Recorder) ObserveRequest(outcome string, d time.Duration) {
	r.llmRequests.WithLabelValues(outcome).Inc()
	r.llmLatency.Observe(d.Seconds())
}

func (r *Recorder) ObserveRetry(kind string) {
	r.llmRetries.WithLabelValues(kind).Inc()
}

func (r *Recorder) AddSaved(n int) {
	if n > 0 {
		r.reportsSaved.Add(float64(n))
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Push sends the current state to a Pushgateway under the given job name.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(r.reg).PushContext(ctx)
}
