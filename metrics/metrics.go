package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auticare"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	llmAttempts   *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	fallbacks     *prometheus.CounterVec
	searchLookups *prometheus.CounterVec
	promptTokens  prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		llmAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_attempts_total",
			Help:      "Completion attempts by provider, model and outcome.",
		}, []string{"provider", "model", "outcome"}),
		llmDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_attempt_duration_seconds",
			Help:      "Completion attempt latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_answers_total",
			Help:      "Answers produced without a model, by bot and source.",
		}, []string{"bot", "source"}),
		searchLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_lookups_total",
			Help:      "Live search lookups by outcome.",
		}, []string{"outcome"}),
		promptTokens: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_tokens",
			Help:      "Estimated prompt size in tokens.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) LLMAttempt(provider, model string, ok bool, elapsed time.Duration) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	m.llmAttempts.WithLabelValues(provider, model, outcome).Inc()
	m.llmDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) PromptTokens(n int) {
	m.promptTokens.Observe(float64(n))
}

func (m *Metrics) Fallback(bot, source string) {
	m.fallbacks.WithLabelValues(bot, source).Inc()
}

func (m *Metrics) SearchLookup(outcome string) {
	m.searchLookups.WithLabelValues(outcome).Inc()
}
