package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	gradingFallbacks *prometheus.CounterVec
	shortCircuits    prometheus.Counter
	aiLatency        *prometheus.HistogramVec
	leaderboardCache *prometheus.CounterVec
	leaderboardSize  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gradingFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assessment_grading_fallbacks_total",
				Help: "Grading operations that fell back because the AI collaborator failed",
			},
			[]string{"kind"},
		),
		shortCircuits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assessment_short_circuit_total",
			Help: "Subjective answers graded without calling the AI collaborator",
		}),
		aiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assessment_ai_request_seconds",
				Help:    "Duration of AI collaborator calls",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation", "outcome"},
		),
		leaderboardCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assessment_leaderboard_cache_total",
				Help: "Leaderboard cache lookups by result",
			},
			[]string{"result"},
		),
		leaderboardSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "assessment_leaderboard_entries",
				Help: "Entries in the most recently built leaderboard snapshot",
			},
			[]string{"subject", "grade"},
		),
	}
	m.registry.MustRegister(
		m.gradingFallbacks,
		m.shortCircuits,
		m.aiLatency,
		m.leaderboardCache,
		m.leaderboardSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests that inspect collected values.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) GradingFallback(kind string) {
	if m == nil {
		return
	}
	m.gradingFallbacks.WithLabelValues(kind).Inc()
}

func (m *Metrics) ShortCircuit() {
	if m == nil {
		return
	}
	m.shortCircuits.Inc()
}

func (m *Metrics) ObserveAI(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.aiLatency.WithLabelValues(operation, outcome).Observe(time.Since(started).Seconds())
}

func (m *Metrics) LeaderboardCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.leaderboardCache.WithLabelValues(result).Inc()
}

func (m *Metrics) LeaderboardSize(subject, grade string, n int) {
	if m == nil {
		return
	}
	m.leaderboardSize.WithLabelValues(subject, grade).Set(float64(n))
}
