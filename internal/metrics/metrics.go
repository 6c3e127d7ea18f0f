// Package metrics exposes Prometheus counters for engine and analysis activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gamecoach"

// Manager owns the service metrics on one registry.
type Manager struct {
	registry *prometheus.Registry

	engineStarts        prometheus.Counter
	engineStartFailures prometheus.Counter
	evaluations         *prometheus.CounterVec
	evalLatency         prometheus.Histogram

	gamesAnalyzed  *prometheus.CounterVec
	ambiguousColor prometheus.Counter
	puzzlesMined   prometheus.Counter
	puzzleAttempts *prometheus.CounterVec
}

// NewManager registers all metrics on registry. A nil registry gets a fresh one.
func NewManager(registry *prometheus.Registry) *Manager {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	auto := promauto.With(registry)
	m := &Manager{registry: registry}

	m.engineStarts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "starts_total",
		Help:      "Engine processes started",
	})
	m.engineStartFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "start_failures_total",
		Help:      "Engine processes that failed to start",
	})
	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Engine searches by outcome (ok, error, timeout, closed)",
	}, []string{"outcome"})
	m.evalLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "evaluation_seconds",
		Help:      "Wall time of successful engine searches",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	m.gamesAnalyzed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "games_total",
		Help:      "Games processed by outcome (ok, too_short, failed)",
	}, []string{"outcome"})
	m.ambiguousColor = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "ambiguous_color_total",
		Help:      "Games where the player name matched neither side",
	})
	m.puzzlesMined = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "puzzle",
		Name:      "candidates_total",
		Help:      "Puzzle candidates emitted",
	})
	m.puzzleAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "puzzle",
		Name:      "attempts_total",
		Help:      "Puzzle answers checked by result",
	}, []string{"result"})
	return m
}

// Registry returns the registry the metrics live on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) EngineStarted()      { m.engineStarts.Inc() }
func (m *Manager) EngineStartFailed()  { m.engineStartFailures.Inc() }
func (m *Manager) AmbiguousColor()     { m.ambiguousColor.Inc() }
func (m *Manager) PuzzleMined()        { m.puzzlesMined.Inc() }
func (m *Manager) Game(outcome string) { m.gamesAnalyzed.WithLabelValues(outcome).Inc() }

// Evaluation records one engine search outcome and, for successes, its latency.
func (m *Manager) Evaluation(outcome string, seconds float64) {
	m.evaluations.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.evalLatency.Observe(seconds)
	}
}

// PuzzleAttempt records a checked answer.
func (m *Manager) PuzzleAttempt(correct bool) {
	result := "wrong"
	if correct {
		result = "correct"
	}
	m.puzzleAttempts.WithLabelValues(result).Inc()
}

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeClosed   = "closed"
	OutcomeTooShort = "too_short"
	OutcomeFailed   = "failed"
)

var defaultManager = NewManager(prometheus.NewRegistry())

// Default returns the process-wide manager used when none is injected.
func Default() *Manager { return defaultManager }
