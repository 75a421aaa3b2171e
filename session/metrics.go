package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for session lifecycle events.
type Metrics struct {
	started         *prometheus.CounterVec
	stopped         *prometheus.CounterVec
	live            prometheus.Gauge
	cleanupRetries  prometheus.Counter
	cleanupFailures prometheus.Counter
}

// NewMetrics registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		started: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codepad",
			Name:      "sessions_started_total",
			Help:      "Session start attempts by result.",
		}, []string{"result"}),
		stopped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codepad",
			Name:      "sessions_stopped_total",
			Help:      "Session stop attempts by trigger and result.",
		}, []string{"trigger", "result"}),
		live: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "codepad",
			Name:      "sessions_live",
			Help:      "Sessions currently held in the registry.",
		}),
		cleanupRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "codepad",
			Name:      "session_cleanup_retries_total",
			Help:      "Expiry-driven stops re-scheduled after a failure.",
		}),
		cleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "codepad",
			Name:      "session_cleanup_failures_total",
			Help:      "Expiry-driven stops abandoned after exhausting retries.",
		}),
	}
}

func (m *Metrics) observeStart(result string) {
	if m == nil {
		return
	}
	m.started.WithLabelValues(result).Inc()
}

func (m *Metrics) observeStop(t trigger, result string) {
	if m == nil {
		return
	}
	m.stopped.WithLabelValues(string(t), result).Inc()
}

func (m *Metrics) setLive(n int) {
	if m == nil {
		return
	}
	m.live.Set(float64(n))
}

func (m *Metrics) observeRetry() {
	if m == nil {
		return
	}
	m.cleanupRetries.Inc()
}

func (m *Metrics) observeCleanupFailure() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}
