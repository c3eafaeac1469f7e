package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn stages tracked in the sliding latency window.
const (
	StageHistoryFetch  = "history_fetch"
	StageModelCall     = "model_call"
	StageHistoryAppend = "history_append"
	StageTurnTotal     = "turn_total"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ChatRequests   *prometheus.CounterVec
	TurnLatency    prometheus.Histogram
	ModelLatency   prometheus.Histogram
	StoreErrors    *prometheus.CounterVec
	ActiveSessions prometheus.Gauge

	turnStages *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end chat turn latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		ModelLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_ms",
			Help:      "Model invocation latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_store_errors_total",
			Help:      "History store failures by operation.",
		}, []string{"op"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions with an in-flight turn.",
		}),
		turnStages: newTurnStageWindow(256),
	}
}

// ObserveStage records one stage duration in both the Prometheus
// histograms and the sliding window behind the perf endpoint.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	ms := float64(d.Milliseconds())
	m.turnStages.Observe(stage, ms)
	switch stage {
	case StageModelCall:
		m.ModelLatency.Observe(ms)
	case StageTurnTotal:
		m.TurnLatency.Observe(ms)
	}
}

// ObserveIndicator counts a named turn event (model_error,
// store_unavailable, blank_input) in the perf snapshot.
func (m *Metrics) ObserveIndicator(name string) {
	m.turnStages.ObserveIndicator(name)
}

// SnapshotTurnStages returns the current sliding-window latency stats.
func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	return m.turnStages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
