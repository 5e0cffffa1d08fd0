// Package metrics exposes Prometheus instruments for the replay loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the replay instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	slicesProcessed *prometheus.CounterVec
	recordsEmitted  *prometheus.CounterVec
	sliceWait       *prometheus.HistogramVec
	replayErrors    *prometheus.CounterVec
	activeReplays   prometheus.Gauge
}

// New creates the instruments on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		slicesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickreplay_slices_processed_total",
			Help: "Slices fully decoded, by exchange",
		}, []string{"exchange"}),
		recordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickreplay_records_emitted_total",
			Help: "Records yielded to replay consumers, by exchange",
		}, []string{"exchange"}),
		sliceWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tickreplay_slice_wait_seconds",
			Help:    "Time spent waiting for a slice file to appear",
			Buckets: []float64{0.001, 0.01, 0.3, 1, 5, 30, 120},
		}, []string{"exchange"}),
		replayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickreplay_replay_errors_total",
			Help: "Replays that ended with an error, by error code",
		}, []string{"code"}),
		activeReplays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickreplay_active_replays",
			Help: "Replays currently in progress",
		}),
	}
	m.registry.MustRegister(
		m.slicesProcessed,
		m.recordsEmitted,
		m.sliceWait,
		m.replayErrors,
		m.activeReplays,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SliceProcessed(exchange string, records int) {
	if m == nil {
		return
	}
	m.slicesProcessed.WithLabelValues(exchange).Inc()
	m.recordsEmitted.WithLabelValues(exchange).Add(float64(records))
}

func (m *Metrics) SliceWaited(exchange string, d time.Duration) {
	if m == nil {
		return
	}
	m.sliceWait.WithLabelValues(exchange).Observe(d.Seconds())
}

func (m *Metrics) ReplayFailed(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.replayErrors.WithLabelValues(code).Inc()
}

// ReplayStarted increments the active gauge and returns its decrement.
func (m *Metrics) ReplayStarted() func() {
	if m == nil {
		return func() {}
	}
	m.activeReplays.Inc()
	return m.activeReplays.Dec
}
