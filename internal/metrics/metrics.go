// Package metrics exposes Prometheus instrumentation for the watchdog
// and firewall. All observer methods are nil-safe so instrumentation
// stays optional for callers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WatchdogMetrics instruments the connectivity watchdog loop.
type WatchdogMetrics struct {
	cyclesTotal         *prometheus.CounterVec
	consecutiveFailures prometheus.Gauge
	threshold           prometheus.Gauge
	probeDuration       *prometheus.HistogramVec
	probeFailures       *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	poweroffTotal       prometheus.Counter
}

// NewWatchdogMetrics registers watchdog metrics with reg.
func NewWatchdogMetrics(reg prometheus.Registerer) *WatchdogMetrics {
	factory := promauto.With(reg)

	return &WatchdogMetrics{
		cyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatewall",
			Subsystem: "watchdog",
			Name:      "cycles_total",
			Help:      "Poll cycles by result.",
		}, []string{"result"}),
		consecutiveFailures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatewall",
			Subsystem: "watchdog",
			Name:      "consecutive_failures",
			Help:      "Current run of all-targets-failed cycles.",
		}),
		threshold: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatewall",
			Subsystem: "watchdog",
			Name:      "failure_threshold",
			Help:      "Configured consecutive-failure threshold.",
		}),
		probeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gatewall",
			Subsystem: "watchdog",
			Name:      "probe_duration_seconds",
			Help:      "Probe latency per target.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		probeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatewall",
			Subsystem: "watchdog",
			Name:      "probe_failures_total",
			Help:      "Failed probes per target.",
		}, []string{"target"}),
		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatewall",
			Subsystem: "watchdog",
			Name:      "notifications_total",
			Help:      "Shutdown notifications by result.",
		}, []string{"result"}),
		poweroffTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatewall",
			Subsystem: "watchdog",
			Name:      "poweroff_total",
			Help:      "Poweroff invocations.",
		}),
	}
}

// SetThreshold records the configured threshold.
func (m *WatchdogMetrics) SetThreshold(n int) {
	if m == nil {
		return
	}
	m.threshold.Set(float64(n))
}

// ObserveCycle records a completed poll cycle and the updated counter.
func (m *WatchdogMetrics) ObserveCycle(ok bool, consecutiveFailures int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.cyclesTotal.WithLabelValues(result).Inc()
	m.consecutiveFailures.Set(float64(consecutiveFailures))
}

// ObserveProbe records one probe attempt.
func (m *WatchdogMetrics) ObserveProbe(target string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.probeDuration.WithLabelValues(target).Observe(d.Seconds())
	if err != nil {
		m.probeFailures.WithLabelValues(target).Inc()
	}
}

// ObserveNotification records a shutdown notification outcome
// ("sent" or "skipped").
func (m *WatchdogMetrics) ObserveNotification(result string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(result).Inc()
}

// ObservePoweroff records the terminal poweroff call.
func (m *WatchdogMetrics) ObservePoweroff() {
	if m == nil {
		return
	}
	m.poweroffTotal.Inc()
}

// Handler returns an HTTP handler serving the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
