package oss

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates orchestrator counters for scraping. Each Orchestrator
// owns its own Metrics against its own registry, so multiple instances in
// one process (the usual test setup) never collide.
type Metrics struct {
	Actions           *prometheus.CounterVec
	DeviceCommands    *prometheus.CounterVec
	ActiveExperiments prometheus.Gauge
	WaitTimeouts      prometheus.Counter
}

// NewMetrics builds and registers the metric set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oss_actions_total",
				Help: "Protocol actions executed, by action name and outcome.",
			},
			[]string{"action", "outcome"},
		),
		DeviceCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oss_device_commands_total",
				Help: "Device-level commands emitted, by device.",
			},
			[]string{"device"},
		),
		ActiveExperiments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "oss_active_experiments",
				Help: "Experiments currently registered.",
			},
		),
		WaitTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oss_wait_timeouts_total",
				Help: "Completion-signal waits that timed out.",
			},
		),
	}
	reg.MustRegister(m.Actions, m.DeviceCommands, m.ActiveExperiments, m.WaitTimeouts)
	return m
}

// observeAction records one finished action call.
func (m *Metrics) observeAction(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Actions.WithLabelValues(action, outcome).Inc()
}

// observeDevice records one emitted device command.
func (m *Metrics) observeDevice(device string) {
	if m == nil {
		return
	}
	m.DeviceCommands.WithLabelValues(device).Inc()
}
