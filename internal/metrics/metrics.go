// Package metrics exposes prometheus instrumentation for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all prometheus collectors for the bridge.
type Metrics struct {
	connectionStatus *prometheus.GaugeVec
	reconnects       *prometheus.CounterVec
	received         *prometheus.CounterVec
	forwarded        *prometheus.CounterVec
	suppressed       *prometheus.CounterVec
	publishErrors    *prometheus.CounterVec
	rulesActive      prometheus.Gauge
	rulesetVersion   prometheus.Gauge
	reloads          *prometheus.CounterVec
}

// NewMetrics creates and registers the bridge metrics. A nil registerer
// skips registration, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connectionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "span_bridge_connection_status",
			Help: "Connection status per broker side (1 = connected)",
		}, []string{"side"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "span_bridge_reconnects_total",
			Help: "Number of reconnection attempts per broker side",
		}, []string{"side"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "span_bridge_messages_received_total",
			Help: "Messages received per source side",
		}, []string{"side"}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "span_bridge_messages_forwarded_total",
			Help: "Messages forwarded per target side",
		}, []string{"side"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "span_bridge_messages_suppressed_total",
			Help: "Messages suppressed by the loop guard per source side",
		}, []string{"side"}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "span_bridge_publish_errors_total",
			Help: "Failed forward publishes per target side",
		}, []string{"side"}),
		rulesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "span_bridge_rules_active",
			Help: "Number of rules in the active rule set",
		}),
		rulesetVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "span_bridge_ruleset_version",
			Help: "Version number of the active rule set",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "span_bridge_reloads_total",
			Help: "Rule reload attempts by result",
		}, []string{"result"}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.connectionStatus,
			m.reconnects,
			m.received,
			m.forwarded,
			m.suppressed,
			m.publishErrors,
			m.rulesActive,
			m.rulesetVersion,
			m.reloads,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// SetConnectionStatus records whether a side is connected.
func (m *Metrics) SetConnectionStatus(side string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	m.connectionStatus.WithLabelValues(side).Set(v)
}

// IncReconnects counts a reconnection attempt on a side.
func (m *Metrics) IncReconnects(side string) {
	m.reconnects.WithLabelValues(side).Inc()
}

// IncMessagesReceived counts an inbound message on a side.
func (m *Metrics) IncMessagesReceived(side string) {
	m.received.WithLabelValues(side).Inc()
}

// IncMessagesForwarded counts a successful forward to a side.
func (m *Metrics) IncMessagesForwarded(side string) {
	m.forwarded.WithLabelValues(side).Inc()
}

// IncMessagesSuppressed counts a loop-guard suppression on a side.
func (m *Metrics) IncMessagesSuppressed(side string) {
	m.suppressed.WithLabelValues(side).Inc()
}

// IncPublishErrors counts a failed forward publish to a side.
func (m *Metrics) IncPublishErrors(side string) {
	m.publishErrors.WithLabelValues(side).Inc()
}

// SetRulesActive records the size of the active rule set.
func (m *Metrics) SetRulesActive(count float64) {
	m.rulesActive.Set(count)
}

// SetRuleSetVersion records the active rule set version.
func (m *Metrics) SetRuleSetVersion(version float64) {
	m.rulesetVersion.Set(version)
}

// IncReloads counts a reload attempt; result is "success" or "failure".
func (m *Metrics) IncReloads(result string) {
	m.reloads.WithLabelValues(result).Inc()
}
