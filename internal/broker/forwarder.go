//file: internal/broker/forwarder.go
package broker

import (
	"mqtt-span-bridge/internal/logger"
	"mqtt-span-bridge/internal/metrics"
	"mqtt-span-bridge/internal/rule"
	"mqtt-span-bridge/internal/stats"
)

// Forwarder executes forward decisions: publish on the target side,
// stamp the loop guard, and emit a log record for rules that ask for
// one. A failed publish drops that message and routing continues;
// queuing is out of scope.
type Forwarder struct {
	conns   map[rule.Side]Connection
	guard   *rule.LoopGuard
	logger  *logger.Logger
	metrics *metrics.Metrics
	stats   *stats.BridgeStats
}

// NewForwarder creates a forwarder over the two side connections.
func NewForwarder(near, far Connection, guard *rule.LoopGuard, log *logger.Logger, m *metrics.Metrics, st *stats.BridgeStats) *Forwarder {
	return &Forwarder{
		conns: map[rule.Side]Connection{
			rule.SideNear: near,
			rule.SideFar:  far,
		},
		guard:   guard,
		logger:  log,
		metrics: m,
		stats:   st,
	}
}

// Forward publishes one decision. The fingerprint is recorded only after
// a successful publish: a message that never left cannot come back.
func (f *Forwarder) Forward(source rule.Side, d rule.Decision) {
	conn := f.conns[d.Target]

	if err := conn.Publish(d.Topic, d.Payload, d.QoS, d.Retain); err != nil {
		f.logger.Error("dropping message, forward publish failed",
			"source", string(source),
			"target", string(d.Target),
			"topic", d.Topic,
			"error", err)
		f.stats.IncDropped()
		if f.metrics != nil {
			f.metrics.IncPublishErrors(string(d.Target))
		}
		return
	}

	f.guard.Record(rule.NewFingerprint(d.Topic, d.Payload, d.QoS))
	f.stats.IncForwarded()
	if f.metrics != nil {
		f.metrics.IncMessagesForwarded(string(d.Target))
	}

	if d.Logging {
		f.logger.Info("forwarded message",
			"source", string(source),
			"target", string(d.Target),
			"topic", d.Topic,
			"bytes", len(d.Payload),
			"qos", d.QoS,
			"rule", d.RuleIndex)
	}
}
