//file: internal/rule/router.go
package rule

import (
	"mqtt-span-bridge/internal/logger"
	"mqtt-span-bridge/internal/metrics"
	"mqtt-span-bridge/internal/stats"
)

// Router turns an inbound message plus the current RuleSet into zero or
// more forward decisions.
type Router struct {
	guard   *LoopGuard
	logger  *logger.Logger
	metrics *metrics.Metrics
	stats   *stats.BridgeStats
}

// NewRouter creates a router. The metrics collector may be nil when
// metrics are disabled.
func NewRouter(guard *LoopGuard, log *logger.Logger, m *metrics.Metrics, st *stats.BridgeStats) *Router {
	return &Router{
		guard:   guard,
		logger:  log,
		metrics: m,
		stats:   st,
	}
}

// Route evaluates every rule in the set against the message. A rule fires
// when its pattern matches the topic and its direction forwards from the
// message's source side; each firing rule yields one decision targeting
// the opposite side with that rule's QoS and logging flag. Decisions come
// out in rule order.
//
// A message whose fingerprint is present in the loop guard yields no
// decisions at all: it is something the bridge itself just published, and
// that cause is independent of which rule re-matched it.
func (r *Router) Route(msg Inbound, rs *RuleSet) []Decision {
	if rs == nil || len(rs.Rules) == 0 {
		return nil
	}

	fp := NewFingerprint(msg.Topic, msg.Payload, msg.QoS)
	if r.guard.ShouldSuppress(fp) {
		r.logger.Info("suppressed looped message",
			"side", string(msg.Side),
			"topic", msg.Topic,
			"fingerprint", fp.String())
		if r.metrics != nil {
			r.metrics.IncMessagesSuppressed(string(msg.Side))
		}
		r.stats.IncSuppressed()
		return nil
	}

	var decisions []Decision
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if !rule.Direction.ForwardsFrom(msg.Side) {
			continue
		}
		if !MatchTopic(rule.Topic, msg.Topic) {
			continue
		}
		decisions = append(decisions, Decision{
			Target:    msg.Side.Opposite(),
			Topic:     msg.Topic,
			Payload:   msg.Payload,
			QoS:       rule.QoS,
			Retain:    msg.Retain,
			RuleIndex: i,
			Logging:   rule.Logging,
		})
	}

	return decisions
}
