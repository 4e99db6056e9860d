//file: internal/broker/subscription.go
package broker

import (
	"fmt"
	"sort"
	"sync"

	"mqtt-span-bridge/internal/logger"
	"mqtt-span-bridge/internal/rule"
)

// SubscriptionManager owns one side's subscription state: the set of
// topic filters currently subscribed on that side's connection with
// their QoS. It is the single source of truth for what the side is
// listening to. All subscription changes on a side serialize through it,
// so a reconnect-triggered resync and a reload-triggered diff apply can
// never interleave.
type SubscriptionManager struct {
	side   rule.Side
	conn   Connection
	logger *logger.Logger

	mu      sync.Mutex
	current map[string]byte // filter -> QoS
}

// NewSubscriptionManager creates a subscription manager for one side.
func NewSubscriptionManager(side rule.Side, conn Connection, log *logger.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		side:    side,
		conn:    conn,
		logger:  log,
		current: make(map[string]byte),
	}
}

// DesiredSubscriptions computes the topic-filter set a side must listen
// on for a rule set: the union of patterns from rules whose direction
// listens on the side. When several rules share a pattern with different
// QoS, the maximum QoS wins so a higher-QoS requirement is never
// silently dropped.
func DesiredSubscriptions(rs *rule.RuleSet, side rule.Side) map[string]byte {
	desired := make(map[string]byte)
	if rs == nil {
		return desired
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if !r.Direction.ListensOn(side) {
			continue
		}
		if qos, ok := desired[r.Topic]; !ok || r.QoS > qos {
			desired[r.Topic] = r.QoS
		}
	}
	return desired
}

// Diff computes the subscribe and unsubscribe batches turning current
// into desired. A filter present in both with a different QoS appears in
// both batches: brokers do not upgrade QoS in place, so it is
// unsubscribed and then resubscribed.
func Diff(current, desired map[string]byte) (toSubscribe map[string]byte, toUnsubscribe []string) {
	toSubscribe = make(map[string]byte)

	for filter, qos := range desired {
		cur, ok := current[filter]
		if !ok || cur != qos {
			toSubscribe[filter] = qos
		}
	}

	for filter, qos := range current {
		want, ok := desired[filter]
		if !ok || want != qos {
			toUnsubscribe = append(toUnsubscribe, filter)
		}
	}
	sort.Strings(toUnsubscribe)

	return toSubscribe, toUnsubscribe
}

// Apply transitions the side's subscriptions to exactly the desired set:
// unsubscribe batch first, then subscribe batch. On full success the
// tracked state equals desired. On partial failure the error is returned
// and the tracked state reflects what actually succeeded on the
// connection, so the next reconnect resync can repair it.
func (sm *SubscriptionManager) Apply(desired map[string]byte) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	toSubscribe, toUnsubscribe := Diff(sm.current, desired)

	for _, filter := range toUnsubscribe {
		if err := sm.conn.Unsubscribe(filter); err != nil {
			return fmt.Errorf("unsubscribe %s on %s: %w", filter, sm.side, err)
		}
		delete(sm.current, filter)
		sm.logger.Debug("unsubscribed",
			"side", string(sm.side),
			"filter", filter)
	}

	// Deterministic order keeps partial-failure state reproducible.
	filters := make([]string, 0, len(toSubscribe))
	for filter := range toSubscribe {
		filters = append(filters, filter)
	}
	sort.Strings(filters)

	for _, filter := range filters {
		qos := toSubscribe[filter]
		if err := sm.conn.Subscribe(filter, qos); err != nil {
			return fmt.Errorf("subscribe %s on %s: %w", filter, sm.side, err)
		}
		sm.current[filter] = qos
		sm.logger.Debug("subscribed",
			"side", string(sm.side),
			"filter", filter,
			"qos", qos)
	}

	return nil
}

// ResyncAll restores the side's full desired subscription set after a
// fresh connection, which has no memory of prior subscriptions. The
// tracked state is rebuilt from scratch: whatever was recorded before
// the disconnect no longer exists on the broker.
func (sm *SubscriptionManager) ResyncAll(rs *rule.RuleSet) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	desired := DesiredSubscriptions(rs, sm.side)
	sm.current = make(map[string]byte)

	filters := make([]string, 0, len(desired))
	for filter := range desired {
		filters = append(filters, filter)
	}
	sort.Strings(filters)

	for _, filter := range filters {
		qos := desired[filter]
		if err := sm.conn.Subscribe(filter, qos); err != nil {
			return fmt.Errorf("resubscribe %s on %s: %w", filter, sm.side, err)
		}
		sm.current[filter] = qos
	}

	sm.logger.Info("subscriptions restored",
		"side", string(sm.side),
		"count", len(sm.current))

	return nil
}

// Current returns a copy of the side's tracked subscription state.
func (sm *SubscriptionManager) Current() map[string]byte {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	out := make(map[string]byte, len(sm.current))
	for filter, qos := range sm.current {
		out[filter] = qos
	}
	return out
}
