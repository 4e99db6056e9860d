//file: internal/rule/types.go
// Package rule defines bridge rules, topic matching, routing decisions
// and the loop-suppression cache used by the bridging engine.
package rule

import (
	"fmt"
)

// Side identifies one of the two bridged broker connections.
type Side string

const (
	// SideNear is the "near" broker connection
	SideNear Side = "near"
	// SideFar is the "far" broker connection
	SideFar Side = "far"
)

// Opposite returns the other side of the bridge.
func (s Side) Opposite() Side {
	if s == SideNear {
		return SideFar
	}
	return SideNear
}

// Valid reports whether the side is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideNear || s == SideFar
}

// Direction declares which way a rule forwards messages.
type Direction string

const (
	// DirectionNearToFar forwards messages seen on near to far
	DirectionNearToFar Direction = "near_to_far"
	// DirectionFarToNear forwards messages seen on far to near
	DirectionFarToNear Direction = "far_to_near"
	// DirectionWherever forwards in both directions
	DirectionWherever Direction = "wherever"
)

// NormalizeDirection maps accepted config spellings onto the canonical
// direction tokens.
func NormalizeDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionNearToFar, DirectionFarToNear, DirectionWherever:
		return Direction(s), true
	}
	// Accepted aliases for the bidirectional token
	if s == "bidirectional" || s == "both" {
		return DirectionWherever, true
	}
	return "", false
}

// ListensOn reports whether a rule with this direction requires a
// subscription on the given side.
func (d Direction) ListensOn(side Side) bool {
	switch d {
	case DirectionNearToFar:
		return side == SideNear
	case DirectionFarToNear:
		return side == SideFar
	case DirectionWherever:
		return true
	}
	return false
}

// ForwardsFrom reports whether a rule with this direction forwards
// messages sourced on the given side. A rule forwards from exactly the
// sides it listens on.
func (d Direction) ForwardsFrom(source Side) bool {
	return d.ListensOn(source)
}

// Rule defines a single bridge rule.
type Rule struct {
	// Topic is an MQTT topic filter; supports + and # wildcards.
	Topic string `json:"topic" yaml:"topic"`
	// Direction declares which side(s) the rule forwards across.
	Direction Direction `json:"direction" yaml:"direction"`
	// QoS is the MQTT QoS level (0, 1, or 2) used when forwarding.
	QoS byte `json:"qos" yaml:"qos"`
	// Logging emits a log record for every message forwarded by this rule.
	Logging bool `json:"logging" yaml:"logging"`
}

// RuleSet is an immutable, versioned collection of bridge rules. A reload
// produces a brand-new RuleSet; a RuleSet is never mutated after
// construction.
type RuleSet struct {
	Version uint64
	Rules   []Rule
}

// NewRuleSet validates all rules and builds a RuleSet with the given
// version number. Rules are copied so later mutation of the input slice
// cannot reach the set.
func NewRuleSet(version uint64, rules []Rule) (*RuleSet, error) {
	for i := range rules {
		if err := validateRule(&rules[i]); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	rs := &RuleSet{
		Version: version,
		Rules:   make([]Rule, len(rules)),
	}
	copy(rs.Rules, rules)
	return rs, nil
}

// WithVersion returns a copy of the set carrying a new version number.
func (rs *RuleSet) WithVersion(version uint64) *RuleSet {
	return &RuleSet{Version: version, Rules: rs.Rules}
}

// Inbound represents a message received from one side's broker.
type Inbound struct {
	Side    Side
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Decision represents a single forward operation produced by the router.
type Decision struct {
	Target    Side
	Topic     string
	Payload   []byte
	QoS       byte
	Retain    bool
	RuleIndex int
	Logging   bool
}

// ValidationError represents a rule validation error
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
