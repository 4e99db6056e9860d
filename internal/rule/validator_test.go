//file: internal/rule/validator_test.go
package rule

import (
	"testing"
)

func TestValidateTopicFilter(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		wantError bool
	}{
		{"Valid simple topic", "sensors/temp", false},
		{"Valid single-level wildcard", "sensors/+/temp", false},
		{"Valid multi-level wildcard", "sensors/#", false},
		{"Valid bare hash", "#", false},
		{"Valid complex filter", "home/+/living/+/temp", false},
		{"Valid leading slash", "/sensors/temp", false},
		{"Valid trailing slash", "sensors/temp/", false},

		{"Empty topic", "", true},
		{"Plus glued to text", "sensors/a+/value", true},
		{"Text glued to plus", "sensors/+a/value", true},
		{"Hash glued to text", "sensors/#x", true},
		{"Mid-topic hash", "sensors/#/temp", true},
		{"Non-trailing hash", "a/#/b", true},
		{"Empty middle segment", "sensors//temp", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopicFilter(tt.topic)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateTopicFilter(%q) error = %v, wantError %v", tt.topic, err, tt.wantError)
			}
		})
	}
}

func TestValidateTopicName(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		wantError bool
	}{
		{"Valid publish topic", "sensors/temp", false},
		{"Valid multi-segment", "home/floor1/living/temp", false},
		{"Empty publish topic", "", true},
		{"Publish with plus", "sensors/+/temp", true},
		{"Publish with hash", "sensors/#", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopicName(tt.topic)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateTopicName(%q) error = %v, wantError %v", tt.topic, err, tt.wantError)
			}
		})
	}
}

func TestNewRuleSetValidation(t *testing.T) {
	tests := []struct {
		name      string
		rules     []Rule
		wantError bool
	}{
		{
			name: "Valid rules",
			rules: []Rule{
				{Topic: "sensors/#", Direction: DirectionNearToFar, QoS: 0},
				{Topic: "cmd/+", Direction: DirectionFarToNear, QoS: 1},
				{Topic: "shared/#", Direction: DirectionWherever, QoS: 2, Logging: true},
			},
			wantError: false,
		},
		{
			name: "Bidirectional alias accepted",
			rules: []Rule{
				{Topic: "shared/#", Direction: "bidirectional", QoS: 1},
			},
			wantError: false,
		},
		{
			name: "Non-trailing hash rejected",
			rules: []Rule{
				{Topic: "a/#/b", Direction: DirectionNearToFar, QoS: 0},
			},
			wantError: true,
		},
		{
			name: "Invalid QoS rejected",
			rules: []Rule{
				{Topic: "sensors/#", Direction: DirectionNearToFar, QoS: 3},
			},
			wantError: true,
		},
		{
			name: "Invalid direction rejected",
			rules: []Rule{
				{Topic: "sensors/#", Direction: "sideways", QoS: 0},
			},
			wantError: true,
		},
		{
			name:      "Empty rule list allowed",
			rules:     nil,
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := NewRuleSet(7, tt.rules)
			if (err != nil) != tt.wantError {
				t.Fatalf("NewRuleSet() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil {
				return
			}
			if rs.Version != 7 {
				t.Errorf("Version = %d, want 7", rs.Version)
			}
			if len(rs.Rules) != len(tt.rules) {
				t.Errorf("len(Rules) = %d, want %d", len(rs.Rules), len(tt.rules))
			}
		})
	}
}

func TestNewRuleSetNormalizesAliases(t *testing.T) {
	rs, err := NewRuleSet(1, []Rule{
		{Topic: "shared/#", Direction: "bidirectional", QoS: 0},
		{Topic: "also/#", Direction: "both", QoS: 0},
	})
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	for i, r := range rs.Rules {
		if r.Direction != DirectionWherever {
			t.Errorf("rule %d direction = %q, want %q", i, r.Direction, DirectionWherever)
		}
	}
}

func TestDirectionSides(t *testing.T) {
	tests := []struct {
		direction   Direction
		listensNear bool
		listensFar  bool
	}{
		{DirectionNearToFar, true, false},
		{DirectionFarToNear, false, true},
		{DirectionWherever, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.direction), func(t *testing.T) {
			if got := tt.direction.ListensOn(SideNear); got != tt.listensNear {
				t.Errorf("ListensOn(near) = %v, want %v", got, tt.listensNear)
			}
			if got := tt.direction.ListensOn(SideFar); got != tt.listensFar {
				t.Errorf("ListensOn(far) = %v, want %v", got, tt.listensFar)
			}
		})
	}

	if SideNear.Opposite() != SideFar || SideFar.Opposite() != SideNear {
		t.Error("Opposite() should swap sides")
	}
}
