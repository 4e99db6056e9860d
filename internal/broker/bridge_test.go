//file: internal/broker/bridge_test.go
package broker

import (
	"os"
	"path/filepath"
	"testing"

	"mqtt-span-bridge/config"
	"mqtt-span-bridge/internal/rule"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()

	rulesPath := filepath.Join(t.TempDir(), "rules.json")
	rules := `[{"topic": "sensors/#", "direction": "near_to_far", "qos": 1}]`
	if err := os.WriteFile(rulesPath, []byte(rules), 0644); err != nil {
		t.Fatalf("Failed to write rules file: %v", err)
	}

	cfg := &config.Config{
		Near:  config.BrokerConfig{Host: "localhost", Port: 1883, ClientID: "test-near"},
		Far:   config.BrokerConfig{Host: "localhost", Port: 1884, ClientID: "test-far"},
		Rules: rulesPath,
		Reload: config.ReloadConfig{
			Topic:  "bridge/control/reload",
			Broker: "near",
		},
		Bridge: config.BridgeConfig{LoopTTL: "5s", StatsInterval: "0s"},
	}

	b, err := NewBridge(cfg, newTestLogger(t), nil)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return b
}

func TestNewBridgeLoadsInitialRuleSet(t *testing.T) {
	b := newTestBridge(t)

	rs := b.ActiveRuleSet()
	if rs == nil {
		t.Fatal("active rule set should be loaded at construction")
	}
	if rs.Version != 1 {
		t.Errorf("initial version = %d, want 1", rs.Version)
	}
	if len(rs.Rules) != 1 {
		t.Errorf("rules = %d, want 1", len(rs.Rules))
	}
}

func TestNewBridgeInvalidRulesFails(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(rulesPath, []byte(`[{"topic": "a/#/b", "direction": "near_to_far"}]`), 0644); err != nil {
		t.Fatalf("Failed to write rules file: %v", err)
	}

	cfg := &config.Config{
		Near:   config.BrokerConfig{Host: "localhost", Port: 1883},
		Far:    config.BrokerConfig{Host: "localhost", Port: 1884},
		Rules:  rulesPath,
		Reload: config.ReloadConfig{Broker: "near"},
		Bridge: config.BridgeConfig{LoopTTL: "5s", StatsInterval: "0s"},
	}

	if _, err := NewBridge(cfg, newTestLogger(t), nil); err == nil {
		t.Fatal("NewBridge() should fail on invalid rules")
	}
}

func TestIsReloadTrigger(t *testing.T) {
	b := newTestBridge(t)

	tests := []struct {
		name string
		msg  rule.Inbound
		want bool
	}{
		{
			name: "Exact side and topic",
			msg:  rule.Inbound{Side: rule.SideNear, Topic: "bridge/control/reload"},
			want: true,
		},
		{
			name: "Wrong side",
			msg:  rule.Inbound{Side: rule.SideFar, Topic: "bridge/control/reload"},
			want: false,
		},
		{
			name: "Different topic",
			msg:  rule.Inbound{Side: rule.SideNear, Topic: "bridge/control/other"},
			want: false,
		},
		{
			name: "Trigger topic is exact, not a prefix",
			msg:  rule.Inbound{Side: rule.SideNear, Topic: "bridge/control/reload/extra"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.isReloadTrigger(tt.msg); got != tt.want {
				t.Errorf("isReloadTrigger(%+v) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestReloadTriggerMessageIsNotRouted(t *testing.T) {
	b := newTestBridge(t)

	// A trigger message runs a reload (which here re-reads the same file
	// and succeeds against disconnected sides only if no subscription
	// change is needed; either way it must not count as bridge traffic).
	before := b.stats.Snapshot()["received"]
	b.handleMessage(rule.Inbound{Side: rule.SideNear, Topic: "bridge/control/reload", Payload: []byte("go")})
	after := b.stats.Snapshot()["received"]

	if before != after {
		t.Error("trigger messages must not be counted as received traffic")
	}
}

func TestHandleMessageCountsTraffic(t *testing.T) {
	b := newTestBridge(t)

	// Both sides are disconnected, so the forward drops, but the inbound
	// message is still accounted for.
	b.handleMessage(rule.Inbound{Side: rule.SideNear, Topic: "sensors/temp", Payload: []byte("21.5"), QoS: 1})

	snapshot := b.stats.Snapshot()
	if snapshot["received"] != uint64(1) {
		t.Errorf("received = %v, want 1", snapshot["received"])
	}
	if snapshot["dropped"] != uint64(1) {
		t.Errorf("dropped = %v, want 1", snapshot["dropped"])
	}
}
