//file: internal/broker/bridge.go
package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mqtt-span-bridge/config"
	"mqtt-span-bridge/internal/logger"
	"mqtt-span-bridge/internal/metrics"
	"mqtt-span-bridge/internal/rule"
	"mqtt-span-bridge/internal/stats"
)

// Bridge ties the whole engine together: two supervised connections, the
// router with its loop guard, per-side subscription managers, the
// forwarder and the reload controller. The active rule set is an
// atomically-swapped immutable snapshot; every operation takes a local
// reference once so a concurrent reload cannot change behavior
// mid-operation.
type Bridge struct {
	cfg     *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	stats   *stats.BridgeStats

	guard     *rule.LoopGuard
	router    *rule.Router
	loader    *rule.Loader
	active    atomic.Pointer[rule.RuleSet]
	near      *Supervisor
	far       *Supervisor
	subs      map[rule.Side]*SubscriptionManager
	forwarder *Forwarder
	reload    *ReloadController

	reloadSide  rule.Side
	reloadTopic string

	wg sync.WaitGroup
}

// NewBridge builds the bridge from configuration, loading the initial
// rule set (version 1). Invalid configuration or rules are fatal here;
// after startup, rule errors only ever abort reloads.
func NewBridge(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*Bridge, error) {
	b := &Bridge{
		cfg:         cfg,
		logger:      log,
		metrics:     m,
		stats:       stats.NewBridgeStats(),
		guard:       rule.NewLoopGuard(cfg.LoopTTLDuration()),
		loader:      rule.NewLoader(log),
		subs:        make(map[rule.Side]*SubscriptionManager),
		reloadSide:  rule.Side(cfg.Reload.Broker),
		reloadTopic: cfg.Reload.Topic,
	}

	b.router = rule.NewRouter(b.guard, log, m, b.stats)

	initial, err := b.loader.Load(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	b.active.Store(initial.WithVersion(1))

	near, err := NewSupervisor(rule.SideNear, &cfg.Near, log, m, b.handleMessage, func() { b.resync(rule.SideNear) })
	if err != nil {
		return nil, err
	}
	far, err := NewSupervisor(rule.SideFar, &cfg.Far, log, m, b.handleMessage, func() { b.resync(rule.SideFar) })
	if err != nil {
		return nil, err
	}
	b.near, b.far = near, far

	b.subs[rule.SideNear] = NewSubscriptionManager(rule.SideNear, near, log)
	b.subs[rule.SideFar] = NewSubscriptionManager(rule.SideFar, far, log)

	b.forwarder = NewForwarder(near, far, b.guard, log, m, b.stats)
	b.reload = NewReloadController(b.loader, cfg.Rules, b.subs[rule.SideNear], b.subs[rule.SideFar], &b.active, log, m, b.stats)

	if m != nil {
		m.SetRulesActive(float64(len(initial.Rules)))
		m.SetRuleSetVersion(1)
	}

	return b, nil
}

// Start brings both sides up and starts the background loops. Each side
// connects independently with its own retry loop, so one unreachable
// broker does not keep the other side down.
func (b *Bridge) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.guard.Run(ctx)
	}()

	if interval := b.cfg.StatsIntervalDuration(); interval > 0 {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.statsLoop(ctx, interval)
		}()
	}

	for _, s := range []*Supervisor{b.near, b.far} {
		s := s
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := s.Start(ctx); err != nil {
				b.logger.Error("supervisor stopped before connecting",
					"side", string(s.Side()),
					"error", err)
			}
		}()
	}

	b.logger.Info("bridge started",
		"near", b.cfg.Near.URI(),
		"far", b.cfg.Far.URI(),
		"rules", len(b.active.Load().Rules),
		"reloadTopic", b.reloadTopic,
		"reloadSide", string(b.reloadSide))
}

// Close disconnects both sides and waits for background loops to wind
// down. The caller cancels the Start context first.
func (b *Bridge) Close() {
	b.near.Stop()
	b.far.Stop()
	b.wg.Wait()

	if snapshot, err := b.stats.SnapshotJSON(); err == nil {
		b.logger.Info("final bridge stats", "stats", string(snapshot))
	}
}

// Reload runs the live rule replacement protocol. Exposed for the
// SIGHUP path; the reload topic goes through handleMessage.
func (b *Bridge) Reload() error {
	return b.reload.Reload()
}

// ActiveRuleSet returns the current rule set snapshot.
func (b *Bridge) ActiveRuleSet() *rule.RuleSet {
	return b.active.Load()
}

// handleMessage is the dispatch path for every inbound message on either
// side. It runs off the client read loops and may block on the opposite
// side's publish.
func (b *Bridge) handleMessage(msg rule.Inbound) {
	if b.isReloadTrigger(msg) {
		b.logger.Info("reload triggered",
			"side", string(msg.Side),
			"topic", msg.Topic)
		// Payload content is ignored; any message on the trigger topic
		// means "reload".
		_ = b.reload.Reload()
		return
	}

	b.stats.IncReceived()
	if b.metrics != nil {
		b.metrics.IncMessagesReceived(string(msg.Side))
	}

	rs := b.active.Load()
	for _, d := range b.router.Route(msg, rs) {
		b.forwarder.Forward(msg.Side, d)
	}
}

// isReloadTrigger reports whether a message is on the configured reload
// (side, topic) pair. The trigger topic is an exact topic, not a filter,
// and is never routed.
func (b *Bridge) isReloadTrigger(msg rule.Inbound) bool {
	return b.reloadTopic != "" &&
		msg.Side == b.reloadSide &&
		msg.Topic == b.reloadTopic
}

// resync restores a side's full subscription state after a (re)connect:
// the complete desired set for the active rule set, plus the reload
// trigger subscription when this side hosts it.
func (b *Bridge) resync(side rule.Side) {
	if err := b.subs[side].ResyncAll(b.active.Load()); err != nil {
		// The manager keeps the connection's actual state; the next
		// reconnect runs the resync again.
		b.logger.Error("subscription resync failed",
			"side", string(side),
			"error", err)
		return
	}

	if b.reloadTopic != "" && side == b.reloadSide {
		sup := b.near
		if side == rule.SideFar {
			sup = b.far
		}
		if err := sup.Subscribe(b.reloadTopic, 1); err != nil {
			b.logger.Error("failed to subscribe reload topic",
				"side", string(side),
				"topic", b.reloadTopic,
				"error", err)
		}
	}
}

func (b *Bridge) statsLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot, err := b.stats.SnapshotJSON()
			if err != nil {
				continue
			}
			b.logger.Info("bridge stats",
				"stats", string(snapshot),
				"rate", b.stats.Rate())
		}
	}
}
