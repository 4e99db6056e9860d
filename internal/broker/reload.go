//file: internal/broker/reload.go
package broker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"mqtt-span-bridge/internal/logger"
	"mqtt-span-bridge/internal/metrics"
	"mqtt-span-bridge/internal/rule"
	"mqtt-span-bridge/internal/stats"
)

// ReloadController replaces the active rule set at runtime without
// severing either connection. A reload either fully commits (new rule
// set visible, both sides' subscriptions matching it) or fully fails
// leaving the previous rule set and subscriptions untouched.
type ReloadController struct {
	loader    *rule.Loader
	rulesPath string
	subs      map[rule.Side]*SubscriptionManager
	active    *atomic.Pointer[rule.RuleSet]
	logger    *logger.Logger
	metrics   *metrics.Metrics
	stats     *stats.BridgeStats

	mu sync.Mutex // one reload at a time
}

// NewReloadController creates a reload controller over the shared active
// rule set pointer and both sides' subscription managers.
func NewReloadController(loader *rule.Loader, rulesPath string, near, far *SubscriptionManager, active *atomic.Pointer[rule.RuleSet], log *logger.Logger, m *metrics.Metrics, st *stats.BridgeStats) *ReloadController {
	return &ReloadController{
		loader:    loader,
		rulesPath: rulesPath,
		subs: map[rule.Side]*SubscriptionManager{
			rule.SideNear: near,
			rule.SideFar:  far,
		},
		active:  active,
		logger:  log,
		metrics: m,
		stats:   st,
	}
}

// Reload runs the live replacement protocol:
//
//  1. load and validate the candidate rule set; a load failure is a
//     no-op, the active set stays as it is
//  2. compute each side's desired subscriptions from the candidate
//  3. apply the diff on near, then on far
//  4. if far fails after near succeeded, roll near back to its prior
//     set and report failure without swapping
//  5. only after both sides converge, swap the active rule set pointer
//     and bump the version
func (rc *ReloadController) Reload() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	prev := rc.active.Load()

	candidate, err := rc.loader.Load(rc.rulesPath)
	if err != nil {
		rc.fail("rules load failed", err)
		return err
	}

	nearPrior := rc.subs[rule.SideNear].Current()

	if err := rc.subs[rule.SideNear].Apply(DesiredSubscriptions(candidate, rule.SideNear)); err != nil {
		rc.fail("near subscription update failed", err)
		return err
	}

	if err := rc.subs[rule.SideFar].Apply(DesiredSubscriptions(candidate, rule.SideFar)); err != nil {
		// Roll near back to its prior set so both sides still serve the
		// old rule set. If the rollback itself fails, the manager keeps
		// the connection's actual state and the next reconnect resync
		// repairs it.
		if rbErr := rc.subs[rule.SideNear].Apply(nearPrior); rbErr != nil {
			rc.logger.Error("near rollback failed after far apply error",
				"error", rbErr)
		}
		rc.fail("far subscription update failed", err)
		return err
	}

	var version uint64 = 1
	if prev != nil {
		version = prev.Version + 1
	}
	rc.active.Store(candidate.WithVersion(version))

	rc.stats.IncReloads()
	if rc.metrics != nil {
		rc.metrics.IncReloads("success")
		rc.metrics.SetRulesActive(float64(len(candidate.Rules)))
		rc.metrics.SetRuleSetVersion(float64(version))
	}

	rc.logger.Info("rules reloaded",
		"version", version,
		"rules", len(candidate.Rules))

	return nil
}

func (rc *ReloadController) fail(msg string, err error) {
	rc.logger.Error(fmt.Sprintf("reload aborted: %s", msg), "error", err)
	if rc.metrics != nil {
		rc.metrics.IncReloads("failure")
	}
}
