package stats

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// BridgeStats tracks process-wide bridge counters.
type BridgeStats struct {
	StartTime  time.Time
	Received   uint64
	Forwarded  uint64
	Suppressed uint64
	Dropped    uint64
	Reloads    uint64
}

// NewBridgeStats creates a new stats collector.
func NewBridgeStats() *BridgeStats {
	return &BridgeStats{
		StartTime: time.Now(),
	}
}

// IncReceived counts an inbound message.
func (s *BridgeStats) IncReceived() {
	atomic.AddUint64(&s.Received, 1)
}

// IncForwarded counts a successful forward.
func (s *BridgeStats) IncForwarded() {
	atomic.AddUint64(&s.Forwarded, 1)
}

// IncSuppressed counts a loop-guard suppression.
func (s *BridgeStats) IncSuppressed() {
	atomic.AddUint64(&s.Suppressed, 1)
}

// IncDropped counts a message dropped on publish failure.
func (s *BridgeStats) IncDropped() {
	atomic.AddUint64(&s.Dropped, 1)
}

// IncReloads counts a successful rules reload.
func (s *BridgeStats) IncReloads() {
	atomic.AddUint64(&s.Reloads, 1)
}

// Snapshot returns current statistics.
func (s *BridgeStats) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"uptime":     time.Since(s.StartTime).String(),
		"received":   atomic.LoadUint64(&s.Received),
		"forwarded":  atomic.LoadUint64(&s.Forwarded),
		"suppressed": atomic.LoadUint64(&s.Suppressed),
		"dropped":    atomic.LoadUint64(&s.Dropped),
		"reloads":    atomic.LoadUint64(&s.Reloads),
	}
}

// SnapshotJSON returns stats as JSON.
func (s *BridgeStats) SnapshotJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// Rate calculates the forwarded-message rate since start.
func (s *BridgeStats) Rate() float64 {
	uptime := time.Since(s.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.Forwarded)) / uptime
}
