//file: internal/rule/loopguard.go
package rule

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

// DefaultLoopTTL is the default retention window for loop fingerprints.
// It needs to cover the cross-broker round-trip of a forwarded message,
// not message content semantics.
const DefaultLoopTTL = 5 * time.Second

// Fingerprint is the derived key identifying a forwarded message for
// loop-suppression purposes.
type Fingerprint uint64

// String formats the fingerprint for log records.
func (f Fingerprint) String() string {
	return strconv.FormatUint(uint64(f), 16)
}

// NewFingerprint derives a fingerprint from a message's topic, payload
// and QoS. The source side is deliberately excluded: a message the bridge
// published on far must suppress the identical message arriving back on
// far, and equally an echo observed on near.
func NewFingerprint(topic string, payload []byte, qos byte) Fingerprint {
	h := fnv.New64a()
	h.Write([]byte(topic))
	h.Write([]byte{0, qos})
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(payload)))
	h.Write(n[:])
	h.Write(payload)
	return Fingerprint(h.Sum64())
}

// LoopGuard suppresses re-forwarding of messages the bridge itself just
// published. Entries expire after a short TTL; eviction happens lazily on
// lookup and via a background sweep so the cache stays bounded under
// sustained traffic.
//
// This is a heuristic: two coincidentally identical messages inside the
// TTL window are indistinguishable from a loop and the second is dropped.
type LoopGuard struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[Fingerprint]time.Time
	now     func() time.Time
}

// NewLoopGuard creates a loop guard with the given TTL. A non-positive
// TTL falls back to DefaultLoopTTL.
func NewLoopGuard(ttl time.Duration) *LoopGuard {
	if ttl <= 0 {
		ttl = DefaultLoopTTL
	}
	return &LoopGuard{
		ttl:     ttl,
		entries: make(map[Fingerprint]time.Time),
		now:     time.Now,
	}
}

// Record stamps a fingerprint. Called by the forwarder immediately after
// a successful publish.
func (g *LoopGuard) Record(fp Fingerprint) {
	g.mu.Lock()
	g.entries[fp] = g.now()
	g.mu.Unlock()
}

// ShouldSuppress reports whether a fingerprint was recorded within the
// TTL window. A stale entry found on lookup is evicted.
func (g *LoopGuard) ShouldSuppress(fp Fingerprint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	at, ok := g.entries[fp]
	if !ok {
		return false
	}
	if g.now().Sub(at) > g.ttl {
		delete(g.entries, fp)
		return false
	}
	return true
}

// Len returns the number of live entries, counting stale ones not yet
// swept.
func (g *LoopGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Run sweeps stale entries at half-TTL cadence until the context is
// cancelled.
func (g *LoopGuard) Run(ctx context.Context) {
	interval := g.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *LoopGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.ttl)
	for fp, at := range g.entries {
		if at.Before(cutoff) {
			delete(g.entries, fp)
		}
	}
}
