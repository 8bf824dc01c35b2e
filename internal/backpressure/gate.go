// Package backpressure provides admission control for data-collection passes.
package backpressure

import (
	"sync"
	"time"
)

// Rejection reason codes, in order of check.
const (
	ReasonGlobalLimit = "global concurrency limit reached"
	ReasonSourceLimit = "per-source concurrency limit reached"
	ReasonQueueDepth  = "queue depth threshold exceeded"
	ReasonNoTokens    = "no admission tokens available"
)

// Config controls the gate's thresholds.
type Config struct {
	MaxTokens              float64
	RefillRatePerSecond    float64
	MaxConcurrentGlobal    int
	MaxConcurrentPerSource int
	MaxQueueDepth          int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:              10,
		RefillRatePerSecond:    0.5,
		MaxConcurrentGlobal:    5,
		MaxConcurrentPerSource: 2,
		MaxQueueDepth:          50,
	}
}

// Admission is the result of a CanStart check. A rejection is not an error;
// RetryAfter suggests when to ask again.
type Admission struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// Gate is a process-wide admission gate combining a token bucket with
// concurrency ceilings. Check-and-consume is a single critical section so
// concurrent callers cannot race past the limits.
type Gate struct {
	mu sync.Mutex

	cfg          Config
	tokens       float64
	lastRefill   time.Time
	activeGlobal int
	activeSource map[string]int
	queueDepth   int

	now func() time.Time
}

// NewGate creates a gate with a full bucket.
func NewGate(cfg Config) *Gate {
	g := &Gate{
		cfg:          cfg,
		activeSource: make(map[string]int),
		now:          time.Now,
	}
	g.tokens = cfg.MaxTokens
	g.lastRefill = g.now()
	return g
}

// WithClock sets a custom clock for deterministic tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	g.lastRefill = now()
	return g
}

// refillLocked applies lazy token refill. Caller must hold g.mu.
// tokens = min(max, tokens + elapsed*rate); refill is monotonic.
func (g *Gate) refillLocked() {
	now := g.now()
	elapsed := now.Sub(g.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	g.tokens += elapsed * g.cfg.RefillRatePerSecond
	if g.tokens > g.cfg.MaxTokens {
		g.tokens = g.cfg.MaxTokens
	}
	g.lastRefill = now
}

// CanStart checks admission for a collection pass. On success it consumes
// one token AND reserves the concurrency slot in the same critical section,
// so two concurrent callers can never both slip under a ceiling. Checks run
// in order: global ceiling, per-source ceiling, queue depth, token
// availability. RecordComplete releases the slot.
func (g *Gate) CanStart(sourceID string) Admission {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refillLocked()

	if g.cfg.MaxConcurrentGlobal > 0 && g.activeGlobal >= g.cfg.MaxConcurrentGlobal {
		return Admission{Reason: ReasonGlobalLimit, RetryAfter: time.Second}
	}
	if g.cfg.MaxConcurrentPerSource > 0 && g.activeSource[sourceID] >= g.cfg.MaxConcurrentPerSource {
		return Admission{Reason: ReasonSourceLimit, RetryAfter: time.Second}
	}
	if g.cfg.MaxQueueDepth > 0 && g.queueDepth >= g.cfg.MaxQueueDepth {
		return Admission{Reason: ReasonQueueDepth, RetryAfter: 5 * time.Second}
	}
	if g.tokens < 1 {
		return Admission{Reason: ReasonNoTokens, RetryAfter: g.timeToNextTokenLocked()}
	}

	g.tokens--
	g.activeGlobal++
	g.activeSource[sourceID]++
	return Admission{Allowed: true}
}

// timeToNextTokenLocked returns the wait until one full token is available.
func (g *Gate) timeToNextTokenLocked() time.Duration {
	if g.cfg.RefillRatePerSecond <= 0 {
		return time.Minute
	}
	deficit := 1 - g.tokens
	if deficit < 0 {
		deficit = 0
	}
	return time.Duration(deficit / g.cfg.RefillRatePerSecond * float64(time.Second))
}

// RecordComplete releases the concurrency slot reserved by an admitted
// CanStart. Completion never drives a counter below zero.
func (g *Gate) RecordComplete(sourceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.activeGlobal > 0 {
		g.activeGlobal--
	}
	if g.activeSource[sourceID] > 0 {
		g.activeSource[sourceID]--
	}
}

// SetQueueDepth updates the observed queue depth used by the gate.
func (g *Gate) SetQueueDepth(depth int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if depth < 0 {
		depth = 0
	}
	g.queueDepth = depth
}

// UnderBackpressure is a read-only soft-status check at 80% of the hard
// thresholds, for monitoring only. It does not refill or consume tokens.
func (g *Gate) UnderBackpressure() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cfg.MaxConcurrentGlobal > 0 && float64(g.activeGlobal) >= 0.8*float64(g.cfg.MaxConcurrentGlobal) {
		return true
	}
	if g.cfg.MaxQueueDepth > 0 && float64(g.queueDepth) >= 0.8*float64(g.cfg.MaxQueueDepth) {
		return true
	}
	if g.cfg.MaxTokens > 0 && g.tokens <= 0.2*g.cfg.MaxTokens {
		return true
	}
	return false
}

// Snapshot is a point-in-time view of the gate's counters.
type Snapshot struct {
	Tokens     float64
	InFlight   int
	QueueDepth int
}

// CurrentSnapshot reports the gate's counters for metrics export. It does
// not refill or consume tokens.
func (g *Gate) CurrentSnapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Tokens:     g.tokens,
		InFlight:   g.activeGlobal,
		QueueDepth: g.queueDepth,
	}
}

// Reset restores the gate to its initial state. For test isolation.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = g.cfg.MaxTokens
	g.lastRefill = g.now()
	g.activeGlobal = 0
	g.activeSource = make(map[string]int)
	g.queueDepth = 0
}
