// Package registry holds the router's live view of nodes: capability
// admission, heartbeat freshness, and health-driven cooldown (spec §4.4).
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

var ErrNodeNotFound = errors.New("node not found")

// Health tracks a node's recent outcomes for cooldown decisions.
type Health struct {
	Successes           int
	Failures            int
	ConsecutiveFailures int
	LastFailureMs       int64
	LastSuccessMs       int64
}

// Config tunes cooldown and liveness thresholds (spec §4.4 defaults).
type Config struct {
	CooldownThreshold int           // consecutive failures before cooldown (default 3)
	CooldownBaseMs    int64         // default 10s
	CooldownCapMs     int64         // default 10min
	HeartbeatTTL      time.Duration // default 60s
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		CooldownThreshold: 3,
		CooldownBaseMs:    10_000,
		CooldownCapMs:     10 * 60_000,
		HeartbeatTTL:      60 * time.Second,
	}
}

// Registry is the thread-safe, in-memory node registry.
type Registry struct {
	mu          sync.RWMutex
	cfg         Config
	nodes       map[string]*wire.Node
	admissions  map[string]wire.NodeAdmission
	cooldownUntilMs map[string]int64
	health      map[string]*Health
}

// New constructs an empty Registry.
func New(cfg Config) *Registry {
	return &Registry{
		cfg:             cfg,
		nodes:           make(map[string]*wire.Node),
		admissions:      make(map[string]wire.NodeAdmission),
		cooldownUntilMs: make(map[string]int64),
		health:          make(map[string]*Health),
	}
}

// Admit records an admission decision for a manifest and, if eligible,
// installs the resulting Node; an ineligible decision is recorded without
// installing a node. POST /nodes, the only production caller, rejects a
// manifest that fails structural or signature checks with an error and
// does not record an admission for it.
func (r *Registry) Admit(manifest wire.NodeManifest, admission wire.NodeAdmission, manifestHash string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.admissions[manifest.NodeID] = admission
	if !admission.Eligible {
		return
	}
	r.nodes[manifest.NodeID] = &wire.Node{
		NodeID:       manifest.NodeID,
		KeyID:        manifest.KeyID,
		Endpoint:     manifest.Endpoint,
		Region:       manifest.Region,
		Capacity:     manifest.Capacity,
		Capabilities: manifest.Capabilities,
		ManifestHash: manifestHash,
	}
	if _, ok := r.health[manifest.NodeID]; !ok {
		r.health[manifest.NodeID] = &Health{}
	}
}

// Heartbeat refreshes a node's liveness timestamp.
func (r *Registry) Heartbeat(nodeID string, nowMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return ErrNodeNotFound
	}
	n.LastHeartbeatMs = nowMs
	return nil
}

// Get returns a copy of a node's current record.
func (r *Registry) Get(nodeID string) (wire.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return wire.Node{}, false
	}
	return *n, true
}

// List returns a snapshot of all registered nodes.
func (r *Registry) List() []wire.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]wire.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, *n)
	}
	return out
}

// Active returns the nodes eligible for scheduling: admitted, not cooling
// down, and heartbeated within the TTL (spec §4.4).
func (r *Registry) Active(nowMs int64) []wire.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ttlMs := r.cfg.HeartbeatTTL.Milliseconds()
	out := make([]wire.Node, 0, len(r.nodes))
	for id, n := range r.nodes {
		if admission, ok := r.admissions[id]; ok && !admission.Eligible {
			continue
		}
		if until, cooling := r.cooldownUntilMs[id]; cooling && nowMs < until {
			continue
		}
		if nowMs-n.LastHeartbeatMs >= ttlMs {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// AdjustLoad changes a node's currentLoad by delta, clamped to
// [0, maxConcurrent] (invariant: 0 <= currentLoad <= maxConcurrent).
func (r *Registry) AdjustLoad(nodeID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return ErrNodeNotFound
	}
	next := n.Capacity.CurrentLoad + delta
	if next < 0 {
		next = 0
	}
	if next > n.Capacity.MaxConcurrent {
		next = n.Capacity.MaxConcurrent
	}
	n.Capacity.CurrentLoad = next
	return nil
}

// RecordSuccess resets a node's consecutive-failure streak.
func (r *Registry) RecordSuccess(nodeID string, nowMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.healthLocked(nodeID)
	h.Successes++
	h.ConsecutiveFailures = 0
	h.LastSuccessMs = nowMs
	delete(r.cooldownUntilMs, nodeID)
}

// RecordFailure increments the failure streak and, once it crosses
// CooldownThreshold, places the node into exponential-backoff cooldown:
// min(baseMs * 2^(K-3), capMs) (spec §4.4).
func (r *Registry) RecordFailure(nodeID string, nowMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.healthLocked(nodeID)
	h.Failures++
	h.ConsecutiveFailures++
	h.LastFailureMs = nowMs

	k := h.ConsecutiveFailures
	if k < r.cfg.CooldownThreshold {
		return
	}
	shift := k - r.cfg.CooldownThreshold
	if shift > 20 {
		shift = 20 // guard against overflow from a pathologically long streak
	}
	backoff := r.cfg.CooldownBaseMs << shift
	if backoff > r.cfg.CooldownCapMs || backoff <= 0 {
		backoff = r.cfg.CooldownCapMs
	}
	r.cooldownUntilMs[nodeID] = nowMs + backoff
}

func (r *Registry) healthLocked(nodeID string) *Health {
	h, ok := r.health[nodeID]
	if !ok {
		h = &Health{}
		r.health[nodeID] = h
	}
	return h
}

// Health returns a copy of a node's health counters.
func (r *Registry) Health(nodeID string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.health[nodeID]
	if !ok {
		return Health{}, false
	}
	return *h, true
}

// CooldownUntil returns the cooldown expiry for a node, if any.
func (r *Registry) CooldownUntil(nodeID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	until, ok := r.cooldownUntilMs[nodeID]
	return until, ok
}

// Snapshot captures all mutable state for persistence (spec §4.9).
type Snapshot struct {
	Nodes           map[string]wire.Node
	Admissions      map[string]wire.NodeAdmission
	CooldownUntilMs map[string]int64
	Health          map[string]Health
}

// Snapshot returns a deep-enough copy of current state for the
// persistence component to serialize.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Nodes:           make(map[string]wire.Node, len(r.nodes)),
		Admissions:      make(map[string]wire.NodeAdmission, len(r.admissions)),
		CooldownUntilMs: make(map[string]int64, len(r.cooldownUntilMs)),
		Health:          make(map[string]Health, len(r.health)),
	}
	for k, v := range r.nodes {
		s.Nodes[k] = *v
	}
	for k, v := range r.admissions {
		s.Admissions[k] = v
	}
	for k, v := range r.cooldownUntilMs {
		s.CooldownUntilMs[k] = v
	}
	for k, v := range r.health {
		s.Health[k] = *v
	}
	return s
}

// Restore replaces current state with a previously captured Snapshot
// (spec §4.9 startup load).
func (r *Registry) Restore(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = make(map[string]*wire.Node, len(s.Nodes))
	for k, v := range s.Nodes {
		n := v
		r.nodes[k] = &n
	}
	r.admissions = s.Admissions
	if r.admissions == nil {
		r.admissions = make(map[string]wire.NodeAdmission)
	}
	r.cooldownUntilMs = s.CooldownUntilMs
	if r.cooldownUntilMs == nil {
		r.cooldownUntilMs = make(map[string]int64)
	}
	r.health = make(map[string]*Health, len(s.Health))
	for k, v := range s.Health {
		h := v
		r.health[k] = &h
	}
}
