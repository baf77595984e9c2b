// Package federation implements the inter-router control bus: peer
// directory, capability/price/status announces, and the request-for-bid
// auction used to offload inference under backpressure (spec §4.7).
package federation

import (
	"sync"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// Directory is the thread-safe peer table, keyed by routerId.
type Directory struct {
	mu    sync.RWMutex
	peers map[string]*wire.PeerRouter
}

func NewDirectory() *Directory {
	return &Directory{peers: make(map[string]*wire.PeerRouter)}
}

// Observe records or refreshes a peer from a received CAPS/PRICE/STATUS
// announce. Peers are never mutated by direct pointer outside this method
// (spec §3 "Ownership").
func (d *Directory) Observe(routerID string, nowMs int64, mutate func(p *wire.PeerRouter)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[routerID]
	if !ok {
		p = &wire.PeerRouter{RouterID: routerID}
		d.peers[routerID] = p
	}
	p.LastSeenMs = nowMs
	mutate(p)
}

// RecordFailure increments a peer's failure count and sets backoffUntilMs,
// mirroring the relay reconnect backoff but for request-level peer
// selection (auction/direct offload skip unreachable peers).
func (d *Directory) RecordFailure(routerID string, backoffUntilMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[routerID]
	if !ok {
		return
	}
	p.Failures++
	p.BackoffUntilMs = backoffUntilMs
}

func (d *Directory) RecordSuccess(routerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.peers[routerID]; ok {
		p.Failures = 0
		p.BackoffUntilMs = 0
	}
}

func (d *Directory) Get(routerID string) (wire.PeerRouter, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.peers[routerID]
	if !ok {
		return wire.PeerRouter{}, false
	}
	return *p, true
}

// Eligible returns peers not currently backing off, for auction/offload
// targeting.
func (d *Directory) Eligible(nowMs int64) []wire.PeerRouter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]wire.PeerRouter, 0, len(d.peers))
	for _, p := range d.peers {
		if p.BackoffUntilMs > nowMs {
			continue
		}
		out = append(out, *p)
	}
	return out
}

func (d *Directory) Snapshot() []wire.PeerRouter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]wire.PeerRouter, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, *p)
	}
	return out
}

func (d *Directory) Restore(peers []wire.PeerRouter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers = make(map[string]*wire.PeerRouter, len(peers))
	for i := range peers {
		p := peers[i]
		d.peers[p.RouterID] = &p
	}
}
