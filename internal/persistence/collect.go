package persistence

import (
	"github.com/imattau/fed-AI-sub001/internal/federation"
	"github.com/imattau/fed-AI-sub001/internal/payment"
	"github.com/imattau/fed-AI-sub001/internal/registry"
)

// Sources bundles the live components a router assembles a Snapshot from
// and restores them into at startup.
type Sources struct {
	Registry *registry.Registry
	Payment  *payment.Engine
	Peers    *federation.Directory
}

// Collect builds a Snapshot from the current state of all sources. Pass
// this (bound to a *Sources) as the provider to NewStore.
func (s Sources) Collect() Snapshot {
	return Snapshot{
		Registry:           s.Registry.Snapshot(),
		PaymentChallenges:  s.Payment.Challenges(),
		PaymentReceipts:    ReceiptsFromMap(s.Payment.Receipts()),
		ConsumedRequestIDs: s.Payment.ConsumedSnapshot(),
		Peers:              s.Peers.Snapshot(),
	}
}

// Restore applies a loaded Snapshot back into the live components
// (spec §4.9 startup recovery).
func (s Sources) Restore(snap Snapshot) {
	s.Registry.Restore(snap.Registry)
	s.Payment.Restore(snap.PaymentChallenges, snap.ReceiptsAsMap(), snap.ConsumedRequestIDs)
	s.Peers.Restore(snap.Peers)
}
