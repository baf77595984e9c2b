package federation

import (
	"sort"
	"sync"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// LambdaDefault is the ETA weight in the award-scoring formula
// priceMsat + λ·etaMs (spec §4.7 default).
const LambdaDefault = 1e-3

// AuctionTimeoutMsDefault bounds bid collection; an RFB deadline that
// falls earlier shortens it (spec §4.7 default).
const AuctionTimeoutMsDefault = 500

// Auction collects bids for one jobId until closed, then picks a winner.
type Auction struct {
	mu      sync.Mutex
	jobID   string
	closed  bool
	bids    []wire.JobBid
	trusts  map[string]float64 // routerId -> trustScore, for tie-break
}

func NewAuction(jobID string) *Auction {
	return &Auction{jobID: jobID, trusts: make(map[string]float64)}
}

// AddBid records a bid if the auction is still open and the bid respects
// maxPriceMsat; trustScore is carried separately from the directory for
// tie-breaking since JobBid itself has no trust field.
func (a *Auction) AddBid(bid wire.JobBid, maxPriceMsat int64, trustScore float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || bid.JobID != a.jobID {
		return false
	}
	if bid.PriceMsat > maxPriceMsat {
		return false
	}
	a.bids = append(a.bids, bid)
	a.trusts[bid.RouterID] = trustScore
	return true
}

// Close stops accepting further bids.
func (a *Auction) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// Winner scores every bid as priceMsat + λ·etaMs (lower wins), tie-breaking
// by higher trustScore then lexicographically smaller routerId (spec
// §4.7). Returns false if no bids were received ("CANCEL" per spec).
func (a *Auction) Winner(lambda float64) (wire.JobBid, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.bids) == 0 {
		return wire.JobBid{}, false
	}

	type scored struct {
		bid   wire.JobBid
		score float64
	}
	scoredList := make([]scored, len(a.bids))
	for i, b := range a.bids {
		scoredList[i] = scored{bid: b, score: float64(b.PriceMsat) + lambda*float64(b.EtaMs)}
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].score != scoredList[j].score {
			return scoredList[i].score < scoredList[j].score
		}
		ti := a.trusts[scoredList[i].bid.RouterID]
		tj := a.trusts[scoredList[j].bid.RouterID]
		if ti != tj {
			return ti > tj
		}
		return scoredList[i].bid.RouterID < scoredList[j].bid.RouterID
	})
	return scoredList[0].bid, true
}

// BuildAward constructs the AWARD payload for a winning bid (spec §8
// property 5: acceptedPriceMsat ≤ RFB.maxPriceMsat, awardExpiry > now).
func BuildAward(winner wire.JobBid, awardTTLMs, nowMs int64) wire.Award {
	return wire.Award{
		JobID:             winner.JobID,
		RouterID:          winner.RouterID,
		AcceptedPriceMsat: winner.PriceMsat,
		AwardExpiryMs:     nowMs + awardTTLMs,
	}
}
