// Package offload implements the backpressure controller (spec §4.8):
// decide whether an inbound /infer should be served locally or offloaded
// to a federated peer by direct selection or auction.
package offload

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/federation"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// directJitterScale bounds the random tie-breaker added to each candidate's
// direct-selection score (spec §4.8 "+ jitter"): small enough to never
// outweigh a genuine price or load difference.
const directJitterScale = 1e-6

// Config tunes offload thresholds (spec §6 env vars).
type Config struct {
	OffloadThreshold float64 // loadFactor at/above which new /infer offloads
	MaxOffloads      int     // concurrent offloads in flight cap
	AuctionTimeoutMs int64
	AwardTTLMs       int64
	Lambda           float64
}

func DefaultConfig() Config {
	return Config{
		OffloadThreshold: 0.85,
		MaxOffloads:      16,
		AuctionTimeoutMs: federation.AuctionTimeoutMsDefault,
		AwardTTLMs:       5_000,
		Lambda:           federation.LambdaDefault,
	}
}

// BidEstimator answers whether and how this router would locally serve an
// offloaded job from a peer — the offload controller's own scheduling
// decision when playing the bidder role.
type BidEstimator func(rfb wire.RequestForBid) (priceMsat, etaMs int64, canServe bool)

// Counters tracks the federation offload metrics named in spec §8
// scenario 5 (attempts/bids/awards/success).
type Counters struct {
	mu       sync.Mutex
	Attempts int64
	Bids     int64
	Awards   int64
	Success  int64
}

func (c *Counters) incr(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

func (c *Counters) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{Attempts: c.Attempts, Bids: c.Bids, Awards: c.Awards, Success: c.Success}
}

// Controller orchestrates both the ingress role (publish RFB, collect
// bids, award) and the responder role (receive RFB from a peer, decide
// whether to bid) for one router.
type Controller struct {
	fed       *federation.Engine
	cfg       Config
	estimator BidEstimator
	log       *slog.Logger

	mu       sync.Mutex
	auctions map[string]*pendingAuction // jobId -> in-flight auction
	inFlight int

	Counters Counters
}

type pendingAuction struct {
	auction      *federation.Auction
	maxPriceMsat int64
}

func New(fed *federation.Engine, cfg Config, estimator BidEstimator, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		fed:       fed,
		cfg:       cfg,
		estimator: estimator,
		log:       log,
		auctions:  make(map[string]*pendingAuction),
	}
	fed.SetAuctionHandlers(c.handleRFB, c.handleBid, nil, nil)
	return c
}

// ShouldOffload reports whether loadFactor crosses the configured
// threshold (spec §4.10 "above offloadThreshold").
func (c *Controller) ShouldOffload(loadFactor float64) bool {
	return loadFactor >= c.cfg.OffloadThreshold
}

// ErrSaturated is returned when the concurrent offload cap (MaxOffloads)
// is already exhausted; local capacity is not consulted.
var ErrSaturated = fmt.Errorf("router-saturated")

// ErrAuctionNoBids is returned when no peer bid before the auction closed.
var ErrAuctionNoBids = fmt.Errorf("auction-no-bids")

// Offload runs one RFB auction to completion for jobID, returning the
// winning peer's routerId and accepted price, or an error. On success the
// caller dispatches the job to that peer and forwards its response
// envelope unchanged to the client (spec §4.8 "transparent mesh").
func (c *Controller) Offload(ctx context.Context, rfb wire.RequestForBid) (wire.Award, error) {
	c.mu.Lock()
	if c.inFlight >= c.cfg.MaxOffloads {
		c.mu.Unlock()
		return wire.Award{}, ErrSaturated
	}
	c.inFlight++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	c.Counters.incr(&c.Counters.Attempts)

	auction := federation.NewAuction(rfb.JobID)
	c.mu.Lock()
	c.auctions[rfb.JobID] = &pendingAuction{auction: auction, maxPriceMsat: rfb.MaxPriceMsat}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.auctions, rfb.JobID)
		c.mu.Unlock()
	}()

	if err := c.fed.PublishRFB(rfb, c.cfg.AuctionTimeoutMs*2); err != nil {
		return wire.Award{}, fmt.Errorf("publish RFB: %w", err)
	}

	timeoutMs := c.cfg.AuctionTimeoutMs
	if rfb.DeadlineMs > 0 {
		nowMs := time.Now().UnixMilli()
		if remaining := rfb.DeadlineMs - nowMs; remaining < timeoutMs {
			timeoutMs = remaining
		}
	}
	if timeoutMs < 0 {
		timeoutMs = 0
	}

	select {
	case <-ctx.Done():
		auction.Close()
		return wire.Award{}, ctx.Err()
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
	}
	auction.Close()

	winner, ok := auction.Winner(c.cfg.Lambda)
	if !ok {
		_ = c.fed.PublishCancel(wire.Cancel{JobID: rfb.JobID, Reason: "no-bids"}, 5_000)
		return wire.Award{}, ErrAuctionNoBids
	}

	award := federation.BuildAward(winner, c.cfg.AwardTTLMs, time.Now().UnixMilli())
	if err := c.fed.PublishAward(award, c.cfg.AwardTTLMs); err != nil {
		return wire.Award{}, fmt.Errorf("publish award: %w", err)
	}
	c.Counters.incr(&c.Counters.Awards)
	c.Counters.incr(&c.Counters.Success)
	return award, nil
}

// SelectDirect implements the spec's Direct peer-selection mode (§4.8):
// among directory peers advertising rfb.ModelID with a price-sheet entry
// for it, pick the one minimizing pricePerToken + 0.1*peer.loadFactor +
// jitter. Unlike Offload, this never publishes anything — no RFB/BID/AWARD
// round trip — so callers try it before falling back to the auction.
func (c *Controller) SelectDirect(rfb wire.RequestForBid, nowMs int64) (wire.PeerRouter, bool) {
	peers := c.fed.Dir.Eligible(nowMs)
	best, found := selectDirectAmong(rfb, peers, func() float64 { return rand.Float64() * directJitterScale })
	if found {
		c.Counters.incr(&c.Counters.Attempts)
		c.Counters.incr(&c.Counters.Success)
	}
	return best, found
}

func selectDirectAmong(rfb wire.RequestForBid, peers []wire.PeerRouter, jitter func() float64) (wire.PeerRouter, bool) {
	var best wire.PeerRouter
	bestScore := math.Inf(1)
	found := false
	for _, p := range peers {
		if !peerServesModel(p, rfb.ModelID) {
			continue
		}
		pricePerToken, ok := peerPriceFor(p, rfb.ModelID)
		if !ok {
			continue
		}
		score := pricePerToken + 0.1*p.LoadSummary.LoadFactor + jitter()
		if !found || score < bestScore {
			best, bestScore, found = p, score, true
		}
	}
	return best, found
}

func peerServesModel(p wire.PeerRouter, modelID string) bool {
	for _, m := range p.CapabilityProfile.ModelIDs {
		if m == modelID {
			return true
		}
	}
	return false
}

// peerPriceFor looks up a peer's advertised pricePerToken for a jobType.
// This system has no separate job-type taxonomy (spec §3 glossary): a
// capability's modelId doubles as its price-sheet jobType.
func peerPriceFor(p wire.PeerRouter, modelID string) (float64, bool) {
	for _, e := range p.PriceSheet {
		if e.JobType == modelID {
			return e.PricePerToken, true
		}
	}
	return 0, false
}

// handleBid feeds an inbound BID into its matching open auction, if any.
func (c *Controller) handleBid(msg wire.RouterControlMessage[wire.JobBid]) {
	c.mu.Lock()
	pa, ok := c.auctions[msg.Payload.JobID]
	c.mu.Unlock()
	if !ok {
		return
	}
	peer, _ := c.fed.Dir.Get(msg.RouterID)
	if pa.auction.AddBid(msg.Payload, pa.maxPriceMsat, peer.TrustScore) {
		c.Counters.incr(&c.Counters.Bids)
	}
}

// handleRFB plays the responder role: a peer is asking this router to bid
// on offloading a job. If the estimator reports local capacity, publish a
// BID back.
func (c *Controller) handleRFB(msg wire.RouterControlMessage[wire.RequestForBid]) {
	if c.estimator == nil {
		return
	}
	priceMsat, etaMs, canServe := c.estimator(msg.Payload)
	if !canServe || priceMsat > msg.Payload.MaxPriceMsat {
		return
	}
	bid := wire.JobBid{JobID: msg.Payload.JobID, RouterID: c.fed.RouterID, PriceMsat: priceMsat, EtaMs: etaMs}
	if err := c.fed.PublishBid(bid, msg.Payload.DeadlineMs-time.Now().UnixMilli()+1_000); err != nil {
		c.log.Warn("publish bid failed", "jobId", msg.Payload.JobID, "err", err)
	}
}
