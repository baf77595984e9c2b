package federation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// Config tunes announce cadence and auction timing (spec §4.7 defaults).
type Config struct {
	CapsIntervalMs    int64
	PriceIntervalMs   int64
	StatusIntervalMs  int64
	AuctionTimeoutMs  int64
	AwardTTLMs        int64
	Lambda            float64
}

func DefaultConfig() Config {
	return Config{
		CapsIntervalMs:   30_000,
		PriceIntervalMs:  60_000,
		StatusIntervalMs: 5_000,
		AuctionTimeoutMs: AuctionTimeoutMsDefault,
		AwardTTLMs:       5_000,
		Lambda:           LambdaDefault,
	}
}

// Engine ties the peer directory, relay pool, and auction logic together
// for one router (spec §4.7).
type Engine struct {
	RouterID string
	Signer   envelope.Signer
	Verifier envelope.Verifier
	Pool     *Pool
	Dir      *Directory
	cfg      Config
	dedup    *Dedup
	log      *slog.Logger

	lastCapsMessageID string

	onRFB    func(wire.RouterControlMessage[wire.RequestForBid])
	onBid    func(wire.RouterControlMessage[wire.JobBid])
	onAward  func(wire.RouterControlMessage[wire.Award])
	onCancel func(wire.RouterControlMessage[wire.Cancel])
}

// SetAuctionHandlers registers the offload controller's callbacks for
// inbound auction traffic, keeping the federation engine itself ignorant
// of scheduling/backpressure policy.
func (e *Engine) SetAuctionHandlers(
	onRFB func(wire.RouterControlMessage[wire.RequestForBid]),
	onBid func(wire.RouterControlMessage[wire.JobBid]),
	onAward func(wire.RouterControlMessage[wire.Award]),
	onCancel func(wire.RouterControlMessage[wire.Cancel]),
) {
	e.onRFB = onRFB
	e.onBid = onBid
	e.onAward = onAward
	e.onCancel = onCancel
}

func New(routerID string, signer envelope.Signer, verifier envelope.Verifier, pool *Pool, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		RouterID: routerID,
		Signer:   signer,
		Verifier: verifier,
		Pool:     pool,
		Dir:      NewDirectory(),
		cfg:      cfg,
		dedup:    NewDedup(4096),
		log:      log,
	}
}

// Start launches the relay read loops and the periodic announce timers;
// returns when ctx is canceled.
func (e *Engine) Start(ctx context.Context, profile func() wire.CapabilityProfile, prices func() []wire.PriceSheetEntry, load func() wire.LoadSummary) {
	go e.Pool.Run(ctx, e.onFrame)
	go e.announceLoop(ctx, e.cfg.CapsIntervalMs, func() { e.publishCaps(profile()) })
	go e.announceLoop(ctx, e.cfg.PriceIntervalMs, func() { e.publishPrice(prices()) })
	go e.announceLoop(ctx, e.cfg.StatusIntervalMs, func() { e.publishStatus(load()) })
	<-ctx.Done()
}

func (e *Engine) announceLoop(ctx context.Context, intervalMs int64, fn func()) {
	if intervalMs <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (e *Engine) publishCaps(profile wire.CapabilityProfile) {
	msg, err := Build(e.Signer, wire.MsgCapsAnnounce, e.RouterID, profile, e.cfg.CapsIntervalMs*2, e.lastCapsMessageID, time.Now())
	if err != nil {
		e.log.Error("build caps announce failed", "err", err)
		return
	}
	e.lastCapsMessageID = msg.MessageID
	e.publish(wire.MsgCapsAnnounce, msg)
}

func (e *Engine) publishPrice(entries []wire.PriceSheetEntry) {
	msg, err := Build(e.Signer, wire.MsgPriceAnnounce, e.RouterID, entries, e.cfg.PriceIntervalMs*2, "", time.Now())
	if err != nil {
		e.log.Error("build price announce failed", "err", err)
		return
	}
	e.publish(wire.MsgPriceAnnounce, msg)
}

func (e *Engine) publishStatus(load wire.LoadSummary) {
	msg, err := Build(e.Signer, wire.MsgStatusAnnounce, e.RouterID, load, e.cfg.StatusIntervalMs*2, "", time.Now())
	if err != nil {
		e.log.Error("build status announce failed", "err", err)
		return
	}
	e.publish(wire.MsgStatusAnnounce, msg)
}

func (e *Engine) publish(msgType wire.ControlMessageType, msg any) {
	content, err := json.Marshal(msg)
	if err != nil {
		e.log.Error("marshal control message failed", "type", msgType, "err", err)
		return
	}
	if !e.Pool.PublishAll(wire.RelayKind[msgType], string(content)) {
		e.log.Warn("control message accepted by no relay", "type", msgType)
	}
}

// onFrame is the relay pool's generic callback; it determines the message
// kind, decodes into the right T, checks dedup/gap and validity, and
// updates the peer directory. Auction messages (RFB/BID/AWARD/CANCEL) are
// routed to callbacks the caller registers via SetAuctionHandlers.
func (e *Engine) onFrame(relayURL string, kind int, content string) {
	switch kind {
	case wire.RelayKind[wire.MsgCapsAnnounce]:
		dispatchTyped(e, content, func(msg wire.RouterControlMessage[wire.CapabilityProfile]) {
			e.Dir.Observe(msg.RouterID, msg.TimestampMs, func(p *wire.PeerRouter) { p.CapabilityProfile = msg.Payload })
		})
	case wire.RelayKind[wire.MsgPriceAnnounce]:
		dispatchTyped(e, content, func(msg wire.RouterControlMessage[[]wire.PriceSheetEntry]) {
			e.Dir.Observe(msg.RouterID, msg.TimestampMs, func(p *wire.PeerRouter) { p.PriceSheet = msg.Payload })
		})
	case wire.RelayKind[wire.MsgStatusAnnounce]:
		dispatchTyped(e, content, func(msg wire.RouterControlMessage[wire.LoadSummary]) {
			e.Dir.Observe(msg.RouterID, msg.TimestampMs, func(p *wire.PeerRouter) { p.LoadSummary = msg.Payload })
		})
	case wire.RelayKind[wire.MsgRFB]:
		dispatchTyped(e, content, e.dispatchRFB)
	case wire.RelayKind[wire.MsgBid]:
		dispatchTyped(e, content, e.dispatchBid)
	case wire.RelayKind[wire.MsgAward]:
		dispatchTyped(e, content, e.dispatchAward)
	case wire.RelayKind[wire.MsgCancel]:
		dispatchTyped(e, content, e.dispatchCancel)
	}
}

func dispatchTyped[T any](e *Engine, content string, fn func(wire.RouterControlMessage[T])) {
	var msg wire.RouterControlMessage[T]
	if err := json.Unmarshal([]byte(content), &msg); err != nil {
		return
	}
	accept, hasGap := e.dedup.Accept(msg.RouterID, msg.MessageID, msg.PrevMessageID)
	if !accept {
		return
	}
	if hasGap {
		e.log.Warn("federation message gap detected", "router", msg.RouterID, "messageId", msg.MessageID)
	}
	if err := VerifyReceived(e.Verifier, msg, time.Now().UnixMilli()); err != nil {
		e.log.Warn("rejected federation message", "router", msg.RouterID, "type", msg.Type, "err", err)
		return
	}
	fn(msg)
}

func (e *Engine) dispatchRFB(msg wire.RouterControlMessage[wire.RequestForBid]) {
	if e.onRFB != nil {
		e.onRFB(msg)
	}
}

func (e *Engine) dispatchBid(msg wire.RouterControlMessage[wire.JobBid]) {
	if e.onBid != nil {
		e.onBid(msg)
	}
}

func (e *Engine) dispatchAward(msg wire.RouterControlMessage[wire.Award]) {
	if e.onAward != nil {
		e.onAward(msg)
	}
}

func (e *Engine) dispatchCancel(msg wire.RouterControlMessage[wire.Cancel]) {
	if e.onCancel != nil {
		e.onCancel(msg)
	}
}

// PublishRFB signs and fans out a request-for-bid.
func (e *Engine) PublishRFB(rfb wire.RequestForBid, ttlMs int64) error {
	msg, err := Build(e.Signer, wire.MsgRFB, e.RouterID, rfb, ttlMs, "", time.Now())
	if err != nil {
		return err
	}
	e.publish(wire.MsgRFB, msg)
	return nil
}

// PublishBid signs and fans out a bid in response to an RFB.
func (e *Engine) PublishBid(bid wire.JobBid, ttlMs int64) error {
	msg, err := Build(e.Signer, wire.MsgBid, e.RouterID, bid, ttlMs, "", time.Now())
	if err != nil {
		return err
	}
	e.publish(wire.MsgBid, msg)
	return nil
}

// PublishAward signs and fans out the auction's winning award.
func (e *Engine) PublishAward(award wire.Award, ttlMs int64) error {
	msg, err := Build(e.Signer, wire.MsgAward, e.RouterID, award, ttlMs, "", time.Now())
	if err != nil {
		return err
	}
	e.publish(wire.MsgAward, msg)
	return nil
}

// PublishCancel signs and fans out a CANCEL for an RFB with no usable bids.
func (e *Engine) PublishCancel(cancel wire.Cancel, ttlMs int64) error {
	msg, err := Build(e.Signer, wire.MsgCancel, e.RouterID, cancel, ttlMs, "", time.Now())
	if err != nil {
		return err
	}
	e.publish(wire.MsgCancel, msg)
	return nil
}
