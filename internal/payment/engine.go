// Package payment implements the per-requestId challenge/receipt state
// machine, split construction, and ledger described in spec §4.6:
//
//	NONE -> CHALLENGED -> PAID -> CONSUMED
//	             \-> EXPIRED
package payment

import (
	"sync"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// FailureCode is one of the stable payment error tags (spec §7).
type FailureCode string

const (
	ErrRequestExpired     FailureCode = "payment-request-expired"
	ErrInvoiceMismatch    FailureCode = "payment-invoice-mismatch"
	ErrAmountMismatch     FailureCode = "payment-amount-mismatch"
	ErrSplitTotalMismatch FailureCode = "payment-split-total-mismatch"
	ErrNoSuchChallenge    FailureCode = "payment-request-expired" // no matching outstanding request: treated like expiry
)

// Config tunes challenge issuance defaults (spec §4.6).
type Config struct {
	ChallengeTTLMs int64 // default 60_000
	FeeBps         int   // configurable, default 0 unless set by operator
}

func DefaultConfig() Config {
	return Config{ChallengeTTLMs: 60_000, FeeBps: 0}
}

type challenge struct {
	request     wire.PaymentRequest
	expiresAtMs int64
}

// Engine is the thread-safe payment ledger.
type Engine struct {
	mu         sync.RWMutex
	cfg        Config
	challenges map[string]*challenge // by requestId
	receipts   map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt]
	consumed   map[string]bool // by requestId
}

func New(cfg Config) *Engine {
	return &Engine{
		cfg:        cfg,
		challenges: make(map[string]*challenge),
		receipts:   make(map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt]),
		consumed:   make(map[string]bool),
	}
}

// IssueChallenge constructs and records a PaymentRequest for requestId,
// using the centralized BuildSplits constructor (spec §9(b)). Re-issuing
// for the same requestId while a challenge is outstanding replaces it
// (e.g. after expiry).
func (e *Engine) IssueChallenge(requestID string, amountSats int64, nodeID, routerID string, overrides []SplitOverride, nowMs int64) wire.PaymentRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	req := wire.PaymentRequest{
		RequestID:   requestID,
		AmountSats:  amountSats,
		Splits:      BuildSplits(amountSats, e.cfg.FeeBps, nodeID, routerID, overrides),
		ExpiresAtMs: nowMs + e.cfg.ChallengeTTLMs,
	}
	e.challenges[requestID] = &challenge{request: req, expiresAtMs: req.ExpiresAtMs}
	return req
}

// WithInvoice attaches Lightning adapter invoice details to an already
// issued (but not yet receipted) challenge.
func (e *Engine) WithInvoice(requestID, invoice, paymentHash string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.challenges[requestID]
	if !ok {
		return
	}
	c.request.Invoice = invoice
	c.request.PaymentHash = paymentHash
}

// State computes the current state machine position for requestId (spec
// §4.6). The /infer payment gate switches on this value to decide between
// dispatching and issuing a challenge.
func (e *Engine) State(requestID string, nowMs int64) wire.PaymentState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked(requestID, nowMs)
}

func (e *Engine) stateLocked(requestID string, nowMs int64) wire.PaymentState {
	if e.consumed[requestID] {
		return wire.PaymentStateConsumed
	}
	c, ok := e.challenges[requestID]
	if !ok {
		return wire.PaymentStateNone
	}
	if e.isPaidLocked(requestID, c.request) {
		return wire.PaymentStatePaid
	}
	if nowMs >= c.expiresAtMs {
		return wire.PaymentStateExpired
	}
	return wire.PaymentStateChallenged
}

func (e *Engine) isPaidLocked(requestID string, req wire.PaymentRequest) bool {
	for _, split := range req.Splits {
		key := wire.PaymentLedgerKey{RequestID: requestID, PayeeType: split.Payee, PayeeID: split.PayeeID}
		if _, ok := e.receipts[key]; !ok {
			return false
		}
	}
	return len(req.Splits) > 0
}

// AcceptReceipt validates an inbound receipt against its matching
// outstanding challenge key and, on success, records it (spec §4.6). The
// caller is responsible for envelope signature/replay checks before
// calling this — AcceptReceipt only enforces payment business rules.
func (e *Engine) AcceptReceipt(receipt wire.PaymentReceipt, nowMs int64) (FailureCode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.challenges[receipt.RequestID]
	if !ok {
		return ErrNoSuchChallenge, false
	}
	if nowMs >= c.expiresAtMs {
		return ErrRequestExpired, false
	}

	var matchedSplit *wire.PaymentSplit
	for i := range c.request.Splits {
		s := c.request.Splits[i]
		if s.Payee == receipt.PayeeType && s.PayeeID == receipt.PayeeID {
			matchedSplit = &c.request.Splits[i]
			break
		}
	}
	if matchedSplit == nil {
		return ErrAmountMismatch, false // no such payee on this request
	}
	if matchedSplit.AmountSats != receipt.AmountSats {
		return ErrAmountMismatch, false
	}
	if c.request.Invoice != "" && receipt.Invoice != "" && c.request.Invoice != receipt.Invoice {
		return ErrInvoiceMismatch, false
	}
	if len(receipt.Splits) > 0 && SplitsTotal(receipt.Splits) != receipt.AmountSats {
		return ErrSplitTotalMismatch, false
	}

	key := wire.PaymentLedgerKey{RequestID: receipt.RequestID, PayeeType: receipt.PayeeType, PayeeID: receipt.PayeeID}
	e.receipts[key] = wire.Envelope[wire.PaymentReceipt]{Payload: receipt}
	return "", true
}

// AcceptSignedReceipt is AcceptReceipt for an already-verified envelope,
// retaining the full envelope (including signature) in the ledger so a
// settled receipt can be replayed across restarts with proof intact.
func (e *Engine) AcceptSignedReceipt(env wire.Envelope[wire.PaymentReceipt], nowMs int64) (FailureCode, bool) {
	code, ok := e.AcceptReceipt(env.Payload, nowMs)
	if !ok {
		return code, false
	}
	e.mu.Lock()
	key := wire.PaymentLedgerKey{RequestID: env.Payload.RequestID, PayeeType: env.Payload.PayeeType, PayeeID: env.Payload.PayeeID}
	e.receipts[key] = env
	e.mu.Unlock()
	return "", true
}

// ConsumeIfPaid atomically transitions requestID from PAID to CONSUMED.
// It is idempotent: a second caller for an already-consumed requestId
// gets ok=true, already=true rather than an error, satisfying the
// "exactly one transitions; the other receives success" invariant
// (spec §8 property 4) for same-receipt retries.
func (e *Engine) ConsumeIfPaid(requestID string, nowMs int64) (ok bool, already bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.consumed[requestID] {
		return true, true
	}
	c, exists := e.challenges[requestID]
	if !exists || !e.isPaidLocked(requestID, c.request) {
		return false, false
	}
	e.consumed[requestID] = true
	return true, false
}

// Receipts returns the accepted receipt envelopes, for persistence.
func (e *Engine) Receipts() map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt], len(e.receipts))
	for k, v := range e.receipts {
		out[k] = v
	}
	return out
}

// Challenges returns the outstanding challenges, for persistence.
func (e *Engine) Challenges() map[string]wire.PaymentRequest {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]wire.PaymentRequest, len(e.challenges))
	for k, v := range e.challenges {
		out[k] = v.request
	}
	return out
}

// Restore reloads challenges and receipts from a persisted snapshot
// (spec §4.9), so a saved receipt survives a router restart.
func (e *Engine) Restore(challenges map[string]wire.PaymentRequest, receipts map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt], consumed map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.challenges = make(map[string]*challenge, len(challenges))
	for id, req := range challenges {
		e.challenges[id] = &challenge{request: req, expiresAtMs: req.ExpiresAtMs}
	}
	e.receipts = make(map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt], len(receipts))
	for k, v := range receipts {
		e.receipts[k] = v
	}
	e.consumed = make(map[string]bool, len(consumed))
	for k, v := range consumed {
		e.consumed[k] = v
	}
}

// ConsumedSnapshot returns the set of consumed requestIds, for persistence.
func (e *Engine) ConsumedSnapshot() map[string]bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]bool, len(e.consumed))
	for k, v := range e.consumed {
		out[k] = v
	}
	return out
}
