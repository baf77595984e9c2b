package payment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/payment"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

func TestBuildSplits_DefaultFeeSplit(t *testing.T) {
	splits := payment.BuildSplits(1000, 250, "node-1", "router-1", nil)
	require.Len(t, splits, 2)
	require.Equal(t, int64(1000), payment.SplitsTotal(splits))

	var nodeAmt, routerAmt int64
	for _, s := range splits {
		switch s.Payee {
		case wire.PayeeTypeNode:
			nodeAmt = s.AmountSats
		case wire.PayeeTypeRouter:
			routerAmt = s.AmountSats
		}
	}
	require.Equal(t, int64(25), routerAmt)
	require.Equal(t, int64(975), nodeAmt)
}

func TestBuildSplits_OverridesAbsorbRounding(t *testing.T) {
	overrides := []payment.SplitOverride{
		{Payee: wire.PayeeTypeNode, PayeeID: "a", AmountSats: 333},
		{Payee: wire.PayeeTypeRouter, PayeeID: "b", AmountSats: 333},
	}
	splits := payment.BuildSplits(1000, 0, "", "", overrides)
	require.Equal(t, int64(1000), payment.SplitsTotal(splits))
	require.Equal(t, int64(667), splits[1].AmountSats)
}

func TestEngine_FullLifecycleHappyPath(t *testing.T) {
	e := payment.New(payment.Config{ChallengeTTLMs: 60_000})
	req := e.IssueChallenge("req-1", 1000, "node-1", "router-1", nil, 0)
	require.Equal(t, wire.PaymentStateChallenged, e.State("req-1", 0))

	for _, split := range req.Splits {
		code, ok := e.AcceptReceipt(wire.PaymentReceipt{
			RequestID:  "req-1",
			PayeeType:  split.Payee,
			PayeeID:    split.PayeeID,
			AmountSats: split.AmountSats,
		}, 100)
		require.True(t, ok, code)
	}

	require.Equal(t, wire.PaymentStatePaid, e.State("req-1", 100))

	ok, already := e.ConsumeIfPaid("req-1", 200)
	require.True(t, ok)
	require.False(t, already)
	require.Equal(t, wire.PaymentStateConsumed, e.State("req-1", 200))

	ok, already = e.ConsumeIfPaid("req-1", 300)
	require.True(t, ok)
	require.True(t, already)
}

func TestEngine_ConsumeBeforePaidFails(t *testing.T) {
	e := payment.New(payment.DefaultConfig())
	e.IssueChallenge("req-1", 1000, "node-1", "router-1", nil, 0)

	ok, already := e.ConsumeIfPaid("req-1", 10)
	require.False(t, ok)
	require.False(t, already)
}

func TestEngine_ExpiredChallengeRejectsReceipt(t *testing.T) {
	e := payment.New(payment.Config{ChallengeTTLMs: 1000})
	req := e.IssueChallenge("req-1", 1000, "node-1", "router-1", nil, 0)

	_, ok := e.AcceptReceipt(wire.PaymentReceipt{
		RequestID:  "req-1",
		PayeeType:  req.Splits[0].Payee,
		PayeeID:    req.Splits[0].PayeeID,
		AmountSats: req.Splits[0].AmountSats,
	}, 5000)
	require.False(t, ok)
	require.Equal(t, wire.PaymentStateExpired, e.State("req-1", 5000))
}

func TestEngine_AmountMismatchRejected(t *testing.T) {
	e := payment.New(payment.DefaultConfig())
	req := e.IssueChallenge("req-1", 1000, "node-1", "router-1", nil, 0)

	code, ok := e.AcceptReceipt(wire.PaymentReceipt{
		RequestID:  "req-1",
		PayeeType:  req.Splits[0].Payee,
		PayeeID:    req.Splits[0].PayeeID,
		AmountSats: req.Splits[0].AmountSats + 1,
	}, 10)
	require.False(t, ok)
	require.Equal(t, payment.ErrAmountMismatch, code)
}

func TestEngine_InvoiceMismatchRejected(t *testing.T) {
	e := payment.New(payment.DefaultConfig())
	req := e.IssueChallenge("req-1", 1000, "node-1", "router-1", nil, 0)
	e.WithInvoice("req-1", "lnbc1invoiceA", "hashA")

	code, ok := e.AcceptReceipt(wire.PaymentReceipt{
		RequestID:  "req-1",
		PayeeType:  req.Splits[0].Payee,
		PayeeID:    req.Splits[0].PayeeID,
		AmountSats: req.Splits[0].AmountSats,
		Invoice:    "lnbc1invoiceB",
	}, 10)
	require.False(t, ok)
	require.Equal(t, payment.ErrInvoiceMismatch, code)
}

func TestEngine_SplitTotalMismatchRejected(t *testing.T) {
	e := payment.New(payment.DefaultConfig())
	req := e.IssueChallenge("req-1", 1000, "node-1", "router-1", nil, 0)

	code, ok := e.AcceptReceipt(wire.PaymentReceipt{
		RequestID:  "req-1",
		PayeeType:  req.Splits[0].Payee,
		PayeeID:    req.Splits[0].PayeeID,
		AmountSats: req.Splits[0].AmountSats,
		Splits: []wire.PaymentSplit{
			{Payee: req.Splits[0].Payee, PayeeID: req.Splits[0].PayeeID, AmountSats: req.Splits[0].AmountSats + 50},
		},
	}, 10)
	require.False(t, ok)
	require.Equal(t, payment.ErrSplitTotalMismatch, code)
}

func TestEngine_PartialReceiptsStayChallenged(t *testing.T) {
	e := payment.New(payment.DefaultConfig())
	req := e.IssueChallenge("req-1", 1000, "node-1", "router-1", nil, 0)

	code, ok := e.AcceptReceipt(wire.PaymentReceipt{
		RequestID:  "req-1",
		PayeeType:  req.Splits[0].Payee,
		PayeeID:    req.Splits[0].PayeeID,
		AmountSats: req.Splits[0].AmountSats,
	}, 10)
	require.True(t, ok, code)
	require.Equal(t, wire.PaymentStateChallenged, e.State("req-1", 10))
}

func TestEngine_RestoreRoundTrips(t *testing.T) {
	e := payment.New(payment.DefaultConfig())
	req := e.IssueChallenge("req-1", 1000, "node-1", "router-1", nil, 0)
	for _, split := range req.Splits {
		e.AcceptReceipt(wire.PaymentReceipt{
			RequestID:  "req-1",
			PayeeType:  split.Payee,
			PayeeID:    split.PayeeID,
			AmountSats: split.AmountSats,
		}, 10)
	}
	e.ConsumeIfPaid("req-1", 20)

	e2 := payment.New(payment.DefaultConfig())
	e2.Restore(e.Challenges(), e.Receipts(), e.ConsumedSnapshot())
	require.Equal(t, wire.PaymentStateConsumed, e2.State("req-1", 20))
}
