package payment

import (
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// SplitOverride lets a caller pin a specific payee's share instead of
// deriving it from feeBps. When any override is given, the overrides alone
// make up the split list; payees without an override get no split.
type SplitOverride struct {
	Payee      wire.PayeeType
	PayeeID    string
	AmountSats int64
}

// BuildSplits is the single function allowed to construct a
// []wire.PaymentSplit (spec §9(b) centralization fix): the default
// partitions amountSats as node=amount*(1-feeBps/10000),
// router=amount*feeBps/10000 (spec §4.6); a non-empty overrides list
// replaces that default entirely, with the last override absorbing any
// difference so that sum(splits) == amountSats.
func BuildSplits(amountSats int64, feeBps int, nodeID, routerID string, overrides []SplitOverride) []wire.PaymentSplit {
	if len(overrides) > 0 {
		return normalizeOverrides(amountSats, overrides)
	}

	routerShare := amountSats * int64(feeBps) / 10000
	nodeShare := amountSats - routerShare
	return []wire.PaymentSplit{
		{Payee: wire.PayeeTypeNode, PayeeID: nodeID, AmountSats: nodeShare},
		{Payee: wire.PayeeTypeRouter, PayeeID: routerID, AmountSats: routerShare},
	}
}

// normalizeOverrides converts caller-pinned overrides into splits, forcing
// the last entry to absorb rounding so the sum stays exact.
func normalizeOverrides(amountSats int64, overrides []SplitOverride) []wire.PaymentSplit {
	out := make([]wire.PaymentSplit, len(overrides))
	var sum int64
	for i, o := range overrides {
		out[i] = wire.PaymentSplit{Payee: o.Payee, PayeeID: o.PayeeID, AmountSats: o.AmountSats}
		sum += o.AmountSats
	}
	if diff := amountSats - sum; diff != 0 && len(out) > 0 {
		out[len(out)-1].AmountSats += diff
	}
	return out
}

// SplitsTotal sums a split list's amounts.
func SplitsTotal(splits []wire.PaymentSplit) int64 {
	var total int64
	for _, s := range splits {
		total += s.AmountSats
	}
	return total
}
