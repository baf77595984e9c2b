// Package scheduler selects the best node for a quote or inference
// request among the currently active, capable nodes (spec §4.5).
package scheduler

import (
	"sort"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// Reason names why no node could be selected.
type Reason string

const (
	ReasonNoCapableNode      Reason = "no-capable-node"
	ReasonCapacityExhausted  Reason = "capacity-exhausted"
	ReasonConstraintUnmet    Reason = "constraint-unmet"
)

// Weights tunes the scoring formula (spec §4.5 defaults).
type Weights struct {
	Price float64
	Load  float64
	Trust float64
}

// DefaultWeights returns the spec's defaults: (w_p, w_l, w_t) = (1.0, 0.5, 0.2).
func DefaultWeights() Weights {
	return Weights{Price: 1.0, Load: 0.5, Trust: 0.2}
}

const epsilon = 1e-9

// Request is the subset of a quote/infer request the scheduler needs.
type Request struct {
	ModelID             string
	InputTokensEstimate int
	OutputTokensEstimate int
	Constraints         wire.Constraints
}

// Result is the scheduler's outcome.
type Result struct {
	Selected *wire.Node
	Reason   Reason
}

// Select filters nodes to those capable of serving req, then scores and
// picks the highest-scoring candidate (spec §4.5).
func Select(nodes []wire.Node, req Request, weights Weights) Result {
	candidates := filter(nodes, req)
	if len(candidates) == 0 {
		return Result{Reason: classifyEmptyReason(nodes, req)}
	}

	type scored struct {
		node  wire.Node
		score float64
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, n := range candidates {
		scoredList = append(scoredList, scored{node: n, score: score(n, req, weights)})
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].score != scoredList[j].score {
			return scoredList[i].score > scoredList[j].score
		}
		if scoredList[i].node.Capacity.CurrentLoad != scoredList[j].node.Capacity.CurrentLoad {
			return scoredList[i].node.Capacity.CurrentLoad < scoredList[j].node.Capacity.CurrentLoad
		}
		return scoredList[i].node.NodeID < scoredList[j].node.NodeID
	})

	winner := scoredList[0].node
	return Result{Selected: &winner}
}

func filter(nodes []wire.Node, req Request) []wire.Node {
	out := make([]wire.Node, 0, len(nodes))
	for _, n := range nodes {
		if !supportsModel(n, req.ModelID) {
			continue
		}
		if !satisfiesConstraints(n, req) {
			continue
		}
		if n.Capacity.CurrentLoad >= n.Capacity.MaxConcurrent {
			continue
		}
		out = append(out, n)
	}
	return out
}

func classifyEmptyReason(nodes []wire.Node, req Request) Reason {
	anyCapable := false
	anySatisfying := false
	for _, n := range nodes {
		if !supportsModel(n, req.ModelID) {
			continue
		}
		anyCapable = true
		if satisfiesConstraints(n, req) {
			anySatisfying = true
		}
	}
	if !anyCapable {
		return ReasonNoCapableNode
	}
	if !anySatisfying {
		return ReasonConstraintUnmet
	}
	return ReasonCapacityExhausted
}

func supportsModel(n wire.Node, modelID string) bool {
	for _, c := range n.Capabilities {
		if c.ModelID == modelID {
			return true
		}
	}
	return false
}

func satisfiesConstraints(n wire.Node, req Request) bool {
	c := req.Constraints
	if len(c.Regions) > 0 {
		found := false
		for _, r := range c.Regions {
			if r == n.Region {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.MinTrustScore != nil {
		trust := 0.0
		if n.TrustScore != nil {
			trust = *n.TrustScore
		}
		if trust < *c.MinTrustScore {
			return false
		}
	}
	if c.MaxPrice != nil && price(n, req) > *c.MaxPrice {
		return false
	}
	return true
}

func capabilityFor(n wire.Node, modelID string) (wire.Capability, bool) {
	for _, c := range n.Capabilities {
		if modelID == "" || c.ModelID == modelID {
			return c, true
		}
	}
	return wire.Capability{}, false
}

// price computes the estimated cost for req against node's capability for
// req.ModelID (spec §4.5 formula).
func price(n wire.Node, req Request) float64 {
	cap, ok := capabilityFor(n, req.ModelID)
	if !ok {
		return 0
	}
	switch cap.Pricing.Unit {
	case wire.PricingUnitToken:
		return cap.Pricing.InputRate*float64(req.InputTokensEstimate) + cap.Pricing.OutputRate*float64(req.OutputTokensEstimate)
	case wire.PricingUnitSecond:
		latencyMs := int64(0)
		if cap.LatencyEstimateMs != nil {
			latencyMs = *cap.LatencyEstimateMs
		}
		return cap.Pricing.InputRate * (float64(latencyMs) / 1000.0)
	default:
		return 0
	}
}

func score(n wire.Node, req Request, w Weights) float64 {
	p := price(n, req)
	loadFactor := 0.0
	if n.Capacity.MaxConcurrent > 0 {
		loadFactor = float64(n.Capacity.CurrentLoad) / float64(n.Capacity.MaxConcurrent)
	}
	trust := 0.0
	if n.TrustScore != nil {
		trust = *n.TrustScore / 100.0
	}
	return w.Price*(1.0/(p+epsilon)) + w.Load*(1.0-loadFactor) + w.Trust*trust
}
