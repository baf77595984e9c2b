// Package runner is the collaborator contract for the model-serving
// backend each node runs (spec §6 "Collaborator contract — Runner"), plus
// a thin HTTP client implementation with no business logic, grounded on
// the teacher's net/http + context-deadline client conventions in
// core/pkg/api.
package runner

import (
	"context"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// EstimateResult is the runner's cost/latency estimate for a prospective
// inference.
type EstimateResult struct {
	CostEstimate      *float64 `json:"costEstimate,omitempty"`
	LatencyEstimateMs int64    `json:"latencyEstimateMs"`
}

// ClientError wraps a 4xx response from the runner (spec §7
// "runner-client-error" — any 4xx propagates, any 5xx counts as a node
// failure instead).
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return "runner client error: " + e.Body
}

// Runner is the interface every scheduling/dispatch path depends on;
// HTTPRunner is the only production implementation, but tests substitute
// an in-memory fake.
type Runner interface {
	ListModels(ctx context.Context) ([]string, error)
	Health(ctx context.Context) error
	Estimate(ctx context.Context, req wire.InferenceRequest) (EstimateResult, error)
	Infer(ctx context.Context, req wire.InferenceRequest) (wire.InferenceResponse, error)
}
