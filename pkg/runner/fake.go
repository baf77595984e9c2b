package runner

import (
	"context"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// Fake is a deterministic in-memory Runner for tests: it echoes the
// input prefixed with "echo:" and never fails, matching the behavior the
// spec's end-to-end scenarios assert against.
type Fake struct {
	Models []string
}

func NewFake(models ...string) *Fake {
	if len(models) == 0 {
		models = []string{"echo-model"}
	}
	return &Fake{Models: models}
}

func (f *Fake) ListModels(ctx context.Context) ([]string, error) { return f.Models, nil }

func (f *Fake) Health(ctx context.Context) error { return nil }

func (f *Fake) Estimate(ctx context.Context, req wire.InferenceRequest) (EstimateResult, error) {
	return EstimateResult{LatencyEstimateMs: 50}, nil
}

func (f *Fake) Infer(ctx context.Context, req wire.InferenceRequest) (wire.InferenceResponse, error) {
	return wire.InferenceResponse{
		RequestID: req.RequestID,
		Output:    "echo:" + req.Input,
	}, nil
}
