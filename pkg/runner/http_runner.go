package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// HTTPRunner calls a node's Runner HTTP surface directly.
type HTTPRunner struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPRunner builds a client with a sane default timeout.
func NewHTTPRunner(baseURL string) *HTTPRunner {
	return &HTTPRunner{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *HTTPRunner) ListModels(ctx context.Context) ([]string, error) {
	var out struct {
		Models []string `json:"models"`
	}
	if err := r.doJSON(ctx, http.MethodGet, "/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (r *HTTPRunner) Health(ctx context.Context) error {
	return r.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

func (r *HTTPRunner) Estimate(ctx context.Context, req wire.InferenceRequest) (EstimateResult, error) {
	var out EstimateResult
	err := r.doJSON(ctx, http.MethodPost, "/estimate", req, &out)
	return out, err
}

func (r *HTTPRunner) Infer(ctx context.Context, req wire.InferenceRequest) (wire.InferenceResponse, error) {
	var out wire.InferenceResponse
	err := r.doJSON(ctx, http.MethodPost, "/infer", req, &out)
	return out, err
}

func (r *HTTPRunner) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal runner request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build runner request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("runner-unavailable: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, 10<<20)

	if resp.StatusCode >= 500 {
		data, _ := io.ReadAll(limited)
		return fmt.Errorf("runner-unavailable: status %d: %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(limited)
		return &ClientError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("decode runner response: %w", err)
	}
	return nil
}
