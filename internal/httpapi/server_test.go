package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/apierr"
	"github.com/imattau/fed-AI-sub001/internal/config"
	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/httpapi"
	"github.com/imattau/fed-AI-sub001/internal/metrics"
	"github.com/imattau/fed-AI-sub001/internal/payment"
	"github.com/imattau/fed-AI-sub001/internal/registry"
	"github.com/imattau/fed-AI-sub001/internal/replay"
	"github.com/imattau/fed-AI-sub001/internal/scheduler"
	"github.com/imattau/fed-AI-sub001/internal/wire"
	"github.com/imattau/fed-AI-sub001/pkg/lnadapter"
	"github.com/imattau/fed-AI-sub001/pkg/runner"
)

const testModelID = "echo-model"

// newTestServer builds a Server with in-memory collaborators and one
// admitted, heartbeated node serving testModelID, matching the teacher's
// httptest.NewServer integration-test convention.
func newTestServer(t *testing.T, requirePayment bool) (*httptest.Server, *registry.Registry, *payment.Engine) {
	t.Helper()

	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	reg := registry.New(registry.DefaultConfig())
	nowMs := time.Now().UnixMilli()
	reg.Admit(wire.NodeManifest{
		NodeID:   "node-1",
		KeyID:    "node-1-key",
		Endpoint: "http://node-1.local",
		Region:   "us-east",
		Capacity: wire.Capacity{MaxConcurrent: 4},
		Capabilities: []wire.Capability{{
			ModelID:   testModelID,
			MaxTokens: 4096,
			Pricing:   wire.Pricing{Unit: wire.PricingUnitToken, InputRate: 1, OutputRate: 2, Currency: "sats"},
		}},
	}, wire.NodeAdmission{Eligible: true}, "hash-1")
	require.NoError(t, reg.Heartbeat("node-1", nowMs))

	payEngine := payment.New(payment.DefaultConfig())

	cfg := &config.Config{RouterID: "router-under-test", RouterRequirePayment: requirePayment}
	srv := httpapi.NewServer(cfg, httpapi.Server{
		Signer:   signer,
		Verifier: envelope.NewVerifier(),
		Replay:   replay.NewMemoryStore(5 * time.Minute),
		Registry: reg,
		Weights:  scheduler.DefaultWeights(),
		Payment:  payEngine,
		Runner:   runner.NewFake(testModelID),
		LN:       lnadapter.NewFake(true),
		Metrics:  metrics.NewRegistry(),
	})

	return httptest.NewServer(srv.Routes()), reg, payEngine
}

// postEnvelope signs payload with signer and POSTs it as a wire.Envelope,
// returning the decoded JSON response body.
func postEnvelope[T any](t *testing.T, ts *httptest.Server, path string, signer envelope.Signer, payload T) (*http.Response, map[string]any) {
	t.Helper()
	env, err := envelope.Sign(signer, payload, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandleQuote_HappyPath(t *testing.T) {
	ts, _, _ := newTestServer(t, false)
	defer ts.Close()

	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	req := wire.QuoteRequest{RequestID: "req-1", ModelID: testModelID, InputTokensEstimate: 10, OutputTokensEstimate: 20, MaxTokens: 30}
	resp, body := postEnvelope(t, ts, "/quote", signer, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	quote, ok := body["quote"].(map[string]any)
	require.True(t, ok, "response missing quote envelope: %v", body)
	payload := quote["payload"].(map[string]any)
	require.Equal(t, "node-1", payload["nodeId"])
}

func TestHandleQuote_NoCapableNode(t *testing.T) {
	ts, _, _ := newTestServer(t, false)
	defer ts.Close()

	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	req := wire.QuoteRequest{RequestID: "req-2", ModelID: "no-such-model", MaxTokens: 10}
	resp, body := postEnvelope(t, ts, "/quote", signer, req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, string(apierr.NoCapableNode), body["code"])
}

func TestHandleInfer_WithoutPaymentRequirement(t *testing.T) {
	ts, _, _ := newTestServer(t, false)
	defer ts.Close()

	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	req := wire.InferenceRequest{RequestID: "req-3", ModelID: testModelID, Input: "hello", MaxTokens: 10}
	resp, body := postEnvelope(t, ts, "/infer", signer, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	inferResp, ok := body["response"].(map[string]any)
	require.True(t, ok, "response missing inference envelope: %v", body)
	payload := inferResp["payload"].(map[string]any)
	require.Equal(t, "echo:hello", payload["output"])
}

func TestHandleInfer_RequiresPaymentChallenge(t *testing.T) {
	ts, _, _ := newTestServer(t, true)
	defer ts.Close()

	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	req := wire.InferenceRequest{RequestID: "req-4", ModelID: testModelID, Input: "hello", MaxTokens: 10}
	resp, body := postEnvelope(t, ts, "/infer", signer, req)
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	challenge, ok := body["payment"].(map[string]any)
	require.True(t, ok, "response missing payment envelope: %v", body)
	payload := challenge["payload"].(map[string]any)
	require.Equal(t, "req-4", payload["requestId"])
}

func TestHandleInfer_RejectsReplayedNonce(t *testing.T) {
	ts, _, _ := newTestServer(t, false)
	defer ts.Close()

	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	env, err := envelope.Sign(signer, wire.InferenceRequest{RequestID: "req-5", ModelID: testModelID, Input: "hi", MaxTokens: 5}, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	first, err := http.Post(ts.URL+"/infer", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Post(ts.URL+"/infer", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer second.Body.Close()
	require.Equal(t, http.StatusUnauthorized, second.StatusCode)

	var problem map[string]any
	require.NoError(t, json.NewDecoder(second.Body).Decode(&problem))
	require.Equal(t, string(apierr.NonceReused), problem["code"])
}

func TestHandleQuote_RegionPolicyDeniesNode(t *testing.T) {
	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	// A server with a region policy denying the only node's region,
	// exercising internal/config.RegionPolicy end to end through /quote.
	reg := registry.New(registry.DefaultConfig())
	nowMs := time.Now().UnixMilli()
	reg.Admit(wire.NodeManifest{
		NodeID:   "node-eu",
		KeyID:    "node-eu-key",
		Endpoint: "http://node-eu.local",
		Region:   "eu-west",
		Capacity: wire.Capacity{MaxConcurrent: 4},
		Capabilities: []wire.Capability{{
			ModelID: testModelID,
			Pricing: wire.Pricing{Unit: wire.PricingUnitToken, InputRate: 1, OutputRate: 1, Currency: "sats"},
		}},
	}, wire.NodeAdmission{Eligible: true}, "hash-eu")
	require.NoError(t, reg.Heartbeat("node-eu", nowMs))

	cfg := &config.Config{
		RouterID:     "router-region-test",
		RegionPolicy: &config.RegionPolicy{DeniedRegions: []string{"eu-west"}},
	}
	s2 := httpapi.NewServer(cfg, httpapi.Server{
		Signer:   signer,
		Verifier: envelope.NewVerifier(),
		Replay:   replay.NewMemoryStore(5 * time.Minute),
		Registry: reg,
		Weights:  scheduler.DefaultWeights(),
		Payment:  payment.New(payment.DefaultConfig()),
		Runner:   runner.NewFake(testModelID),
		Metrics:  metrics.NewRegistry(),
	})
	ts2 := httptest.NewServer(s2.Routes())
	defer ts2.Close()

	req := wire.QuoteRequest{RequestID: "req-6", ModelID: testModelID, MaxTokens: 10}
	resp, body := postEnvelope(t, ts2, "/quote", signer, req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, string(apierr.NoCapableNode), body["code"])
}

func TestHandleNodeAdmit_AdmitsSignedManifest(t *testing.T) {
	ts, reg, _ := newTestServer(t, false)
	defer ts.Close()

	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	manifest := wire.NodeManifest{
		NodeID:   "node-2",
		KeyID:    "node-2-key",
		Endpoint: "http://node-2.local",
		Region:   "us-east",
		Capacity: wire.Capacity{MaxConcurrent: 2},
		Capabilities: []wire.Capability{{
			ModelID: testModelID,
			Pricing: wire.Pricing{Unit: wire.PricingUnitToken, InputRate: 1, OutputRate: 1, Currency: "sats"},
		}},
	}
	resp, body := postEnvelope(t, ts, "/nodes", signer, manifest)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	admission, ok := body["admission"].(map[string]any)
	require.True(t, ok, "response missing admission: %v", body)
	require.Equal(t, true, admission["eligible"])
	require.NotEmpty(t, body["manifestHash"])

	node, ok := reg.Get("node-2")
	require.True(t, ok, "node-2 was not installed into the registry")
	require.Equal(t, "node-2-key", node.KeyID)
	require.NotEmpty(t, node.ManifestHash)
}

func TestHandleNodeAdmit_RejectsSchemaInvalidManifest(t *testing.T) {
	ts, _, _ := newTestServer(t, false)
	defer ts.Close()

	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	env, err := envelope.Sign(signer, map[string]any{"nodeId": "node-3"}, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/nodes", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	require.Equal(t, string(apierr.EnvelopeMalformed), problem["code"])
}

func TestHandleNodes_ListStillWorksOverGET(t *testing.T) {
	ts, _, _ := newTestServer(t, false)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nodes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	nodes, ok := body["nodes"].([]any)
	require.True(t, ok)
	require.Len(t, nodes, 1)
}

func TestHandleHealth(t *testing.T) {
	ts, _, _ := newTestServer(t, false)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
