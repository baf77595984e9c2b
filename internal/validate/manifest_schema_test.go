package validate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/validate"
)

func validManifestPayload() map[string]any {
	return map[string]any{
		"nodeId":   "node-1",
		"keyId":    "node-1-key",
		"endpoint": "http://node-1.local",
		"capacity": map[string]any{"maxConcurrent": float64(4)},
		"capabilities": []any{
			map[string]any{
				"modelId": "echo-model",
				"pricing": map[string]any{"unit": "token", "inputRate": float64(1), "outputRate": float64(2)},
			},
		},
	}
}

func TestNodeManifestSchema_Valid(t *testing.T) {
	require.NoError(t, validate.NodeManifestSchema(validManifestPayload()))
}

func TestNodeManifestSchema_MissingRequiredField(t *testing.T) {
	payload := validManifestPayload()
	delete(payload, "endpoint")
	require.Error(t, validate.NodeManifestSchema(payload))
}

func TestNodeManifestSchema_BadPricingUnit(t *testing.T) {
	payload := validManifestPayload()
	caps := payload["capabilities"].([]any)
	caps[0].(map[string]any)["pricing"].(map[string]any)["unit"] = "dollars"
	require.Error(t, validate.NodeManifestSchema(payload))
}

func TestNodeManifestSchema_NegativeCapacity(t *testing.T) {
	payload := validManifestPayload()
	payload["capacity"].(map[string]any)["maxConcurrent"] = float64(-1)
	require.Error(t, validate.NodeManifestSchema(payload))
}
