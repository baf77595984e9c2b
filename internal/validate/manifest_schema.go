package validate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// nodeManifestSchemaURL is an opaque resource identifier for the compiler's
// in-memory resource map; no network fetch ever happens (SPEC_FULL §4.4).
const nodeManifestSchemaURL = "https://fed-ai.schemas.local/node-manifest.schema.json"

const nodeManifestSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["nodeId", "keyId", "endpoint", "capabilities", "capacity"],
  "properties": {
    "nodeId": {"type": "string", "minLength": 1},
    "keyId": {"type": "string", "minLength": 1},
    "endpoint": {"type": "string", "minLength": 1},
    "region": {"type": "string"},
    "capacity": {
      "type": "object",
      "required": ["maxConcurrent"],
      "properties": {
        "maxConcurrent": {"type": "integer", "minimum": 0},
        "currentLoad": {"type": "integer", "minimum": 0}
      }
    },
    "capabilities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["modelId", "pricing"],
        "properties": {
          "modelId": {"type": "string", "minLength": 1},
          "contextWindow": {"type": "integer", "minimum": 0},
          "maxTokens": {"type": "integer", "minimum": 0},
          "latencyEstimateMs": {"type": "integer", "minimum": 0},
          "pricing": {
            "type": "object",
            "required": ["unit"],
            "properties": {
              "unit": {"type": "string", "enum": ["token", "second"]},
              "inputRate": {"type": "number", "minimum": 0},
              "outputRate": {"type": "number", "minimum": 0},
              "currency": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

var (
	nodeManifestSchemaOnce sync.Once
	nodeManifestSchema     *jsonschema.Schema
	nodeManifestSchemaErr  error
)

func compiledNodeManifestSchema() (*jsonschema.Schema, error) {
	nodeManifestSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(nodeManifestSchemaURL, strings.NewReader(nodeManifestSchemaDoc)); err != nil {
			nodeManifestSchemaErr = fmt.Errorf("node manifest schema load: %w", err)
			return
		}
		compiled, err := c.Compile(nodeManifestSchemaURL)
		if err != nil {
			nodeManifestSchemaErr = fmt.Errorf("node manifest schema compile: %w", err)
			return
		}
		nodeManifestSchema = compiled
	})
	return nodeManifestSchema, nodeManifestSchemaErr
}

// NodeManifestSchema runs the declared NodeManifest JSON Schema (SPEC_FULL
// §4.4) against the manifest's decoded JSON form, ahead of the
// signature/eligibility checks every admission must also pass. payload must
// be the generic map produced by decoding the envelope's "payload" field,
// not a typed wire.NodeManifest — jsonschema validates against arbitrary
// input, including fields NodeManifest's Go struct would silently drop.
func NodeManifestSchema(payload map[string]any) error {
	schema, err := compiledNodeManifestSchema()
	if err != nil {
		return err
	}
	return schema.Validate(payload)
}
