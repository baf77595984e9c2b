// Package envelope implements the signed Envelope[T] wire format every
// actor in the marketplace speaks: canonical serialization, signing, and
// verification for the Ed25519 and Schnorr key schemes.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// CanonicalBytes produces the exact signing input for an envelope: the
// UTF-8 bytes of stable_json({payload, nonce, ts, keyId}) with map keys
// sorted lexicographically, no HTML escaping, and no trailing newline.
//
// The payload is round-tripped through json.Marshal/Unmarshal into a
// generic map so that Go's default (alphabetical) map-key ordering does
// the sorting for us, matching the teacher's CanonicalMarshal convention.
func CanonicalBytes[T any](payload T, nonce string, tsMs int64, keyID string) ([]byte, error) {
	payloadRaw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var payloadAny any
	if err := json.Unmarshal(payloadRaw, &payloadAny); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	view := map[string]any{
		"payload": payloadAny,
		"nonce":   nonce,
		"ts":      tsMs,
		"keyId":   keyID,
	}
	return canonicalMarshal(view)
}

// CanonicalValue normalizes any JSON-marshalable value into deterministic
// bytes: round-tripped through a generic value so nested map keys sort
// alphabetically, then marshaled without HTML escaping or a trailing
// newline. Used for wire shapes that sign their own struct rather than
// wrapping in Envelope[T] (e.g. RouterControlMessage).
func CanonicalValue(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return canonicalMarshal(generic)
}

// canonicalMarshal marshals v compactly, without HTML escaping, and
// without the trailing newline json.Encoder normally appends.
func canonicalMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical encoding: %w", err)
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// signingBytes computes the canonical signing input for a populated
// envelope (ignoring its Sig field).
func signingBytes[T any](e wire.Envelope[T]) ([]byte, error) {
	return CanonicalBytes(e.Payload, e.Nonce, e.TsMs, e.KeyID)
}
