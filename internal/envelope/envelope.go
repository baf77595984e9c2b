package envelope

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// Signer is any keypair that can sign the canonical bytes of an envelope.
// Signing is pure: it mutates no state (spec §4.1).
type Signer interface {
	KeyID() string
	sign(data []byte) (string, error)
}

// Verifier checks a signature against a keyId. Verify never retries a
// failure and returns only a boolean (spec §4.1).
type Verifier interface {
	Verify(keyID, sigHex string, data []byte) bool
}

// multiVerifier resolves the scheme-appropriate Verifier for a keyId.
type multiVerifier struct {
	ed  Ed25519Verifier
	sch SchnorrVerifier
}

// NewVerifier returns a Verifier that dispatches on key encoding, covering
// both supported schemes (spec §4.1).
func NewVerifier() Verifier {
	return multiVerifier{}
}

func (m multiVerifier) Verify(keyID, sigHex string, data []byte) bool {
	switch DetectScheme(keyID) {
	case SchemeEd25519:
		return m.ed.verify(keyID, sigHex, data)
	case SchemeSchnorr:
		return m.sch.verify(keyID, sigHex, data)
	default:
		return false
	}
}

// Sign builds and signs a new Envelope[T] for payload, generating a fresh
// random nonce and stamping the current time.
func Sign[T any](signer Signer, payload T, now time.Time) (wire.Envelope[T], error) {
	nonce, err := randomNonce()
	if err != nil {
		return wire.Envelope[T]{}, err
	}
	e := wire.Envelope[T]{
		Payload: payload,
		Nonce:   nonce,
		TsMs:    now.UnixMilli(),
		KeyID:   signer.KeyID(),
	}
	data, err := signingBytes(e)
	if err != nil {
		return wire.Envelope[T]{}, err
	}
	sig, err := signer.sign(data)
	if err != nil {
		return wire.Envelope[T]{}, fmt.Errorf("sign envelope: %w", err)
	}
	e.Sig = sig
	return e, nil
}

// Verify checks that an envelope's signature matches its claimed keyId. It
// does not check replay or timestamp freshness — callers compose that
// with internal/replay.
func Verify[T any](v Verifier, e wire.Envelope[T]) bool {
	if e.Sig == "" || e.KeyID == "" || e.Nonce == "" {
		return false
	}
	data, err := signingBytes(e)
	if err != nil {
		return false
	}
	return v.Verify(e.KeyID, e.Sig, data)
}

// SignRaw signs arbitrary already-canonicalized bytes, for wire shapes
// that don't go through Envelope[T] (e.g. RouterControlMessage, which
// signs its own struct fields).
func SignRaw(signer Signer, data []byte) (string, error) {
	sig, err := signer.sign(data)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// VerifyRaw checks sigHex against data for keyId, for wire shapes that
// don't go through Envelope[T].
func VerifyRaw(v Verifier, keyID, sigHex string, data []byte) bool {
	return v.Verify(keyID, sigHex, data)
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
