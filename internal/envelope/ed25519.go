package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Ed25519Signer signs with a 32-byte hex-encoded Ed25519 key, matching the
// teacher's crypto.Ed25519Signer.
type Ed25519Signer struct {
	priv  ed25519.PrivateKey
	keyID string
}

// NewEd25519Signer generates a fresh keypair. keyId is always the hex
// public key (spec §3: "keyId is the signer's public key in canonical
// encoding"), never an arbitrary label.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Ed25519Signer{priv: priv, keyID: hex.EncodeToString(pub)}, nil
}

// NewEd25519SignerFromSeed builds a signer from a 32-byte seed (e.g. loaded
// from ROUTER_PRIVATE_KEY_PEM once decoded), with keyId set to the hex
// public key.
func NewEd25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed size %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{priv: priv, keyID: hex.EncodeToString(pub)}, nil
}

func (s *Ed25519Signer) KeyID() string { return s.keyID }

func (s *Ed25519Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.priv.Public().(ed25519.PublicKey))
}

func (s *Ed25519Signer) sign(data []byte) (string, error) {
	return hex.EncodeToString(ed25519.Sign(s.priv, data)), nil
}

// Ed25519Verifier verifies signatures against a hex-encoded public key.
type Ed25519Verifier struct{}

func (Ed25519Verifier) verify(pubKeyHex, sigHex string, data []byte) bool {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig)
}
