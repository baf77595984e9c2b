package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	bech32HRPPub  = "npub"
	bech32HRPPriv = "nsec"
)

// SchnorrSigner signs with a secp256k1 key using BIP-340 Schnorr
// signatures, keyed by a Bech32 npub (public) identity. Nostr-style relays
// and clients that prefer this scheme identify keys this way.
type SchnorrSigner struct {
	priv  *btcec.PrivateKey
	keyID string // npub-encoded public key
}

// NewSchnorrSigner generates a fresh secp256k1 keypair.
func NewSchnorrSigner() (*SchnorrSigner, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate schnorr key: %w", err)
	}
	npub, err := encodeBech32(bech32HRPPub, schnorr.SerializePubKey(priv.PubKey()))
	if err != nil {
		return nil, err
	}
	return &SchnorrSigner{priv: priv, keyID: npub}, nil
}

// NewSchnorrSignerFromNsec decodes a Bech32 nsec into a signer.
func NewSchnorrSignerFromNsec(nsec string) (*SchnorrSigner, error) {
	hrp, data, err := decodeBech32(nsec)
	if err != nil {
		return nil, err
	}
	if hrp != bech32HRPPriv {
		return nil, fmt.Errorf("expected nsec prefix, got %q", hrp)
	}
	priv, _ := btcec.PrivKeyFromBytes(data)
	npub, err := encodeBech32(bech32HRPPub, schnorr.SerializePubKey(priv.PubKey()))
	if err != nil {
		return nil, err
	}
	return &SchnorrSigner{priv: priv, keyID: npub}, nil
}

func (s *SchnorrSigner) KeyID() string { return s.keyID }

func (s *SchnorrSigner) sign(data []byte) (string, error) {
	digest := sha256.Sum256(data)
	sig, err := schnorr.Sign(s.priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("schnorr sign: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// SchnorrVerifier verifies BIP-340 signatures against npub-encoded keys.
type SchnorrVerifier struct{}

func (SchnorrVerifier) verify(npub, sigHex string, data []byte) bool {
	hrp, pubBytes, err := decodeBech32(npub)
	if err != nil || hrp != bech32HRPPub {
		return false
	}
	pubKey, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(data)
	return sig.Verify(digest[:], pubKey)
}

func encodeBech32(hrp string, data []byte) (string, error) {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("bech32 convert: %w", err)
	}
	out, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("bech32 encode: %w", err)
	}
	return out, nil
}

func decodeBech32(s string) (hrp string, data []byte, err error) {
	hrp, conv, err := bech32.Decode(s)
	if err != nil {
		return "", nil, fmt.Errorf("bech32 decode: %w", err)
	}
	data, err = bech32.ConvertBits(conv, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("bech32 convert: %w", err)
	}
	return hrp, data, nil
}
