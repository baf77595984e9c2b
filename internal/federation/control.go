package federation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// Build constructs and signs a RouterControlMessage (spec §3). The sig
// covers the control message's own fields, not a generic Envelope — the
// federation wire has its own signing shape distinct from Envelope[T].
func Build[T any](signer envelope.Signer, msgType wire.ControlMessageType, routerID string, payload T, ttlMs int64, prevMessageID string, now time.Time) (wire.RouterControlMessage[T], error) {
	messageID, err := randomMessageID()
	if err != nil {
		return wire.RouterControlMessage[T]{}, err
	}
	nowMs := now.UnixMilli()
	msg := wire.RouterControlMessage[T]{
		Type:          msgType,
		Version:       1,
		RouterID:      routerID,
		MessageID:     messageID,
		TimestampMs:   nowMs,
		ExpiryMs:      nowMs + ttlMs,
		Payload:       payload,
		PrevMessageID: prevMessageID,
	}
	sig, err := signControlMessage(signer, msg)
	if err != nil {
		return wire.RouterControlMessage[T]{}, err
	}
	msg.Sig = sig
	return msg, nil
}

// VerifyReceived checks a control message's signature, freshness, and
// expiry window per spec §3 invariant: timestamp ≤ now, expiry > now.
func VerifyReceived[T any](v envelope.Verifier, msg wire.RouterControlMessage[T], nowMs int64) error {
	sig := msg.Sig
	unsigned := msg
	unsigned.Sig = ""
	data, err := controlMessageSigningBytes(unsigned)
	if err != nil {
		return err
	}
	if !v.Verify(msg.RouterID, sig, data) {
		return errControlSignatureInvalid
	}
	if msg.TimestampMs > nowMs {
		return errControlTimestampFuture
	}
	if msg.ExpiryMs <= nowMs {
		return errControlExpired
	}
	return nil
}

var (
	errControlSignatureInvalid = fmt.Errorf("federation-signature-invalid")
	errControlTimestampFuture  = fmt.Errorf("federation-timestamp-future")
	errControlExpired          = fmt.Errorf("federation-message-expired")
)

func signControlMessage[T any](signer envelope.Signer, msg wire.RouterControlMessage[T]) (string, error) {
	data, err := controlMessageSigningBytes(msg)
	if err != nil {
		return "", err
	}
	return envelope.SignRaw(signer, data)
}

// controlMessageSigningBytes canonicalizes a control message with its Sig
// field cleared, so the same function builds and verifies the exact
// signing input.
func controlMessageSigningBytes[T any](msg wire.RouterControlMessage[T]) ([]byte, error) {
	msg.Sig = ""
	return envelope.CanonicalValue(msg)
}

func randomMessageID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate messageId: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
