package envelope_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

func TestEd25519_SignVerifyRoundTrip(t *testing.T) {
	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	e, err := envelope.Sign(signer, wire.QuoteRequest{RequestID: "q1", ModelID: "m"}, time.Now())
	require.NoError(t, err)

	v := envelope.NewVerifier()
	require.True(t, envelope.Verify(v, e))
}

func TestEd25519_TamperedPayloadFailsVerify(t *testing.T) {
	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)

	e, err := envelope.Sign(signer, wire.QuoteRequest{RequestID: "q1", ModelID: "m"}, time.Now())
	require.NoError(t, err)

	e.Payload.ModelID = "tampered"

	v := envelope.NewVerifier()
	require.False(t, envelope.Verify(v, e))
}

func TestSchnorr_SignVerifyRoundTrip(t *testing.T) {
	signer, err := envelope.NewSchnorrSigner()
	require.NoError(t, err)

	e, err := envelope.Sign(signer, wire.PaymentReceipt{RequestID: "r1", AmountSats: 10}, time.Now())
	require.NoError(t, err)
	require.Equal(t, envelope.SchemeSchnorr, envelope.DetectScheme(e.KeyID))

	v := envelope.NewVerifier()
	require.True(t, envelope.Verify(v, e))
}

func TestVerify_UnknownSchemeFails(t *testing.T) {
	e := wire.Envelope[wire.QuoteRequest]{
		Payload: wire.QuoteRequest{RequestID: "q1"},
		Nonce:   "abc",
		TsMs:    time.Now().UnixMilli(),
		KeyID:   "not-a-valid-key!",
		Sig:     "00",
	}
	v := envelope.NewVerifier()
	require.False(t, envelope.Verify(v, e))
}

func TestCanonicalBytes_Deterministic(t *testing.T) {
	a, err := envelope.CanonicalBytes(wire.QuoteRequest{RequestID: "q1", ModelID: "m"}, "nonce1", 100, "key1")
	require.NoError(t, err)
	b, err := envelope.CanonicalBytes(wire.QuoteRequest{RequestID: "q1", ModelID: "m"}, "nonce1", 100, "key1")
	require.NoError(t, err)
	require.Equal(t, a, b)
}
