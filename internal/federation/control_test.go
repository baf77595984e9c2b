package federation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/federation"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

func TestControlMessage_SignVerifyRoundTrip(t *testing.T) {
	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)
	verifier := envelope.NewVerifier()

	msg, err := federation.Build(signer, wire.MsgStatusAnnounce, signer.KeyID(), wire.LoadSummary{LoadFactor: 0.5}, 60_000, "", time.Now())
	require.NoError(t, err)

	err = federation.VerifyReceived(verifier, msg, time.Now().UnixMilli())
	require.NoError(t, err)
}

func TestControlMessage_ExpiredRejected(t *testing.T) {
	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)
	verifier := envelope.NewVerifier()

	now := time.Now()
	msg, err := federation.Build(signer, wire.MsgStatusAnnounce, signer.KeyID(), wire.LoadSummary{LoadFactor: 0.5}, 1000, "", now)
	require.NoError(t, err)

	err = federation.VerifyReceived(verifier, msg, now.UnixMilli()+5000)
	require.Error(t, err)
}

func TestControlMessage_TamperedPayloadFailsVerify(t *testing.T) {
	signer, err := envelope.NewEd25519Signer()
	require.NoError(t, err)
	verifier := envelope.NewVerifier()

	msg, err := federation.Build(signer, wire.MsgStatusAnnounce, signer.KeyID(), wire.LoadSummary{LoadFactor: 0.5}, 60_000, "", time.Now())
	require.NoError(t, err)

	msg.Payload.LoadFactor = 0.99
	err = federation.VerifyReceived(verifier, msg, time.Now().UnixMilli())
	require.Error(t, err)
}
