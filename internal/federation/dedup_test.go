package federation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/federation"
)

func TestDedup_RejectsRepeatedMessageID(t *testing.T) {
	d := federation.NewDedup(16)
	accept, gap := d.Accept("r1", "m1", "")
	require.True(t, accept)
	require.False(t, gap)

	accept, _ = d.Accept("r1", "m1", "")
	require.False(t, accept)
}

func TestDedup_DetectsGapViaPrevMessageID(t *testing.T) {
	d := federation.NewDedup(16)
	d.Accept("r1", "m1", "")
	_, gap := d.Accept("r1", "m3", "m2") // m2 never arrived
	require.True(t, gap)
}

func TestDedup_NoGapWhenChainIntact(t *testing.T) {
	d := federation.NewDedup(16)
	d.Accept("r1", "m1", "")
	_, gap := d.Accept("r1", "m2", "m1")
	require.False(t, gap)
}

func TestDedup_IndependentPerSender(t *testing.T) {
	d := federation.NewDedup(16)
	accept1, _ := d.Accept("r1", "m1", "")
	accept2, _ := d.Accept("r2", "m1", "")
	require.True(t, accept1)
	require.True(t, accept2)
}
