package persistence_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/federation"
	"github.com/imattau/fed-AI-sub001/internal/payment"
	"github.com/imattau/fed-AI-sub001/internal/persistence"
	"github.com/imattau/fed-AI-sub001/internal/registry"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

func TestSnapshot_MarshalUnmarshalRoundTrip(t *testing.T) {
	snap := persistence.Snapshot{
		Registry: registry.Snapshot{
			Nodes: map[string]wire.Node{"n1": {NodeID: "n1", Endpoint: "http://n1"}},
		},
		PaymentChallenges: map[string]wire.PaymentRequest{
			"r1": {RequestID: "r1", AmountSats: 100},
		},
		PaymentReceipts: []persistence.PaymentReceiptRecord{
			{
				Key:     wire.PaymentLedgerKey{RequestID: "r1", PayeeType: "node", PayeeID: "n1"},
				Receipt: wire.Envelope[wire.PaymentReceipt]{Payload: wire.PaymentReceipt{RequestID: "r1", AmountSats: 100}},
			},
		},
		ConsumedRequestIDs: map[string]bool{"r0": true},
		Peers:              []wire.PeerRouter{{RouterID: "peer-1"}},
		TimestampMs:        1000,
	}

	data, err := persistence.Marshal(snap)
	require.NoError(t, err)

	got, err := persistence.Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, snap.Registry.Nodes["n1"].Endpoint, got.Registry.Nodes["n1"].Endpoint)
	require.Equal(t, snap.PaymentChallenges["r1"].AmountSats, got.PaymentChallenges["r1"].AmountSats)
	require.Len(t, got.PaymentReceipts, 1)
	require.True(t, got.ConsumedRequestIDs["r0"])
	require.Equal(t, "peer-1", got.Peers[0].RouterID)
}

func TestSnapshot_ReceiptsMapRoundTrip(t *testing.T) {
	key := wire.PaymentLedgerKey{RequestID: "r1", PayeeType: "router", PayeeID: "router-1"}
	m := map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt]{
		key: {Payload: wire.PaymentReceipt{RequestID: "r1", AmountSats: 50}},
	}
	records := persistence.ReceiptsFromMap(m)
	snap := persistence.Snapshot{PaymentReceipts: records}
	back := snap.ReceiptsAsMap()
	require.Equal(t, int64(50), back[key].Payload.AmountSats)
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	reg := registry.New(registry.DefaultConfig())
	reg.Admit(
		wire.NodeManifest{NodeID: "n1", Endpoint: "http://n1", Capacity: wire.Capacity{MaxConcurrent: 4}},
		wire.NodeAdmission{Eligible: true},
		"hash1",
	)
	pay := payment.New(payment.DefaultConfig())
	pay.IssueChallenge("r1", 1000, "n1", "router-1", nil, 0)
	peers := federation.NewDirectory()
	peers.Observe("peer-1", 0, func(p *wire.PeerRouter) { p.TrustScore = 0.9 })

	src := persistence.Sources{Registry: reg, Payment: pay, Peers: peers}
	store := persistence.NewStore(path, src.Collect, nil)
	store.RequestSave()

	loaded, ok := store.Load()
	require.True(t, ok)
	require.Len(t, loaded.Registry.Nodes, 1)
	require.Len(t, loaded.PaymentChallenges, 1)
	require.Len(t, loaded.Peers, 1)

	reg2 := registry.New(registry.DefaultConfig())
	pay2 := payment.New(payment.DefaultConfig())
	peers2 := federation.NewDirectory()
	dst := persistence.Sources{Registry: reg2, Payment: pay2, Peers: peers2}
	dst.Restore(loaded)

	_, found := reg2.Get("n1")
	require.True(t, found)
	require.Equal(t, wire.PaymentStateChallenged, pay2.State("r1", 0))
}

func TestStore_LoadMissingFileReturnsFalse(t *testing.T) {
	store := persistence.NewStore(filepath.Join(t.TempDir(), "missing.json"), func() persistence.Snapshot { return persistence.Snapshot{} }, nil)
	_, ok := store.Load()
	require.False(t, ok)
}

func TestStore_LoadCorruptFileReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	store := persistence.NewStore(path, func() persistence.Snapshot { return persistence.Snapshot{} }, nil)
	_, ok := store.Load()
	require.False(t, ok)
}
