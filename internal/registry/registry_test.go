package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/registry"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

func admit(t *testing.T, r *registry.Registry, nodeID string, maxConcurrent int) {
	t.Helper()
	r.Admit(wire.NodeManifest{
		NodeID:   nodeID,
		KeyID:    "key-" + nodeID,
		Endpoint: "http://" + nodeID,
		Capacity: wire.Capacity{MaxConcurrent: maxConcurrent},
	}, wire.NodeAdmission{Eligible: true}, "hash-"+nodeID)
}

func TestActive_RequiresRecentHeartbeat(t *testing.T) {
	r := registry.New(registry.DefaultConfig())
	admit(t, r, "n1", 10)

	require.Empty(t, r.Active(1_000_000))

	require.NoError(t, r.Heartbeat("n1", 1_000_000))
	require.Len(t, r.Active(1_000_000), 1)
	require.Empty(t, r.Active(1_000_000+61_000))
}

func TestCooldown_EntersAfterThresholdAndClearsOnSuccess(t *testing.T) {
	r := registry.New(registry.DefaultConfig())
	admit(t, r, "n1", 10)
	require.NoError(t, r.Heartbeat("n1", 0))

	r.RecordFailure("n1", 0)
	r.RecordFailure("n1", 0)
	require.Len(t, r.Active(0), 1) // 2 failures: not yet cooling

	r.RecordFailure("n1", 0)
	require.Empty(t, r.Active(0)) // 3rd failure: cooldown begins

	until, cooling := r.CooldownUntil("n1")
	require.True(t, cooling)
	require.Equal(t, int64(10_000), until) // base 10s at K=3

	require.NoError(t, r.Heartbeat("n1", 10_000))
	require.Len(t, r.Active(10_000), 1)

	r.RecordSuccess("n1", 10_000)
	_, cooling = r.CooldownUntil("n1")
	require.False(t, cooling)
}

func TestAdjustLoad_ClampsToCapacity(t *testing.T) {
	r := registry.New(registry.DefaultConfig())
	admit(t, r, "n1", 2)

	require.NoError(t, r.AdjustLoad("n1", 5))
	n, _ := r.Get("n1")
	require.Equal(t, 2, n.Capacity.CurrentLoad)

	require.NoError(t, r.AdjustLoad("n1", -10))
	n, _ = r.Get("n1")
	require.Equal(t, 0, n.Capacity.CurrentLoad)
}

func TestSnapshotRestore_RoundTrips(t *testing.T) {
	r := registry.New(registry.DefaultConfig())
	admit(t, r, "n1", 10)
	require.NoError(t, r.Heartbeat("n1", 1000))
	r.RecordFailure("n1", 1000)

	snap := r.Snapshot()

	r2 := registry.New(registry.DefaultConfig())
	r2.Restore(snap)

	n, ok := r2.Get("n1")
	require.True(t, ok)
	require.Equal(t, "http://n1", n.Endpoint)

	h, ok := r2.Health("n1")
	require.True(t, ok)
	require.Equal(t, 1, h.ConsecutiveFailures)
}

func TestIneligibleManifest_NeverScheduled(t *testing.T) {
	r := registry.New(registry.DefaultConfig())
	r.Admit(wire.NodeManifest{NodeID: "bad"}, wire.NodeAdmission{Eligible: false, Reason: "signature invalid"}, "")
	require.Empty(t, r.List())
	require.Empty(t, r.Active(0))
}
