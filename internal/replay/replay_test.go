package replay_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/replay"
)

func TestMemoryStore_AcceptsThenRejectsReplay(t *testing.T) {
	s := replay.NewMemoryStore(5 * time.Minute)
	now := time.Now().UnixMilli()

	require.Equal(t, replay.Ok, s.Check("n1", now, now))
	require.Equal(t, replay.NonceReused, s.Check("n1", now, now))
}

func TestMemoryStore_BoundaryWindow(t *testing.T) {
	s := replay.NewMemoryStore(5 * time.Minute)
	now := int64(10_000_000)
	windowMs := int64((5 * time.Minute).Milliseconds())

	require.Equal(t, replay.Ok, s.Check("at-edge", now-windowMs, now))
	require.Equal(t, replay.TsOutOfWindow, s.Check("past-edge", now-windowMs-1, now))
}

func TestMemoryStore_RejectionDoesNotInsert(t *testing.T) {
	s := replay.NewMemoryStore(5 * time.Minute)
	now := time.Now().UnixMilli()

	require.Equal(t, replay.TsOutOfWindow, s.Check("n2", now-int64((10*time.Minute).Milliseconds()), now))
	require.Equal(t, 0, s.Size())
	// A subsequent valid use of the same nonce must still succeed.
	require.Equal(t, replay.Ok, s.Check("n2", now, now))
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.json")

	fs1 := replay.NewFileStore(path, 5*time.Minute)
	now := time.Now().UnixMilli()
	require.Equal(t, replay.Ok, fs1.Check("n3", now, now))
	fs1.Cleanup(now)

	fs2 := replay.NewFileStore(path, 5*time.Minute)
	require.Equal(t, replay.NonceReused, fs2.Check("n3", now, now))
}

func TestFileStore_TreatsCorruptFileAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	fs := replay.NewFileStore(path, 5*time.Minute)
	now := time.Now().UnixMilli()
	require.Equal(t, replay.Ok, fs.Check("n4", now, now))
}
