package persistence

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store writes a Snapshot to a single file atomically (tmp+rename) on a
// timer, and debounces extra requests in between ticks so a burst of
// state changes collapses into one write (spec §4.9: "at most one
// in-flight, a new request queues a single follow-up").
type Store struct {
	path     string
	provider func() Snapshot
	log      *slog.Logger

	mu         sync.Mutex
	flushing   bool
	pendingMsg bool
}

// NewStore builds a Store that asks provider for the current state each
// time it flushes to disk.
func NewStore(path string, provider func() Snapshot, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, provider: provider, log: log}
}

// Load reads the snapshot file at startup. A missing or corrupt file is
// treated as empty rather than failing startup (spec §4.9, mirroring the
// replay store's recovery behavior).
func (s *Store) Load() (Snapshot, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Snapshot{}, false
	}
	snap, err := Unmarshal(data)
	if err != nil {
		s.log.Warn("persistence snapshot corrupt, starting empty", "path", s.path, "err", err)
		return Snapshot{}, false
	}
	return snap, true
}

// Run periodically flushes on intervalMs until ctx is canceled.
func (s *Store) Run(ctx context.Context, intervalMs int64) {
	if intervalMs <= 0 {
		intervalMs = 5_000
	}
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RequestSave()
		}
	}
}

// RequestSave flushes now if no write is in flight, otherwise marks a
// follow-up flush to run once the in-flight write finishes.
func (s *Store) RequestSave() {
	s.mu.Lock()
	if s.flushing {
		s.pendingMsg = true
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.mu.Unlock()

	s.flushOnce()

	s.mu.Lock()
	pending := s.pendingMsg
	s.pendingMsg = false
	s.flushing = false
	s.mu.Unlock()
	if pending {
		s.RequestSave()
	}
}

func (s *Store) flushOnce() {
	snap := s.provider()
	snap.TimestampMs = time.Now().UnixMilli()

	data, err := Marshal(snap)
	if err != nil {
		s.log.Error("marshal persistence snapshot failed", "err", err)
		return
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".persistence-*.tmp")
	if err != nil {
		s.log.Error("create persistence tmp file failed", "err", err)
		return
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		s.log.Error("write persistence tmp file failed", "err", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		s.log.Error("close persistence tmp file failed", "err", err)
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		s.log.Error("rename persistence snapshot failed", "err", err)
	}
}
