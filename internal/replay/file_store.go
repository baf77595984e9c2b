package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is a MemoryStore with durable snapshots: an atomic tmp+rename
// write, debounced to at most once per second, reloaded at startup. A
// corrupt or partial file is treated as empty rather than failing startup
// (spec §4.2).
type FileStore struct {
	mem        *MemoryStore
	path       string
	mu         sync.Mutex
	lastFlush  time.Time
	pendingMsg bool
}

type fileRecord struct {
	Nonce string `json:"nonce"`
	TsMs  int64  `json:"ts"`
}

// NewFileStore opens (or creates) a replay snapshot at path.
func NewFileStore(path string, window time.Duration) *FileStore {
	fs := &FileStore{
		mem:  NewMemoryStore(window),
		path: path,
	}
	fs.load()
	return fs
}

func (fs *FileStore) load() {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return // missing file: start empty
	}
	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return // corrupt file: treat as empty (spec §4.2)
	}
	fs.mem.mu.Lock()
	for _, r := range records {
		fs.mem.nonces[r.Nonce] = record{tsMs: r.TsMs}
	}
	fs.mem.mu.Unlock()
}

func (fs *FileStore) Check(nonce string, tsMs int64, nowMs int64) CheckResult {
	res := fs.mem.Check(nonce, tsMs, nowMs)
	if res == Ok {
		fs.debouncedFlush()
	}
	return res
}

func (fs *FileStore) Cleanup(nowMs int64) {
	fs.mem.Cleanup(nowMs)
	fs.debouncedFlush()
}

// debouncedFlush writes the snapshot at most once per second; a write
// already in flight absorbs the request instead of racing a second one.
func (fs *FileStore) debouncedFlush() {
	fs.mu.Lock()
	if time.Since(fs.lastFlush) < time.Second {
		fs.pendingMsg = true
		fs.mu.Unlock()
		return
	}
	fs.lastFlush = time.Now()
	fs.mu.Unlock()

	fs.flush()

	fs.mu.Lock()
	pending := fs.pendingMsg
	fs.pendingMsg = false
	fs.mu.Unlock()
	if pending {
		fs.flush()
	}
}

func (fs *FileStore) flush() error {
	fs.mem.mu.Lock()
	records := make([]fileRecord, 0, len(fs.mem.nonces))
	for nonce, r := range fs.mem.nonces {
		records = append(records, fileRecord{Nonce: nonce, TsMs: r.tsMs})
	}
	fs.mem.mu.Unlock()

	data, err := json.Marshal(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".replay-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, fs.path)
}
