package federation

import "sync"

// Dedup tracks seen messageIds per sender so a subscriber never processes
// the same control message twice (spec §4.7 "deduplicate by messageId").
// It also tracks each sender's last delivered messageId to flag gaps via
// prevMessageId (spec §3 RouterControlMessage invariant).
type Dedup struct {
	mu       sync.Mutex
	seen     map[string]map[string]bool // routerId -> messageId -> true
	lastID   map[string]string          // routerId -> last delivered messageId
	maxPerID int
	order    map[string][]string // routerId -> insertion order, for eviction
}

// NewDedup bounds memory by keeping at most maxPerRouter messageIds per
// sender (oldest evicted first).
func NewDedup(maxPerRouter int) *Dedup {
	if maxPerRouter <= 0 {
		maxPerRouter = 4096
	}
	return &Dedup{
		seen:     make(map[string]map[string]bool),
		lastID:   make(map[string]string),
		order:    make(map[string][]string),
		maxPerID: maxPerRouter,
	}
}

// Accept reports whether messageId from routerId should be processed
// (true) or was already seen (false). hasGap is true when prevMessageID is
// non-empty and doesn't match the last accepted message from this sender —
// per spec, gaps are only detected, never reconstructed.
func (d *Dedup) Accept(routerID, messageID, prevMessageID string) (accept bool, hasGap bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.seen[routerID]
	if !ok {
		set = make(map[string]bool)
		d.seen[routerID] = set
	}
	if set[messageID] {
		return false, false
	}

	if prevMessageID != "" {
		if last, ok := d.lastID[routerID]; ok && last != prevMessageID {
			hasGap = true
		}
	}

	set[messageID] = true
	d.lastID[routerID] = messageID
	d.order[routerID] = append(d.order[routerID], messageID)
	if len(d.order[routerID]) > d.maxPerID {
		evict := d.order[routerID][0]
		d.order[routerID] = d.order[routerID][1:]
		delete(set, evict)
	}
	return true, hasGap
}
