// Package persistence implements crash recovery (spec §4.9): a single
// JSON snapshot of all mutable router state, written atomically and
// debounced, with best-effort load on startup. An optional Postgres mode
// durably stores the same shape for operators who need it.
package persistence

import (
	"encoding/json"

	"github.com/imattau/fed-AI-sub001/internal/registry"
	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// PaymentReceiptRecord pairs a ledger key with its accepted receipt
// envelope; PaymentLedgerKey is a struct and can't be a JSON map key
// directly, so receipts round-trip as a list.
type PaymentReceiptRecord struct {
	Key     wire.PaymentLedgerKey              `json:"key"`
	Receipt wire.Envelope[wire.PaymentReceipt] `json:"receipt"`
}

// Snapshot is the complete persisted state (spec §4.9 field list).
type Snapshot struct {
	Registry           registry.Snapshot              `json:"registry"`
	PaymentChallenges  map[string]wire.PaymentRequest  `json:"paymentChallenges"`
	PaymentReceipts    []PaymentReceiptRecord          `json:"paymentReceipts"`
	ConsumedRequestIDs map[string]bool                 `json:"consumedRequestIds"`
	Peers              []wire.PeerRouter               `json:"peers"`
	TimestampMs        int64                            `json:"timestampMs"`
}

// ReceiptsAsMap converts the persisted list form back into the map shape
// payment.Engine.Restore expects.
func (s Snapshot) ReceiptsAsMap() map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt] {
	out := make(map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt], len(s.PaymentReceipts))
	for _, r := range s.PaymentReceipts {
		out[r.Key] = r.Receipt
	}
	return out
}

// ReceiptsFromMap converts the payment engine's map shape into the
// persisted list form.
func ReceiptsFromMap(m map[wire.PaymentLedgerKey]wire.Envelope[wire.PaymentReceipt]) []PaymentReceiptRecord {
	out := make([]PaymentReceiptRecord, 0, len(m))
	for k, v := range m {
		out = append(out, PaymentReceiptRecord{Key: k, Receipt: v})
	}
	return out
}

// Marshal/Unmarshal are thin wrappers kept so callers never reach for
// encoding/json directly — matching the teacher's store package
// convention of owning its own (de)serialization entry points.
func Marshal(s Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func Unmarshal(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
