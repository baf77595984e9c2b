package wire

// PayeeType distinguishes the two parties a payment can settle to.
type PayeeType string

const (
	PayeeTypeNode   PayeeType = "node"
	PayeeTypeRouter PayeeType = "router"
)

// PaymentSplit partitions a PaymentRequest.AmountSats across one payee.
type PaymentSplit struct {
	Payee      PayeeType `json:"payee"`
	PayeeID    string    `json:"payeeId"`
	AmountSats int64     `json:"amountSats"`
}

// PaymentRequest is the HTTP 402 challenge body.
type PaymentRequest struct {
	RequestID   string         `json:"requestId"`
	AmountSats  int64          `json:"amountSats"`
	Invoice     string         `json:"invoice,omitempty"`
	PaymentHash string         `json:"paymentHash,omitempty"`
	Splits      []PaymentSplit `json:"splits"`
	ExpiresAtMs int64          `json:"expiresAtMs"`
}

// PaymentReceipt is the client's proof of settlement. Only the
// payeeType/payeeId shape is accepted; a receipt carrying the legacy bare
// nodeId field is rejected with envelope-malformed (spec §9(a)).
type PaymentReceipt struct {
	RequestID   string    `json:"requestId"`
	PayeeType   PayeeType `json:"payeeType"`
	PayeeID     string    `json:"payeeId"`
	AmountSats  int64     `json:"amountSats"`
	Invoice     string    `json:"invoice,omitempty"`
	PaymentHash string    `json:"paymentHash,omitempty"`
	Splits      []PaymentSplit `json:"splits,omitempty"`
	SettledAtMs int64     `json:"settledAtMs,omitempty"`

	// LegacyNodeID, if present in the inbound JSON, marks this receipt as
	// the deprecated shape and forces rejection. It is never populated by
	// this router's own signing path.
	LegacyNodeID string `json:"nodeId,omitempty"`
}

// PaymentLedgerKey identifies one outstanding or settled payment.
type PaymentLedgerKey struct {
	RequestID string
	PayeeType PayeeType
	PayeeID   string
}

// PaymentState is the per-key state machine position (spec §4.6).
type PaymentState string

const (
	PaymentStateNone       PaymentState = "NONE"
	PaymentStateChallenged PaymentState = "CHALLENGED"
	PaymentStatePaid       PaymentState = "PAID"
	PaymentStateExpired    PaymentState = "EXPIRED"
	PaymentStateConsumed   PaymentState = "CONSUMED"
)
