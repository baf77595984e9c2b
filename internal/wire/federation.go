package wire

// ControlMessageType enumerates the federation wire kinds (spec §6 relay
// kind mapping).
type ControlMessageType string

const (
	MsgCapsAnnounce    ControlMessageType = "CAPS_ANNOUNCE"
	MsgPriceAnnounce   ControlMessageType = "PRICE_ANNOUNCE"
	MsgStatusAnnounce  ControlMessageType = "STATUS_ANNOUNCE"
	MsgRFB             ControlMessageType = "RFB"
	MsgBid             ControlMessageType = "BID"
	MsgAward           ControlMessageType = "AWARD"
	MsgCancel          ControlMessageType = "CANCEL"
	MsgReceiptSummary  ControlMessageType = "RECEIPT_SUMMARY"
)

// RelayKind maps a ControlMessageType to its relay transport kind number.
var RelayKind = map[ControlMessageType]int{
	MsgCapsAnnounce:   30020,
	MsgPriceAnnounce:  30021,
	MsgStatusAnnounce: 30022,
	MsgReceiptSummary: 30023,
	MsgRFB:            20020,
	MsgBid:            20021,
	MsgAward:          20022,
	MsgCancel:         20023,
}

// RouterControlMessage is the generic envelope for inter-router federation
// traffic, chained via PrevMessageID for gap detection.
type RouterControlMessage[T any] struct {
	Type          ControlMessageType `json:"type"`
	Version       int                `json:"version"`
	RouterID      string             `json:"routerId"`
	MessageID     string             `json:"messageId"`
	TimestampMs   int64              `json:"timestamp"`
	ExpiryMs      int64              `json:"expiry"`
	Payload       T                  `json:"payload"`
	Sig           string             `json:"sig"`
	PrevMessageID string             `json:"prevMessageId,omitempty"`
}

// CapabilityProfile summarizes a router's served models for CAPS_ANNOUNCE.
type CapabilityProfile struct {
	ModelIDs []string `json:"modelIds"`
	Regions  []string `json:"regions,omitempty"`
}

// PriceSheetEntry is one jobType's advertised price for PRICE_ANNOUNCE.
type PriceSheetEntry struct {
	JobType      string  `json:"jobType"`
	PricePerToken float64 `json:"pricePerToken"`
}

// LoadSummary is a router's self-reported load for STATUS_ANNOUNCE.
type LoadSummary struct {
	LoadFactor float64 `json:"loadFactor"`
}

// PeerRouter is the local view of a federated peer.
type PeerRouter struct {
	RouterID          string            `json:"routerId"`
	CapabilityProfile CapabilityProfile `json:"capabilityProfile"`
	PriceSheet        []PriceSheetEntry `json:"priceSheet"`
	LoadSummary       LoadSummary       `json:"loadSummary"`
	LastSeenMs        int64             `json:"lastSeenMs"`
	BackoffUntilMs    int64             `json:"backoffUntilMs,omitempty"`
	Failures          int               `json:"failures"`
	TrustScore        float64           `json:"trustScore,omitempty"`
}

// RequestForBid is the RFB payload: the ingress router asking peers to bid
// on offloading a job.
type RequestForBid struct {
	JobID         string  `json:"jobId"`
	JobHash       string  `json:"jobHash"`
	ModelID       string  `json:"modelId"`
	DeadlineMs    int64   `json:"deadlineMs"`
	MaxPriceMsat  int64   `json:"maxPriceMsat"`
	ValidationMode string `json:"validationMode"`
}

// JobBid is one peer's offer to run a job.
type JobBid struct {
	JobID      string `json:"jobId"`
	RouterID   string `json:"routerId"`
	PriceMsat  int64  `json:"priceMsat"`
	EtaMs      int64  `json:"etaMs"`
}

// Award grants a job to the winning bidder.
type Award struct {
	JobID             string `json:"jobId"`
	RouterID          string `json:"routerId"`
	AcceptedPriceMsat int64  `json:"acceptedPriceMsat"`
	AwardExpiryMs     int64  `json:"awardExpiryMs"`
}

// Cancel withdraws an RFB that received no usable bids.
type Cancel struct {
	JobID  string `json:"jobId"`
	Reason string `json:"reason"`
}

// ReceiptSummary is a periodic digest of settled payments shared between
// peers for reconciliation.
type ReceiptSummary struct {
	WindowStartMs int64 `json:"windowStartMs"`
	WindowEndMs   int64 `json:"windowEndMs"`
	Count         int   `json:"count"`
	TotalSats     int64 `json:"totalSats"`
}

// RouterReceipt accompanies a /federation/payment-request call: the
// requesting router's proof of the client-facing obligation it needs
// settled between itself and a peer.
type RouterReceipt struct {
	RequestID string `json:"requestId"`
	RouterID  string `json:"routerId"`
	JobID     string `json:"jobId"`
}
