package validate

import (
	"strconv"

	"github.com/imattau/fed-AI-sub001/internal/wire"
)

// QuoteRequest validates a wire.QuoteRequest's shape.
func QuoteRequest(q wire.QuoteRequest) Result {
	var errs []FieldError
	require(q.RequestID != "", &errs, "requestId", "required")
	require(q.ModelID != "", &errs, "modelId", "required")
	require(q.InputTokensEstimate >= 0, &errs, "inputTokensEstimate", "must be >= 0")
	require(q.OutputTokensEstimate >= 0, &errs, "outputTokensEstimate", "must be >= 0")
	require(q.MaxTokens >= 0, &errs, "maxTokens", "must be >= 0")
	return result(errs)
}

// InferenceRequest validates a wire.InferenceRequest's shape.
func InferenceRequest(r wire.InferenceRequest) Result {
	var errs []FieldError
	require(r.RequestID != "", &errs, "requestId", "required")
	require(r.ModelID != "", &errs, "modelId", "required")
	require(r.MaxTokens >= 0, &errs, "maxTokens", "must be >= 0")
	for i, pr := range r.PaymentReceipts {
		res := Envelope(PaymentReceipt)(pr)
		if !res.OK {
			for _, e := range res.Errors {
				errs = append(errs, FieldError{Field: "paymentReceipts[" + strconv.Itoa(i) + "]:" + e.Field, Msg: e.Msg})
			}
		}
	}
	return result(errs)
}

// PaymentReceipt validates a wire.PaymentReceipt's shape. The legacy
// nodeId-keyed shape is structurally invalid here: spec §9(a) requires it
// be rejected as envelope-malformed rather than silently coerced.
func PaymentReceipt(r wire.PaymentReceipt) Result {
	var errs []FieldError
	require(r.LegacyNodeID == "", &errs, "nodeId", "legacy receipt shape is not accepted")
	require(r.RequestID != "", &errs, "requestId", "required")
	require(r.PayeeType == wire.PayeeTypeNode || r.PayeeType == wire.PayeeTypeRouter, &errs, "payeeType", "must be node or router")
	require(r.PayeeID != "", &errs, "payeeId", "required")
	require(r.AmountSats > 0, &errs, "amountSats", "must be > 0")
	return result(errs)
}

// NodeManifest validates a wire.NodeManifest's shape.
func NodeManifest(m wire.NodeManifest) Result {
	var errs []FieldError
	require(m.NodeID != "", &errs, "nodeId", "required")
	require(m.KeyID != "", &errs, "keyId", "required")
	require(m.Endpoint != "", &errs, "endpoint", "required")
	require(m.Capacity.MaxConcurrent >= 0, &errs, "capacity.maxConcurrent", "must be >= 0")
	for i, cap := range m.Capabilities {
		require(cap.ModelID != "", &errs, "capabilities["+strconv.Itoa(i)+"].modelId", "required")
		require(cap.Pricing.Unit == wire.PricingUnitToken || cap.Pricing.Unit == wire.PricingUnitSecond,
			&errs, "capabilities["+strconv.Itoa(i)+"].pricing.unit", "must be token or second")
	}
	return result(errs)
}

// ControlMessage validates the outer shape of a RouterControlMessage,
// independent of its payload type T (checked separately by callers per
// message type).
func ControlMessage[T any](m wire.RouterControlMessage[T]) Result {
	var errs []FieldError
	require(m.RouterID != "", &errs, "routerId", "required")
	require(m.MessageID != "", &errs, "messageId", "required")
	require(m.TimestampMs > 0, &errs, "timestamp", "required")
	require(m.ExpiryMs > 0, &errs, "expiry", "required")
	require(m.Sig != "", &errs, "sig", "required")
	switch m.Type {
	case wire.MsgCapsAnnounce, wire.MsgPriceAnnounce, wire.MsgStatusAnnounce,
		wire.MsgRFB, wire.MsgBid, wire.MsgAward, wire.MsgCancel, wire.MsgReceiptSummary:
	default:
		errs = append(errs, FieldError{Field: "type", Msg: "unknown control message type"})
	}
	return result(errs)
}

