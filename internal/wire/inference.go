package wire

// QuoteRequest asks the router to price a prospective inference.
type QuoteRequest struct {
	RequestID             string      `json:"requestId"`
	ModelID                string      `json:"modelId"`
	InputTokensEstimate    int         `json:"inputTokensEstimate"`
	OutputTokensEstimate   int         `json:"outputTokensEstimate"`
	MaxTokens              int         `json:"maxTokens"`
	Constraints            Constraints `json:"constraints,omitempty"`
}

// PriceBreakdown is the estimated cost of a quoted request.
type PriceBreakdown struct {
	Input    float64 `json:"input"`
	Output   float64 `json:"output"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// QuoteResponse is the router's node selection and price estimate.
type QuoteResponse struct {
	RequestID string         `json:"requestId"`
	NodeID    string         `json:"nodeId"`
	Price     PriceBreakdown `json:"price"`
	ExpiresAtMs int64        `json:"expiresAtMs"`
}

// InferenceRequest is a client's request to run a model.
type InferenceRequest struct {
	RequestID        string            `json:"requestId"`
	ModelID          string            `json:"modelId"`
	Input            string            `json:"input"`
	MaxTokens        int               `json:"maxTokens"`
	MaxRuntimeMs     int64             `json:"maxRuntimeMs,omitempty"`
	Constraints      Constraints       `json:"constraints,omitempty"`
	PaymentReceipts  []Envelope[PaymentReceipt] `json:"paymentReceipts,omitempty"`
}

// InferenceResponse carries the model output and usage.
type InferenceResponse struct {
	RequestID string `json:"requestId"`
	NodeID    string `json:"nodeId"`
	Output    string `json:"output"`
}

// InferenceStreamChunk is one SSE "chunk" event payload.
type InferenceStreamChunk struct {
	RequestID string `json:"requestId"`
	Delta     string `json:"delta"`
	Index     int    `json:"index"`
}

// MeteringRecord reports resource usage for a completed inference.
type MeteringRecord struct {
	RequestID    string `json:"requestId"`
	NodeID       string `json:"nodeId"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	DurationMs   int64  `json:"durationMs"`
	TraceID      string `json:"traceId,omitempty"`
}
