// Package wire defines the shared data model exchanged between clients,
// nodes, and routers: envelopes, quotes, inference requests, payment
// records, and the inter-router federation messages.
package wire

// Envelope wraps any payload with the signing metadata every actor speaks.
// It is immutable once signed: callers must not mutate a populated
// Envelope in place, only construct new ones.
type Envelope[T any] struct {
	Payload T      `json:"payload"`
	Nonce   string `json:"nonce"`
	TsMs    int64  `json:"ts"`
	KeyID   string `json:"keyId"`
	Sig     string `json:"sig"`
}

