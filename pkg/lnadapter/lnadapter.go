// Package lnadapter is the collaborator contract for the external
// Lightning payment adapter (spec §6 "Collaborator contract — Lightning
// adapter"), plus a thin HTTP client, grounded on the same net/http +
// context-deadline conventions as pkg/runner.
package lnadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// InvoiceRequest asks the adapter to mint an invoice for a payee.
type InvoiceRequest struct {
	RequestID  string `json:"requestId"`
	PayeeID    string `json:"payeeId"`
	AmountSats int64  `json:"amountSats"`
}

// InvoiceResponse is the minted invoice.
type InvoiceResponse struct {
	Invoice     string `json:"invoice"`
	PaymentHash string `json:"paymentHash"`
	ExpiresAtMs int64  `json:"expiresAtMs"`
}

// VerifyRequest asks the adapter whether a claimed receipt settled.
type VerifyRequest struct {
	RequestID   string `json:"requestId"`
	PayeeID     string `json:"payeeId"`
	AmountSats  int64  `json:"amountSats"`
	Invoice     string `json:"invoice"`
	PaymentHash string `json:"paymentHash"`
}

// VerifyResponse reports settlement status.
type VerifyResponse struct {
	Paid        bool   `json:"paid"`
	Detail      string `json:"detail,omitempty"`
	SettledAtMs int64  `json:"settledAtMs,omitempty"`
}

// Adapter is the interface the payment engine depends on; tests
// substitute an in-memory fake, production wires HTTPAdapter.
type Adapter interface {
	Invoice(ctx context.Context, req InvoiceRequest) (InvoiceResponse, error)
	Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error)
}

// HTTPAdapter calls a configured Lightning adapter service (spec's
// LN_ADAPTER_URL). The router uses it only to mint invoices for payment
// challenges; receipts are accepted on the payment engine's own matching
// alone, and the router never calls Verify.
type HTTPAdapter struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPAdapter(baseURL string) *HTTPAdapter {
	return &HTTPAdapter{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *HTTPAdapter) Invoice(ctx context.Context, req InvoiceRequest) (InvoiceResponse, error) {
	var out InvoiceResponse
	err := a.doJSON(ctx, "/invoice", req, &out)
	return out, err
}

func (a *HTTPAdapter) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	var out VerifyResponse
	err := a.doJSON(ctx, "/verify", req, &out)
	return out, err
}

func (a *HTTPAdapter) doJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal lnadapter request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build lnadapter request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("lnadapter unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return fmt.Errorf("lnadapter error: status %d: %s", resp.StatusCode, string(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode lnadapter response: %w", err)
	}
	return nil
}
