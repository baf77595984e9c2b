package lnadapter

import "context"

// Fake is an in-memory Adapter for tests: Invoice returns a synthetic
// invoice and Verify reports the configured Paid value.
type Fake struct {
	Paid bool
}

func NewFake(paid bool) *Fake {
	return &Fake{Paid: paid}
}

func (f *Fake) Invoice(ctx context.Context, req InvoiceRequest) (InvoiceResponse, error) {
	return InvoiceResponse{Invoice: "lnbc-fake-" + req.RequestID, PaymentHash: "hash-" + req.RequestID}, nil
}

func (f *Fake) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	return VerifyResponse{Paid: f.Paid}, nil
}
