package httpapi

import "github.com/imattau/fed-AI-sub001/pkg/lnadapter"

func lnInvoiceRequest(requestID, payeeID string, amountSats int64) lnadapter.InvoiceRequest {
	return lnadapter.InvoiceRequest{RequestID: requestID, PayeeID: payeeID, AmountSats: amountSats}
}
