package models

import "time"

// Endpoint names recorded in fetch_logs. The reconcile retry path replays
// calls by this name.
const (
	EndpointOrderCreate   = "order_create"
	EndpointInvoiceUpload = "invoice_upload"
	EndpointOrderCancel   = "order_cancel"
)

// FetchLog is one row per external call attempt, retries included. The table
// is append-only; it doubles as the input of the reconcile retry endpoint.
type FetchLog struct {
	ID           int64     `json:"id"`
	SupplierCode string    `json:"supplier_code"`
	Account      string    `json:"account"`
	Endpoint     string    `json:"endpoint"`
	Attempt      int       `json:"attempt"`
	Request      string    `json:"request"`
	StatusCode   int       `json:"status_code"`
	Response     string    `json:"response"`
	Error        *string   `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Failed reports whether the attempt did not succeed.
func (l *FetchLog) Failed() bool {
	return l.Error != nil || l.StatusCode < 200 || l.StatusCode >= 300
}
