package models

import "time"

// SupplierToken is a cached supplier API credential. The issuer lives
// outside this service; the cache only keeps what was handed out so
// concurrent workers don't re-resolve it per call.
type SupplierToken struct {
	SupplierCode string    `json:"supplier_code"`
	Account      string    `json:"account"`
	Token        string    `json:"token"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (t *SupplierToken) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}
