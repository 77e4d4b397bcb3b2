package models

import "time"

// Raw records mirror what the supplier returned, keyed by the supplier's own
// identifiers. Payload keeps the full source object as JSON so downstream
// enrichment never depends on which fields this engine chose to lift out.

type RawItem struct {
	SupplierCode string    `json:"supplier_code"`
	ItemCode     string    `json:"item_code"`
	Name         string    `json:"name"`
	Price        int64     `json:"price"`
	UpdatedAt    time.Time `json:"updated_at"`
	Payload      string    `json:"payload"`
	FetchedAt    time.Time `json:"fetched_at"`
}

type RawOrder struct {
	SupplierCode    string    `json:"supplier_code"`
	OrderKey        string    `json:"order_key"`
	MarketOrderID   string    `json:"market_order_id"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updated_at"`
	Payload         string    `json:"payload"`
	FetchedAt       time.Time `json:"fetched_at"`
	SupplierOrderID *string   `json:"supplier_order_id,omitempty"`
}

type RawQnA struct {
	SupplierCode string    `json:"supplier_code"`
	QnAKey       string    `json:"qna_key"`
	ItemCode     string    `json:"item_code"`
	UpdatedAt    time.Time `json:"updated_at"`
	Payload      string    `json:"payload"`
	FetchedAt    time.Time `json:"fetched_at"`
}

type RawCategory struct {
	SupplierCode string    `json:"supplier_code"`
	CategoryKey  string    `json:"category_key"`
	Name         string    `json:"name"`
	ParentKey    string    `json:"parent_key"`
	UpdatedAt    time.Time `json:"updated_at"`
	Payload      string    `json:"payload"`
	FetchedAt    time.Time `json:"fetched_at"`
}
