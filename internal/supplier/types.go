package supplier

import (
	"encoding/json"
	"time"

	"suppliersync/internal/models"
)

// KeyPage is one page of the two-phase item sync: natural keys only, plus
// the continuation cursor.
type KeyPage struct {
	Keys        []string `json:"keys"`
	NextCursor  string   `json:"next_cursor"`
	HasNextPage bool     `json:"has_next_page"`
}

// ItemDetail is a full catalog record from the bulk lookup. Raw keeps the
// source object untouched; Description is the rich-text field that goes
// through normalization before storage.
type ItemDetail struct {
	ItemCode    string          `json:"item_code"`
	Name        string          `json:"name"`
	Price       int64           `json:"price"`
	Description string          `json:"description"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// OrderRecord is one marketplace order row from the supplier feed.
type OrderRecord struct {
	OrderKey      string          `json:"order_key"`
	MarketOrderID string          `json:"market_order_id"`
	Status        string          `json:"status"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// OrderPage is a cursor page of orders (single-phase sync, no key/detail
// split).
type OrderPage struct {
	Records     []OrderRecord `json:"records"`
	NextCursor  string        `json:"next_cursor"`
	HasNextPage bool          `json:"has_next_page"`
}

type QnARecord struct {
	QnAKey    string          `json:"qna_key"`
	ItemCode  string          `json:"item_code"`
	UpdatedAt time.Time       `json:"updated_at"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

type QnAPage struct {
	Records     []QnARecord `json:"records"`
	NextCursor  string      `json:"next_cursor"`
	HasNextPage bool        `json:"has_next_page"`
}

type CategoryRecord struct {
	CategoryKey string          `json:"category_key"`
	Name        string          `json:"name"`
	ParentKey   string          `json:"parent_key"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

type CategoryPage struct {
	Records     []CategoryRecord `json:"records"`
	NextCursor  string           `json:"next_cursor"`
	HasNextPage bool             `json:"has_next_page"`
}

// CreateOrderRequest is the fulfillment order placed with the supplier.
// MarketOrderKey doubles as the idempotency key on the supplier side.
type CreateOrderRequest struct {
	MarketOrderKey string           `json:"market_order_key"`
	ItemCode       string           `json:"item_code"`
	Quantity       int              `json:"quantity"`
	Recipient      models.Recipient `json:"recipient"`
}

type CreateOrderResponse struct {
	SupplierOrderID string `json:"supplier_order_id"`
	Status          string `json:"status"`
}

// CallResult is the raw outcome of a replayed call, preserved verbatim for
// the fetch log.
type CallResult struct {
	StatusCode int
	Body       string
}
