package models

import (
	"errors"
	"time"
)

// SupplierOrder is a fulfillment order placed with the supplier. A market
// order links to at most one of these; the link lives on RawOrder.
type SupplierOrder struct {
	SupplierOrderID string    `json:"supplier_order_id"`
	SupplierCode    string    `json:"supplier_code"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProductLink maps a marketplace listing to an internal product and on to
// the supplier's item code. Reconciliation walks this chain.
type ProductLink struct {
	SellerProductID  string `json:"seller_product_id"`
	ProductID        int64  `json:"product_id"`
	SupplierCode     string `json:"supplier_code"`
	SupplierItemCode string `json:"supplier_item_code"`
}

// Recipient is the fulfillment destination lifted from an order payload.
type Recipient struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
}

// Validate rejects a recipient with any empty required field.
func (r Recipient) Validate() error {
	switch {
	case r.Name == "":
		return errors.New("recipient name is empty")
	case r.Phone == "":
		return errors.New("recipient phone is empty")
	case r.Address == "":
		return errors.New("recipient address is empty")
	case r.PostalCode == "":
		return errors.New("recipient postal code is empty")
	}
	return nil
}
