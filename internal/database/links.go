package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suppliersync/internal/models"
)

// GetProductLink resolves a marketplace listing id to the internal product
// and supplier item code. (nil, nil) when the listing is unknown.
func (db *DB) GetProductLink(ctx context.Context, sellerProductID string) (*models.ProductLink, error) {
	var link models.ProductLink
	err := db.QueryRowContext(ctx,
		`SELECT seller_product_id, product_id, supplier_code, supplier_item_code
         FROM product_links WHERE seller_product_id = ?`,
		sellerProductID,
	).Scan(&link.SellerProductID, &link.ProductID, &link.SupplierCode, &link.SupplierItemCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product link: %w", err)
	}
	return &link, nil
}

// UpsertProductLink maintains the listing chain (fed by the listing
// publisher, consumed by reconciliation).
func (db *DB) UpsertProductLink(ctx context.Context, link models.ProductLink) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO product_links (seller_product_id, product_id, supplier_code, supplier_item_code)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(seller_product_id) DO UPDATE SET
            product_id = excluded.product_id,
            supplier_code = excluded.supplier_code,
            supplier_item_code = excluded.supplier_item_code`,
		link.SellerProductID, link.ProductID, link.SupplierCode, link.SupplierItemCode,
	)
	if err != nil {
		return fmt.Errorf("upsert product link: %w", err)
	}
	return nil
}

// ListUnreconciledOrders returns raw orders that have no supplier order yet.
func (db *DB) ListUnreconciledOrders(ctx context.Context, supplierCode string, limit int) ([]models.RawOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT supplier_code, order_key, market_order_id, status, updated_at, payload, fetched_at, supplier_order_id
         FROM raw_orders
         WHERE supplier_code = ? AND supplier_order_id IS NULL
         ORDER BY fetched_at ASC LIMIT ?`,
		supplierCode, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unreconciled orders: %w", err)
	}
	defer rows.Close()

	var orders []models.RawOrder
	for rows.Next() {
		var o models.RawOrder
		err := rows.Scan(
			&o.SupplierCode, &o.OrderKey, &o.MarketOrderID, &o.Status,
			&o.UpdatedAt, &o.Payload, &o.FetchedAt, &o.SupplierOrderID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetOrderLink returns the supplier order id linked to a market order, or
// nil when unlinked.
func (db *DB) GetOrderLink(ctx context.Context, supplierCode, orderKey string) (*string, error) {
	var linked *string
	err := db.QueryRowContext(ctx,
		`SELECT supplier_order_id FROM raw_orders WHERE supplier_code = ? AND order_key = ?`,
		supplierCode, orderKey,
	).Scan(&linked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order link: %w", err)
	}
	return linked, nil
}

// LinkSupplierOrder creates the supplier order row and points the market
// order at it, atomically. The one-link invariant is enforced by the WHERE
// supplier_order_id IS NULL guard.
func (db *DB) LinkSupplierOrder(ctx context.Context, order models.SupplierOrder, orderKey string) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin link: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO supplier_orders (supplier_order_id, supplier_code, status, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(supplier_order_id) DO UPDATE SET status = excluded.status`,
		order.SupplierOrderID, order.SupplierCode, order.Status, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert supplier order: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE raw_orders SET supplier_order_id = ?
         WHERE supplier_code = ? AND order_key = ? AND supplier_order_id IS NULL`,
		order.SupplierOrderID, order.SupplierCode, orderKey,
	)
	if err != nil {
		return fmt.Errorf("link market order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s/%s is already linked or missing", order.SupplierCode, orderKey)
	}

	return tx.Commit()
}
