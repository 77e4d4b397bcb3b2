package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suppliersync/internal/models"
)

// RowWrite is one record upsert deferred into a checkpoint transaction.
// Every raw kind produces these through its constructor below, which is what
// lets one checkpoint path serve items, orders, Q&A and categories alike.
type RowWrite func(ctx context.Context, tx *sql.Tx) error

// CommitBatch writes a batch of records, the job progress and the sync
// state in a single transaction. A crash therefore loses at most one
// checkpoint of progress, and a reader of sync_state never sees a cursor
// ahead of the data it describes.
func (db *DB) CommitBatch(ctx context.Context, job *models.SyncJob, state *models.SyncState, writes []RowWrite) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint: %w", err)
	}
	defer tx.Rollback()

	for _, write := range writes {
		if err := write(ctx, tx); err != nil {
			return fmt.Errorf("checkpoint write: %w", err)
		}
	}

	now := time.Now()
	if job != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sync_jobs SET progress = ?, updated_at = ? WHERE id = ?`,
			job.Progress, now, job.ID,
		); err != nil {
			return fmt.Errorf("checkpoint progress: %w", err)
		}
	}

	if state != nil {
		if err := upsertSyncStateTx(ctx, tx, state); err != nil {
			return fmt.Errorf("checkpoint state: %w", err)
		}
	}

	return tx.Commit()
}

// ItemWrite builds the upsert for one raw item.
func ItemWrite(rec models.RawItem) RowWrite {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO raw_items (supplier_code, item_code, name, price, updated_at, payload, fetched_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(supplier_code, item_code) DO UPDATE SET
                name = excluded.name,
                price = excluded.price,
                updated_at = excluded.updated_at,
                payload = excluded.payload,
                fetched_at = excluded.fetched_at`,
			rec.SupplierCode, rec.ItemCode, rec.Name, rec.Price, rec.UpdatedAt, rec.Payload, rec.FetchedAt,
		)
		return err
	}
}

// OrderWrite builds the upsert for one raw order. The supplier_order_id
// back-reference is deliberately left alone: reconciliation owns it.
func OrderWrite(rec models.RawOrder) RowWrite {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO raw_orders (supplier_code, order_key, market_order_id, status, updated_at, payload, fetched_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(supplier_code, order_key) DO UPDATE SET
                market_order_id = excluded.market_order_id,
                status = excluded.status,
                updated_at = excluded.updated_at,
                payload = excluded.payload,
                fetched_at = excluded.fetched_at`,
			rec.SupplierCode, rec.OrderKey, rec.MarketOrderID, rec.Status, rec.UpdatedAt, rec.Payload, rec.FetchedAt,
		)
		return err
	}
}

// QnAWrite builds the upsert for one raw Q&A record.
func QnAWrite(rec models.RawQnA) RowWrite {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO raw_qna (supplier_code, qna_key, item_code, updated_at, payload, fetched_at)
            VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT(supplier_code, qna_key) DO UPDATE SET
                item_code = excluded.item_code,
                updated_at = excluded.updated_at,
                payload = excluded.payload,
                fetched_at = excluded.fetched_at`,
			rec.SupplierCode, rec.QnAKey, rec.ItemCode, rec.UpdatedAt, rec.Payload, rec.FetchedAt,
		)
		return err
	}
}

// CategoryWrite builds the upsert for one raw category.
func CategoryWrite(rec models.RawCategory) RowWrite {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO raw_categories (supplier_code, category_key, name, parent_key, updated_at, payload, fetched_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(supplier_code, category_key) DO UPDATE SET
                name = excluded.name,
                parent_key = excluded.parent_key,
                updated_at = excluded.updated_at,
                payload = excluded.payload,
                fetched_at = excluded.fetched_at`,
			rec.SupplierCode, rec.CategoryKey, rec.Name, rec.ParentKey, rec.UpdatedAt, rec.Payload, rec.FetchedAt,
		)
		return err
	}
}

// UpsertItem applies a single item write outside a checkpoint (used by
// one-off fetch paths and tests).
func (db *DB) UpsertItem(ctx context.Context, rec models.RawItem) error {
	return db.applyWrite(ctx, ItemWrite(rec))
}

func (db *DB) UpsertOrder(ctx context.Context, rec models.RawOrder) error {
	return db.applyWrite(ctx, OrderWrite(rec))
}

func (db *DB) UpsertQnA(ctx context.Context, rec models.RawQnA) error {
	return db.applyWrite(ctx, QnAWrite(rec))
}

func (db *DB) UpsertCategory(ctx context.Context, rec models.RawCategory) error {
	return db.applyWrite(ctx, CategoryWrite(rec))
}

func (db *DB) applyWrite(ctx context.Context, write RowWrite) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()
	if err := write(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// GetItem reads one raw item back, (nil, nil) when absent.
func (db *DB) GetItem(ctx context.Context, supplierCode, itemCode string) (*models.RawItem, error) {
	var rec models.RawItem
	err := db.QueryRowContext(ctx,
		`SELECT supplier_code, item_code, name, price, updated_at, payload, fetched_at
         FROM raw_items WHERE supplier_code = ? AND item_code = ?`,
		supplierCode, itemCode,
	).Scan(&rec.SupplierCode, &rec.ItemCode, &rec.Name, &rec.Price, &rec.UpdatedAt, &rec.Payload, &rec.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &rec, nil
}

// CountRows is a small test/ops helper reporting table sizes.
func (db *DB) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "raw_items", "raw_orders", "raw_qna", "raw_categories", "fetch_logs", "sync_jobs", "supplier_orders":
	default:
		return 0, fmt.Errorf("unknown table: %s", table)
	}
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, err
}
