package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suppliersync/internal/models"
)

// GetSyncState returns the resumption row or (nil, nil) when this
// (supplier, sync type) has never completed a checkpoint.
func (db *DB) GetSyncState(ctx context.Context, supplierCode, syncType string) (*models.SyncState, error) {
	var state models.SyncState
	err := db.QueryRowContext(ctx,
		`SELECT supplier_code, sync_type, last_synced_at, last_cursor, updated_at
         FROM sync_state WHERE supplier_code = ? AND sync_type = ?`,
		supplierCode, syncType,
	).Scan(&state.SupplierCode, &state.SyncType, &state.LastSyncedAt, &state.LastCursor, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	return &state, nil
}

// SaveSyncState upserts the row outside a checkpoint transaction. The sync
// pipelines go through CommitBatch instead; this exists for the final
// watermark write after a window completes.
func (db *DB) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save state: %w", err)
	}
	defer tx.Rollback()
	if err := upsertSyncStateTx(ctx, tx, state); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertSyncStateTx(ctx context.Context, tx *sql.Tx, state *models.SyncState) error {
	state.UpdatedAt = time.Now()
	_, err := tx.ExecContext(ctx, `
        INSERT INTO sync_state (supplier_code, sync_type, last_synced_at, last_cursor, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(supplier_code, sync_type) DO UPDATE SET
            last_synced_at = excluded.last_synced_at,
            last_cursor = excluded.last_cursor,
            updated_at = excluded.updated_at`,
		state.SupplierCode, state.SyncType, state.LastSyncedAt, state.LastCursor, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	return nil
}
