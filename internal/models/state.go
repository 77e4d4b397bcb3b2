package models

import "time"

// SyncState is the single resumption row per (supplier, sync type). It is
// written only inside the checkpoint transaction, so its cursor is never
// ahead of the data it describes.
type SyncState struct {
	SupplierCode string    `json:"supplier_code"`
	SyncType     string    `json:"sync_type"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	LastCursor   string    `json:"last_cursor"`
	UpdatedAt    time.Time `json:"updated_at"`
}
