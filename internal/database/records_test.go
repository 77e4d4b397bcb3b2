package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"suppliersync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertItemIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := models.RawItem{
		SupplierCode: "ownerclan",
		ItemCode:     "W123",
		Name:         "old name",
		Price:        1000,
		UpdatedAt:    time.Now().Add(-time.Hour),
		Payload:      `{"v":1}`,
		FetchedAt:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.UpsertItem(ctx, first))

	second := first
	second.Name = "new name"
	second.Price = 2000
	second.Payload = `{"v":2}`
	second.FetchedAt = time.Now()
	require.NoError(t, db.UpsertItem(ctx, second))

	count, err := db.CountRows(ctx, "raw_items")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := db.GetItem(ctx, "ownerclan", "W123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new name", got.Name)
	assert.Equal(t, int64(2000), got.Price)
	assert.Equal(t, `{"v":2}`, got.Payload)
}

func TestUpsertDifferentSuppliersDoNotCollide(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := models.RawItem{SupplierCode: "ownerclan", ItemCode: "W1", FetchedAt: time.Now()}
	require.NoError(t, db.UpsertItem(ctx, rec))
	rec.SupplierCode = "domeggook"
	require.NoError(t, db.UpsertItem(ctx, rec))

	count, err := db.CountRows(ctx, "raw_items")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCommitBatchPersistsStateWithData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := &models.SyncJob{ID: "job-1", SupplierCode: "ownerclan", JobType: models.JobItemsRaw}
	require.NoError(t, db.CreateJob(ctx, job))

	var writes []RowWrite
	for _, code := range []string{"A", "B", "C"} {
		writes = append(writes, ItemWrite(models.RawItem{
			SupplierCode: "ownerclan", ItemCode: code, FetchedAt: time.Now(),
		}))
	}
	job.Progress = 3
	state := &models.SyncState{
		SupplierCode: "ownerclan",
		SyncType:     models.JobItemsRaw,
		LastSyncedAt: time.Now(),
		LastCursor:   "cursor-after-C",
	}

	require.NoError(t, db.CommitBatch(ctx, job, state, writes))

	count, err := db.CountRows(ctx, "raw_items")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := db.GetSyncState(ctx, "ownerclan", models.JobItemsRaw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cursor-after-C", got.LastCursor)

	reloaded, err := db.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Progress)
}

func TestCommitBatchAbortsAtomically(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := &models.SyncJob{ID: "job-2", SupplierCode: "ownerclan", JobType: models.JobItemsRaw}
	require.NoError(t, db.CreateJob(ctx, job))

	boom := errors.New("write failed")
	writes := []RowWrite{
		ItemWrite(models.RawItem{SupplierCode: "ownerclan", ItemCode: "X", FetchedAt: time.Now()}),
		func(ctx context.Context, tx *sql.Tx) error { return boom },
	}
	job.Progress = 2
	state := &models.SyncState{SupplierCode: "ownerclan", SyncType: models.JobItemsRaw, LastSyncedAt: time.Now(), LastCursor: "must-not-appear"}

	err := db.CommitBatch(ctx, job, state, writes)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	// Ни данные, ни курсор не должны были закоммититься
	count, err := db.CountRows(ctx, "raw_items")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	got, err := db.GetSyncState(ctx, "ownerclan", models.JobItemsRaw)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSyncStateRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	missing, err := db.GetSyncState(ctx, "ownerclan", models.JobOrdersRaw)
	require.NoError(t, err)
	assert.Nil(t, missing)

	state := &models.SyncState{
		SupplierCode: "ownerclan",
		SyncType:     models.JobOrdersRaw,
		LastSyncedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastCursor:   "abc",
	}
	require.NoError(t, db.SaveSyncState(ctx, state))

	state.LastCursor = "def"
	require.NoError(t, db.SaveSyncState(ctx, state))

	got, err := db.GetSyncState(ctx, "ownerclan", models.JobOrdersRaw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "def", got.LastCursor)
	assert.True(t, got.LastSyncedAt.Equal(state.LastSyncedAt))
}
