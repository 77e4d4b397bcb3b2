package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"suppliersync/internal/database"
	"suppliersync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.db")
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFailureReport(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	errMsg := "timeout"
	require.NoError(t, db.InsertFetchLog(ctx, &models.FetchLog{
		SupplierCode: "ownerclan",
		Account:      "acc1",
		Endpoint:     models.EndpointInvoiceUpload,
		Error:        &errMsg,
	}))
	require.NoError(t, db.InsertFetchLog(ctx, &models.FetchLog{
		SupplierCode: "ownerclan",
		Endpoint:     models.EndpointOrderCreate,
		StatusCode:   200,
	}))

	exporter := NewExporter(db, filepath.Join(t.TempDir(), "exports"), nil)
	path, err := exporter.FailureReport(ctx, "ownerclan", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Failures")
	require.NoError(t, err)
	// заголовок периода + шапка + одна упавшая строка
	require.Len(t, rows, 3)
	assert.Equal(t, "Log ID", rows[1][0])
	assert.Contains(t, rows[2], "invoice_upload")
	assert.Contains(t, rows[2], "timeout")
}

func TestFailureReportEmpty(t *testing.T) {
	db := newTestDB(t)
	exporter := NewExporter(db, filepath.Join(t.TempDir(), "exports"), nil)

	path, err := exporter.FailureReport(context.Background(), "ownerclan", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.FileExists(t, path)
}
