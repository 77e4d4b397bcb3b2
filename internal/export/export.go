// Package export строит xlsx отчеты для операторов.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"suppliersync/internal/database"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes reconciliation-failure reports into the exports directory.
type Exporter struct {
	db   *database.DB
	path string
	log  zerolog.Logger
}

func NewExporter(db *database.DB, path string, logger *zerolog.Logger) *Exporter {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "export").Logger()
	}
	if path == "" {
		path = "exports"
	}
	return &Exporter{db: db, path: path, log: log}
}

// FailureReport собирает упавшие вызовы за период в xlsx
func (e *Exporter) FailureReport(ctx context.Context, supplierCode string, since time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	logs, err := e.db.ListFailedFetchLogs(ctx, supplierCode, since, 1000)
	if err != nil {
		return "", fmt.Errorf("error getting failed calls: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Failures"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Failed supplier calls since %s", since.Format("02.01.2006 15:04")))
	_ = f.MergeCell(sheetName, "A1", "H1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	columns := []string{"Log ID", "Supplier", "Account", "Endpoint", "Attempt", "Status", "Error", "Created"}
	colStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, col)
		_ = f.SetCellStyle(sheetName, cell, cell, colStyle)
	}

	for i, l := range logs {
		row := i + 3
		errText := ""
		if l.Error != nil {
			errText = *l.Error
		}
		values := []interface{}{l.ID, l.SupplierCode, l.Account, l.Endpoint, l.Attempt, l.StatusCode, errText, l.CreatedAt.Format("2006-01-02 15:04:05")}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 10)
	_ = f.SetColWidth(sheetName, "B", "D", 18)
	_ = f.SetColWidth(sheetName, "G", "H", 35)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("reconcile_failures_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.log.Info().Str("file_path", filePath).Int("rows", len(logs)).Msg("failure report created")
	return filePath, nil
}
