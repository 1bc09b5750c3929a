package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"listraksync/internal/domain"
	"listraksync/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Failed requests"

var columns = []string{"ID", "Method", "Endpoint", "Scope", "Retry count", "State", "Last retry", "Created", "Response"}

// Writer renders failed requests into an xlsx workbook.
type Writer struct {
	store domain.FailedRequestLister
	now   func() time.Time
}

func NewWriter(store domain.FailedRequestLister) *Writer {
	return &Writer{store: store, now: time.Now}
}

// Export writes every failed request, exhausted ones included, to path and
// returns the number of rows.
func (w *Writer) Export(ctx context.Context, path string) (int, error) {
	records, err := w.store.FailedRequests(ctx)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return 0, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	exhaustedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})

	for i, title := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, title)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "C", "C", 40)
	_ = f.SetColWidth(sheetName, "G", "H", 20)
	_ = f.SetColWidth(sheetName, "I", "I", 60)

	for i, rec := range records {
		row := i + 2
		state := "retryable"
		if !rec.Retryable() {
			state = "exhausted"
		}
		lastRetry := ""
		if rec.LastRetryAt != nil {
			lastRetry = rec.LastRetryAt.UTC().Format(time.RFC3339)
		}
		values := []any{
			rec.ID,
			rec.Method,
			rec.Endpoint,
			rec.Options.ScopeID,
			rec.RetryCount,
			state,
			lastRetry,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Response,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return 0, fmt.Errorf("write row %d: %w", row, err)
		}
		if rec.RetryCount >= models.MaxRetryCount {
			end, _ := excelize.CoordinatesToCellName(len(columns), row)
			_ = f.SetCellStyle(sheetName, start, end, exhaustedStyle)
		}
	}

	summaryRow := len(records) + 3
	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("Generated %s, %d records", w.now().UTC().Format(time.RFC3339), len(records)))

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("save report: %w", err)
	}
	return len(records), nil
}
