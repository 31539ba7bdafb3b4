package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportService renders the document inventory as an XLSX workbook for
// offline review.
type ExportService struct {
	registry DocumentRegistry
}

func NewExportService(registry DocumentRegistry) *ExportService {
	return &ExportService{registry: registry}
}

// ExportInventoryXLSX returns the workbook bytes and the number of exported
// rows.
func (s *ExportService) ExportInventoryXLSX(ctx context.Context) (*bytes.Buffer, int, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Documents"
	f.SetSheetName("Sheet1", sheet)

	headers := []interface{}{"ID", "Filename", "Size (bytes)", "Status", "Is CV", "Chunks", "Summary", "Uploaded At", "Processed At", "Error"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, 0, fmt.Errorf("write header row: %w", err)
	}

	for i, doc := range docs {
		processedAt := ""
		if doc.ProcessedAt != nil {
			processedAt = doc.ProcessedAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			doc.ID,
			doc.Filename,
			doc.Size,
			doc.Status,
			doc.IsCV,
			doc.ChunkCount,
			doc.Summary,
			doc.UploadedAt.Format("2006-01-02 15:04:05"),
			processedAt,
			doc.ErrorMessage,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, 0, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	f.SetColWidth(sheet, "A", "A", 38)
	f.SetColWidth(sheet, "G", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("render workbook: %w", err)
	}
	return buf, len(docs), nil
}
