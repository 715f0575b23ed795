package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"quitflow/internal/ledger"
	"quitflow/internal/questionnaire"
)

// Service renders the accumulated questionnaire answers into exportable
// documents.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// BuildReviewWorkbook flattens the ledger entries into an xlsx workbook
// with one row per answered question.
func (s *Service) BuildReviewWorkbook(entries []ledger.Entry) ([]byte, error) {
	rows := questionnaire.AssembleReview(entries)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"no", "question", "answer", "note"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		values := []any{
			i + 1,
			row.Prompt,
			row.Primary,
			row.Secondary,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "B", "D", 48)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
