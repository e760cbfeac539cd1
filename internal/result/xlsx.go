package result

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

// SaveXLSX writes the same table as a single-sheet workbook for spreadsheet
// consumers. Cell values mirror the CSV, null marker included.
func (t *Table) SaveXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := t.Header()
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for i, r := range t.Rows {
		var ma any = nullMarker
		if !math.IsNaN(r.MovingAvg) {
			ma = Round6(r.MovingAvg)
		}
		row := []any{
			r.SentenceIndex,
			r.SentenceText,
			r.RawLabel,
			r.LabelID,
			r.LabelName,
			Round6(r.Score),
			Round6(r.Score01),
			Round6(r.ScoreNeg11),
			ma,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
