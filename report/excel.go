// Package report exports score tables and simulation tabulations to .xlsx
// workbooks for offline inspection. Displayed scores are normalized by
// subtracting the column maximum; raw values are written alongside.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gosbic/domain/model"
	"gosbic/sim"
)

// Writer accumulates sheets into one workbook.
type Writer struct {
	file *excelize.File
}

// NewWriter creates an empty workbook.
func NewWriter() *Writer {
	return &Writer{file: excelize.NewFile()}
}

// WriteScoreTable renders one score table onto the named sheet.
func (w *Writer) WriteScoreTable(sheet string, table *model.ScoreTable) error {
	if _, err := w.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	headers := []string{"model", "complexity", "dimension", "logLike", "BIC", "sBIC", "BIC (rel)", "sBIC (rel)", "dominant by", "error"}
	for col, h := range headers {
		if err := w.setCell(sheet, col+1, 1, h); err != nil {
			return err
		}
	}
	normalized := table.Normalized()
	for i, row := range table.Rows {
		rel := normalized.Rows[i]
		values := []interface{}{
			row.Model, row.Complexity, row.Dimension,
			row.LogLike, row.BIC, row.SBIC,
			rel.BIC, rel.SBIC, row.DominantBy, row.Err,
		}
		for col, v := range values {
			if f, isFloat := v.(float64); isFloat && f != f {
				v = "NA" // NaN from a failed fit
			}
			if err := w.setCell(sheet, col+1, i+2, v); err != nil {
				return err
			}
		}
	}
	summary := fmt.Sprintf("n=%d selectedBIC=%d selectedSBIC=%d", table.SampleSize, table.SelectedBIC, table.SelectedSBIC)
	return w.setCell(sheet, 1, len(table.Rows)+3, summary)
}

// WriteTabulation renders a selection-frequency table onto the named sheet.
func (w *Writer) WriteTabulation(sheet string, tab sim.Tabulation) error {
	if _, err := w.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	headers := []string{"complexity", "BIC picks", "sBIC picks", "BIC rate", "sBIC rate"}
	for col, h := range headers {
		if err := w.setCell(sheet, col+1, 1, h); err != nil {
			return err
		}
	}
	for i, c := range tab.Complexities() {
		values := []interface{}{
			c, tab.FreqBIC[c], tab.FreqSBIC[c],
			tab.SelectionRate(tab.FreqBIC, c), tab.SelectionRate(tab.FreqSBIC, c),
		}
		for col, v := range values {
			if err := w.setCell(sheet, col+1, i+2, v); err != nil {
				return err
			}
		}
	}
	summary := fmt.Sprintf("replicates=%d failed=%d modalBIC=%d modalSBIC=%d",
		tab.Replicates, tab.Failed, tab.ModalBIC, tab.ModalSBIC)
	return w.setCell(sheet, 1, len(tab.Complexities())+3, summary)
}

// Save writes the workbook, dropping the default empty sheet if any other
// sheet was added.
func (w *Writer) Save(path string) error {
	if len(w.file.GetSheetList()) > 1 {
		if err := w.file.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (w *Writer) setCell(sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return w.file.SetCellValue(sheet, cell, value)
}
