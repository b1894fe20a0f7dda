package history

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kartoza/stunting-risk/internal/inference"
)

const exportSheet = "Screenings"

var exportHeader = []string{
	"ID", "Created (UTC)", "Gender", "Age (months)", "Birth Weight (kg)", "Birth Length (cm)",
	"Body Weight (kg)", "Body Length (cm)", "P(stunted)", "P(not stunted)", "Threshold",
	"Result", "Model Vote", "Model Version",
}

// ExportXLSX writes every entry, newest first, to an Excel workbook
func (s *Store) ExportXLSX(ctx context.Context, w io.Writer) error {
	entries, err := s.List(ctx, 0, 0)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, title); err != nil {
			return err
		}
	}

	for i, e := range entries {
		label := inference.LabelNotAtRisk
		if e.AtRisk {
			label = inference.LabelAtRisk
		}
		row := []interface{}{
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Gender, e.AgeMonths,
			e.BirthWeightKg, e.BirthLengthCm, e.CurrentWeightKg, e.CurrentLengthCm,
			e.ProbabilityStunted, e.ProbabilityNotStunted, e.Threshold,
			label, e.ModelVote, e.ModelVersion,
		}
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
