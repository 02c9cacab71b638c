package sheet

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/eugenenazirov/boxplan/internal/calculator"
	"github.com/eugenenazirov/boxplan/internal/report"
)

const (
	planSheet     = "Plan"
	summarySheet  = "Summary"
	templateSheet = "SKUs"
	defaultSheet  = "Sheet1"
)

// WriteXLSX writes the plan as a workbook with a record sheet and a summary sheet.
func WriteXLSX(w io.Writer, plan calculator.Plan) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(defaultSheet, planSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeHeader(f, planSheet, report.Header); err != nil {
		return err
	}
	for i, rec := range plan.Records {
		row := []any{rec.SKUID, rec.Quantity, rec.UnitWeight, rec.Note}
		if err := setRow(f, planSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(planSheet, "A", "A", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(planSheet, "D", "D", 48); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rowNum := 1
	for _, line := range report.Summary(plan) {
		if err := setRow(f, summarySheet, rowNum, []any{line.Label, line.Value}); err != nil {
			return err
		}
		rowNum++
	}
	for _, warning := range plan.Warnings {
		if err := setRow(f, summarySheet, rowNum, []any{"Warning", warning.Message}); err != nil {
			return err
		}
		rowNum++
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write XLSX: %w", err)
	}
	return nil
}

// WriteCSV writes the record table followed by a blank line and the summary.
func WriteCSV(w io.Writer, plan calculator.Plan) error {
	cw := csv.NewWriter(w)

	records := [][]string{report.Header}
	records = append(records, report.Table(plan)...)
	records = append(records, []string{})
	for _, line := range report.Summary(plan) {
		records = append(records, []string{line.Label, line.Value})
	}
	for _, warning := range plan.Warnings {
		records = append(records, []string{"Warning", warning.Message})
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	return nil
}

// WriteTemplate writes an XLSX input template with one example row.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(defaultSheet, templateSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeHeader(f, templateSheet, InputHeader); err != nil {
		return err
	}
	if err := setRow(f, templateSheet, 2, []any{"SKU-001", 20, 15, 10, 2}); err != nil {
		return err
	}
	if err := f.SetColWidth(templateSheet, "A", "E", 14); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write XLSX: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []string) error {
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := setRow(f, sheet, 1, cells); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("resolve header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("resolve cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
