package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetSummary     = "Summary"
	SheetOffices     = "Top Offices"
	SheetAgents      = "Top Agents"
	SheetCommissions = "Commissions"
)

// WriteXLSX writes the monthly report as a workbook with one sheet per
// section.
func WriteXLSX(w io.Writer, r *Monthly) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	period := fmt.Sprintf("%d-%02d", r.Window.Year(), int(r.Window.Month()))
	summary := [][]any{
		{"Period", period},
		{"Average Days on Market", FormatDays(r.AverageDaysOnMarket)},
		{"Average Sale Price", FormatPrice(r.AverageSalePrice)},
	}

	offices := [][]any{{"Office ID", "Address", "Sales Count"}}
	for _, o := range r.TopOffices {
		offices = append(offices, []any{int64(o.OfficeID), o.Address, o.SalesCount})
	}

	agents := [][]any{{"Agent ID", "Name", "Email", "Phone", "Sales Count"}}
	for _, a := range r.TopAgents {
		agents = append(agents, []any{int64(a.AgentID), a.Name, a.Email, a.Phone, a.SalesCount})
	}

	commissions := [][]any{{"Agent ID", "Total Commission"}}
	for _, c := range r.Commissions {
		commissions = append(commissions, []any{int64(c.AgentID), c.Amount.StringFixed(2)})
	}

	sheets := []struct {
		name   string
		rows   [][]any
		header bool
	}{
		{SheetSummary, summary, false},
		{SheetOffices, offices, true},
		{SheetAgents, agents, true},
		{SheetCommissions, commissions, true},
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}

		for rowIdx, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				return err
			}
			values := row
			if err := f.SetSheetRow(s.name, cell, &values); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", s.name, rowIdx+1, err)
			}
		}

		if s.header && len(s.rows) > 0 {
			last, err := excelize.CoordinatesToCellName(len(s.rows[0]), 1)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
				return fmt.Errorf("failed to style %s header: %w", s.name, err)
			}
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
