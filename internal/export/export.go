// Package export renders stored curricula as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-curriculum/internal/store"
)

// ContentType is the MIME type of the rendered workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	overviewSheet    = "Overview"
	stepsSheet       = "Steps"
	assignmentsSheet = "Assignments"
)

var (
	stepsHeader       = []any{"Module", "Module title", "Step", "Step title", "Description", "Estimated time", "Resources"}
	assignmentsHeader = []any{"Module", "Module title", "Assignment", "Description", "Estimated time"}
)

// Filename returns a download name for c.
func Filename(c store.StoredCurriculum) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(c.Title))
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "curriculum"
	}
	return slug + ".xlsx"
}

// WriteXLSX writes c as a workbook with an overview sheet, one row per step
// and one row per module assignment.
func WriteXLSX(w io.Writer, c store.StoredCurriculum) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{stepsSheet, assignmentsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	overview := [][]any{
		{"Title", c.Title},
		{"Description", c.Description},
		{"Experience level", c.ExperienceLevel},
		{"Modules", len(c.Modules)},
		{"Created", c.CreatedAt.UTC().Format("2006-01-02 15:04")},
	}
	for i, row := range overview {
		if err := setRow(f, overviewSheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(overviewSheet, "A1", fmt.Sprintf("A%d", len(overview)), bold); err != nil {
		return fmt.Errorf("style overview: %w", err)
	}
	if err := f.SetColWidth(overviewSheet, "A", "A", 18); err != nil {
		return fmt.Errorf("size overview: %w", err)
	}
	if err := f.SetColWidth(overviewSheet, "B", "B", 80); err != nil {
		return fmt.Errorf("size overview: %w", err)
	}

	if err := writeHeader(f, stepsSheet, stepsHeader, bold); err != nil {
		return err
	}
	if err := writeHeader(f, assignmentsSheet, assignmentsHeader, bold); err != nil {
		return err
	}

	stepRow, assignmentRow := 2, 2
	for mi, m := range c.Modules {
		for si, s := range m.Steps {
			resources := make([]string, 0, len(s.Resources))
			for _, res := range s.Resources {
				resources = append(resources, fmt.Sprintf("%s (%s)", res.Title, res.URL))
			}
			row := []any{mi + 1, m.Title, si + 1, s.Title, s.Description, s.EstimatedTime, strings.Join(resources, "\n")}
			if err := setRow(f, stepsSheet, stepRow, row); err != nil {
				return err
			}
			stepRow++
		}
		if m.Assignment == nil {
			continue
		}
		row := []any{mi + 1, m.Title, m.Assignment.Title, m.Assignment.Description, m.Assignment.EstimatedTime}
		if err := setRow(f, assignmentsSheet, assignmentRow, row); err != nil {
			return err
		}
		assignmentRow++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []any, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
