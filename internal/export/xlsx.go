package export

import (
	"fmt"
	"strings"

	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX saves the table to a single-sheet workbook at path. Cells in
// linkColumn become HYPERLINK formulas.
func WriteXLSX(path string, t Table, linkColumn string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return fmt.Errorf("xlsx: add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, col := range t.Columns {
		header.AddCell().SetString(col)
	}

	link := -1
	if linkColumn != "" {
		link = t.Index(linkColumn)
	}
	for _, values := range t.Rows {
		row := sheet.AddRow()
		for j, v := range values {
			cell := row.AddCell()
			if j == link && v != "" {
				cell.SetFormula(hyperlink(v))
				continue
			}
			cell.SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("xlsx: save: %w", err)
	}
	return nil
}

func hyperlink(target string) string {
	escaped := strings.ReplaceAll(target, `"`, `""`)
	return fmt.Sprintf(`HYPERLINK("%s","%s")`, escaped, escaped)
}
