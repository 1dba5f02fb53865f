package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dyluth/kasm/pkg/ledger"
	"github.com/xuri/excelize/v2"
)

// XLSXSheetName is the worksheet the ledger is written to.
const XLSXSheetName = "Grades"

var xlsxHeaders = []string{"Target", "Internal ID", "Members", "Grade"}

// WriteXLSX writes the ledger as a single-sheet workbook to w.
func WriteXLSX(w io.Writer, l *ledger.Ledger) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", XLSXSheetName); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	for i, header := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(XLSXSheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, e := range l.Grades {
		row := i + 2
		values := []string{e.Target, e.InternalID, strings.Join(e.Members, ", "), e.Grade}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			// Grades stay strings: "1,0" is not a number in the workbook's locale.
			if err := f.SetCellStr(XLSXSheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := f.SetColWidth(XLSXSheetName, "A", "A", 32); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the ledger workbook to path.
func SaveXLSX(path string, l *ledger.Ledger) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WriteXLSX(out, l); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
