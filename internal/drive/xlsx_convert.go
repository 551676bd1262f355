package drive

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// convertXLSXToCSV flattens the usage sheet of a workbook into CSV at csvPath.
// Blank rows are dropped, cells are trimmed and every record is padded to the
// header width. The CSV is written beside csvPath and renamed into place.
func convertXLSXToCSV(xlsxPath, csvPath string) error {
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return fmt.Errorf("open workbook %s: %w", xlsxPath, err)
	}
	defer f.Close()

	records, err := usageSheet(f)
	if err != nil {
		return fmt.Errorf("%s: %w", xlsxPath, err)
	}

	tmp := csvPath + ".part"
	if err := writeCSV(tmp, records); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, csvPath)
}

// usageSheet returns the non-blank rows of the first sheet that has any.
func usageSheet(f *excelize.File) ([][]string, error) {
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		records := compactRows(rows)
		if len(records) > 0 {
			return records, nil
		}
	}
	return nil, fmt.Errorf("workbook has no data in %d sheet(s)", len(sheets))
}

func compactRows(rows [][]string) [][]string {
	var out [][]string
	width := 0
	for _, row := range rows {
		blank := true
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
			if row[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if len(out) == 0 {
			width = len(row)
		}
		for len(row) < width {
			row = append(row, "")
		}
		out = append(out, row)
	}
	return out
}

func writeCSV(path string, records [][]string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Sync()
}
