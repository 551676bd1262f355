// Package ingest reads monthly usage reports into drug time series.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
	"github.com/xuri/excelize/v2"
)

// MovingAverageMonths is the window of Drug.MovingAvg12M.
const MovingAverageMonths = 12

var (
	ErrMissingCodeColumn = errors.New("usage report has no drug_code column")
	ErrNoMonthColumns    = errors.New("usage report has no month columns")
	ErrUnsupportedFormat = errors.New("unsupported usage report format")
)

// CellError reports a usage cell that is not a non-negative number.
type CellError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("row %d column %q: invalid usage %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Report is the parsed content of one usage report.
type Report struct {
	Months    []string
	Drugs     []domain.Drug
	Inventory []domain.InventoryItem
}

const (
	colCode = iota
	colName
	colCompany
	colType
	colStock
)

var headerAliases = map[string]int{
	"drug_code":     colCode,
	"code":          colCode,
	"약품코드":          colCode,
	"drug_name":     colName,
	"name":          colName,
	"약품명":           colName,
	"company":       colCompany,
	"제약회사":          colCompany,
	"drug_type":     colType,
	"type":          colType,
	"약품유형":          colType,
	"current_stock": colStock,
	"stock":         colStock,
	"재고수량":          colStock,
}

type layout struct {
	fixed  map[int]int
	months []int
}

func (l layout) cell(record []string, col int) string {
	idx, ok := l.fixed[col]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseHeader(header []string) (layout, []string, error) {
	l := layout{fixed: make(map[int]int)}
	var months []string
	for i, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if col, ok := headerAliases[strings.ToLower(name)]; ok {
			if _, dup := l.fixed[col]; !dup {
				l.fixed[col] = i
			}
			continue
		}
		if name == "" {
			continue
		}
		l.months = append(l.months, i)
		months = append(months, name)
	}
	if _, ok := l.fixed[colCode]; !ok {
		return layout{}, nil, ErrMissingCodeColumn
	}
	if len(l.months) == 0 {
		return layout{}, nil, ErrNoMonthColumns
	}
	return l, months, nil
}

// ParseRecords turns header plus data rows into a Report. Rows without a drug
// code are skipped; later rows replace earlier rows for the same code.
func ParseRecords(records [][]string, now time.Time) (*Report, error) {
	if len(records) == 0 {
		return nil, ErrMissingCodeColumn
	}
	l, months, err := parseHeader(records[0])
	if err != nil {
		return nil, err
	}

	report := &Report{Months: months}
	seen := make(map[string]int)
	for i, record := range records[1:] {
		row := i + 2
		code := l.cell(record, colCode)
		if code == "" {
			continue
		}

		series := make(domain.UsageSeries, len(l.months))
		for j, idx := range l.months {
			var raw string
			if idx < len(record) {
				raw = record[idx]
			}
			v, err := parseQuantity(raw)
			if err != nil {
				return nil, &CellError{Row: row, Column: months[j], Value: raw, Err: err}
			}
			series[j] = v
		}

		drug := domain.Drug{
			Code:         code,
			Name:         l.cell(record, colName),
			Company:      l.cell(record, colCompany),
			DrugType:     l.cell(record, colType),
			MonthlyUsage: series,
			MovingAvg12M: domain.TrailingAverage(series, MovingAverageMonths),
			UpdatedAt:    now,
		}
		if pos, ok := seen[code]; ok {
			report.Drugs[pos] = drug
		} else {
			seen[code] = len(report.Drugs)
			report.Drugs = append(report.Drugs, drug)
		}

		if _, ok := l.fixed[colStock]; ok {
			raw := l.cell(record, colStock)
			stock, err := parseQuantity(raw)
			if err != nil {
				return nil, &CellError{Row: row, Column: "current_stock", Value: raw, Err: err}
			}
			report.Inventory = append(report.Inventory, domain.InventoryItem{
				DrugCode:     code,
				DrugName:     drug.Name,
				CurrentStock: stock,
				UpdatedAt:    now,
			})
		}
	}

	return report, nil
}

// parseQuantity accepts thousands separators and treats "" and "-" as zero.
func parseQuantity(raw string) (int, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" || s == "-" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not a number")
		}
		v = int(math.Round(f))
	}
	if v < 0 {
		return 0, periodicity.ErrNegativeUsage
	}
	return v, nil
}

// ParseCSV reads a CSV usage report.
func ParseCSV(r io.Reader, now time.Time) (*Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return ParseRecords(records, now)
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader, now time.Time) (*Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	return ParseRecords(records, now)
}

// ReadFile parses a .csv or .xlsx report from disk.
func ReadFile(path string, now time.Time) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(f, now)
	case ".xlsx":
		return ParseXLSX(f, now)
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// IsReport reports whether the file name has a supported extension.
func IsReport(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
