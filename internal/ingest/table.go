package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatOf picks the reader from the file extension.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

// table is a header row plus the data rows beneath it. Rows may be shorter
// than the header.
type table struct {
	header []string
	rows   [][]string
}

func readTable(r io.Reader, format Format) (*table, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	// the header is the first row with any content
	for i, row := range rows {
		if blank(row) {
			continue
		}
		header := make([]string, len(row))
		for j, cell := range row {
			header[j] = strings.TrimSpace(cell)
		}
		return &table{header: header, rows: rows[i+1:]}, nil
	}
	return nil, ErrEmptyFile
}

// readXLSX returns the first sheet with raw cell values, so dates come back
// as Excel serial numbers rather than locale-formatted strings.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// columns maps header labels to their column index. The first occurrence of
// a duplicated label wins.
type columns map[string]int

func columnsOf(header []string) columns {
	cols := make(columns, len(header))
	for i, h := range header {
		if _, dup := cols[h]; !dup && h != "" {
			cols[h] = i
		}
	}
	return cols
}

func (c columns) missing(required []string) []string {
	var out []string
	for _, h := range required {
		if _, ok := c[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

// get returns the trimmed cell under label, or "" when the row is short or
// the column is absent.
func (c columns) get(row []string, label string) string {
	i, ok := c[label]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
