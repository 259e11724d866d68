package loader

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

// ExportSheet is the sheet name used for processed data exports.
const ExportSheet = "Processed_Data"

// Sheets lists the sheet names of a workbook in order.
func Sheets(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// LoadXLSX reads one sheet with a header row. sheetName wins over the
// 1-based sheetIndex; with neither the first sheet is used.
func LoadXLSX(path, sheetName string, sheetIndex int, opt Options) (*dataset.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: no sheets: %w", filepath.Base(path), ErrEmptyInput)
	}
	sheet := sheetName
	if sheet == "" {
		if sheetIndex < 1 {
			sheetIndex = 1
		}
		if sheetIndex > len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", sheetIndex, len(sheets))
		}
		sheet = sheets[sheetIndex-1]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q: %w", filepath.Base(path), sheet, ErrEmptyInput)
	}
	records := rows[1:]
	if opt.MaxRows > 0 && len(records) > opt.MaxRows {
		records = records[:opt.MaxRows]
	}
	// GetRows drops trailing empty cells; pad so ragged-row warnings only flag real problems.
	width := len(rows[0])
	for i, rec := range records {
		if len(rec) < width {
			padded := make([]string, width)
			copy(padded, rec)
			records[i] = padded
		}
	}
	ds, err := build(rows[0], records, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: sheet %q: %w", filepath.Base(path), sheet, err)
	}
	opt.logger().Debug("loaded xlsx", zap.String("path", path), zap.String("sheet", sheet), zap.Int("rows", ds.Rows()))
	return ds, nil
}

// ExportXLSX writes ds as a single-sheet workbook named Processed_Data.
// Numbers are written as numbers, times and strings as display text, nulls as empty cells.
func ExportXLSX(ds *dataset.Dataset, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), ExportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(ExportSheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	header := make([]interface{}, ds.Width())
	for j, n := range ds.Names() {
		header[j] = n
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < ds.Rows(); i++ {
		row := make([]interface{}, ds.Width())
		for j, c := range ds.Columns() {
			switch {
			case c.IsNull(i):
				row[j] = nil
			case c.Type == dataset.Number:
				row[j] = c.Numbers[i]
			default:
				row[j] = c.Display(i)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return f.Write(w)
}

// SaveXLSX exports ds to path atomically, replacing any existing file.
func SaveXLSX(ds *dataset.Dataset, path string) error {
	var buf bytes.Buffer
	if err := ExportXLSX(ds, &buf); err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}
