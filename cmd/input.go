package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/loader"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
	"github.com/KaramelBytes/dashloom-cli/internal/workflow"
)

// inputFlags are the loader flags shared by every command that reads a file.
type inputFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	missing    []string
	maxRows    int
	sheetName  string
	sheetIndex int
	types      []string
}

func (f *inputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().StringSliceVar(&f.missing, "missing", nil, "cell values treated as missing (replaces the defaults)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "maximum rows to read (0 = unlimited)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	cmd.Flags().StringArrayVar(&f.types, "column-type", nil, "declare a column type as name=type (string|int|float|bool|datetime|category); repeatable")
}

func (f *inputFlags) options() (loader.Options, error) {
	opt := loader.DefaultOptions()
	opt.Logger = logger
	opt.MaxRows = f.maxRows
	opt.SheetName = f.sheetName
	if f.sheetIndex > 0 {
		opt.SheetIndex = f.sheetIndex
	}
	if len(f.missing) > 0 {
		opt.MissingTokens = append([]string{""}, f.missing...)
	}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(f.thousands) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	types, err := loader.ParseColumnTypes(f.types)
	if err != nil {
		return opt, fmt.Errorf("--column-type: %w", err)
	}
	opt.ColumnTypes = types
	return opt, nil
}

func (f *inputFlags) load(path string) (*dataset.Dataset, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	ds, err := loader.Load(path, opt)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// start loads path and opens a workflow on it.
func (f *inputFlags) start(path string) (*workflow.Context, error) {
	ds, err := f.load(path)
	if err != nil {
		return nil, err
	}
	return workflow.Start(ds, workflowOptions())
}

// writeDataset exports ds as XLSX, or as CSV when path ends in .csv.
func writeDataset(ds *dataset.Dataset, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		if err := loader.WriteCSV(ds, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return loader.SaveXLSX(ds, path)
}
