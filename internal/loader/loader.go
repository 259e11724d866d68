package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

var (
	// ErrEmptyInput is returned when a file has no header or no data rows.
	ErrEmptyInput = errors.New("input has no data")
	// ErrUnsupported indicates a file extension the loader cannot read.
	ErrUnsupported = errors.New("unsupported file format")
)

// DefaultMissingTokens are cell values read as missing.
var DefaultMissingTokens = []string{"", "NA", "N/A", "NaN", "null", "NULL", "None", "-"}

// Options controls how raw cells become a Dataset.
type Options struct {
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t' and '|'.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// MissingTokens replaces DefaultMissingTokens when non-nil.
	MissingTokens []string
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
	// SheetName and SheetIndex (1-based) select the XLSX sheet; name wins.
	SheetName  string
	SheetIndex int
	// ColumnTypes forces a type on named columns after reading.
	ColumnTypes map[string]ColumnType
	Logger      *zap.Logger
}

// DefaultOptions returns reasonable defaults for loading.
func DefaultOptions() Options {
	return Options{SheetIndex: 1}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) missing() map[string]bool {
	tokens := o.MissingTokens
	if tokens == nil {
		tokens = DefaultMissingTokens
	}
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[t] = true
	}
	return m
}

// Load reads a CSV/TSV or XLSX file, chosen by extension.
func Load(path string, opt Options) (*dataset.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return LoadCSV(path, opt)
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, opt.SheetName, opt.SheetIndex, opt)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// build turns a header and string records into typed columns. A column whose
// non-missing cells all parse as numbers becomes a Number column; everything
// else stays String with missing tokens marked null.
func build(header []string, records [][]string, opt Options) (*dataset.Dataset, error) {
	if len(header) == 0 || len(records) == 0 {
		return nil, ErrEmptyInput
	}
	log := opt.logger()
	missing := opt.missing()
	names := uniqueHeaders(header)
	cols := make([]*dataset.Column, 0, len(names))
	ragged := 0
	for j, name := range names {
		raw := make([]string, len(records))
		null := make([]bool, len(records))
		nums := make([]float64, len(records))
		// declared text columns keep their raw cells, leading zeros included
		t := opt.ColumnTypes[name]
		numeric, seen := t != TypeString && t != TypeCategory, 0
		for i, rec := range records {
			if j == 0 && len(rec) != len(names) {
				ragged++
			}
			v := ""
			if j < len(rec) {
				v = strings.TrimSpace(rec[j])
			}
			if missing[v] {
				null[i] = true
				continue
			}
			raw[i] = v
			seen++
			if numeric {
				x, ok := parseNumeric(v, opt)
				if !ok {
					numeric = false
					continue
				}
				nums[i] = x
			}
		}
		var col *dataset.Column
		if numeric && seen > 0 {
			col = &dataset.Column{Name: name, Type: dataset.Number, Numbers: nums, Null: null}
		} else {
			col = dataset.NewStringColumn(name, raw, null)
		}
		cols = append(cols, col)
	}
	if ragged > 0 {
		log.Warn("rows with a field count different from the header", zap.Int("rows", ragged), zap.Int("columns", len(names)))
	}
	ds, err := dataset.FromColumns(cols...)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return applyTypes(ds, opt)
}

// uniqueHeaders keeps raw names but makes them unique; blank headers become column_<n>.
func uniqueHeaders(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		base := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		name := base
		for k := 2; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", base, k)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
