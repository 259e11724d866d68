// Package cleaning turns a raw, schema-less dataset into an analysis-ready one:
// canonical column names, no identifier columns, no duplicate rows, typed date
// columns and imputed missing values.
package cleaning

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// ErrEmptyDataset is returned when there is nothing to clean.
var ErrEmptyDataset = errors.New("dataset is empty")

// Options controls cleaning behavior.
type Options struct {
	Inference inference.Options
	Logger    *zap.Logger
}

// SkippedColumn records a column a stage could not process.
type SkippedColumn struct {
	Column string `json:"column"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Log describes what a cleaning run did.
type Log struct {
	RenamedColumns           map[string]string `json:"renamed_columns,omitempty"`
	UselessColumnsRemoved    []string          `json:"useless_columns_removed"`
	DuplicatesRemoved        int               `json:"duplicates_removed"`
	DateColumnsConverted     []string          `json:"date_columns_converted"`
	MissingValuesFilled      int               `json:"missing_values_filled"`
	ImputedDuplicatesRemoved int               `json:"imputed_duplicates_removed"`
	ImputedValuesDiscarded   int               `json:"imputed_values_discarded"`
	SkippedColumns           []SkippedColumn   `json:"skipped_columns,omitempty"`
}

// Entries flattens the log into action name → result.
func (l Log) Entries() map[string]any {
	out := map[string]any{
		"missing_values_filled":   l.MissingValuesFilled,
		"duplicates_removed":      l.DuplicatesRemoved,
		"useless_columns_removed": append([]string{}, l.UselessColumnsRemoved...),
		"date_columns_converted":  append([]string{}, l.DateColumnsConverted...),
	}
	if l.ImputedDuplicatesRemoved > 0 {
		out["imputed_duplicates_removed"] = l.ImputedDuplicatesRemoved
	}
	if l.ImputedValuesDiscarded > 0 {
		out["imputed_values_discarded"] = l.ImputedValuesDiscarded
	}
	if len(l.RenamedColumns) > 0 {
		out["renamed_columns"] = l.RenamedColumns
	}
	if len(l.SkippedColumns) > 0 {
		out["skipped_columns"] = l.SkippedColumns
	}
	return out
}

// Clean runs the cleaning stages in order and returns a new dataset; ds is not modified.
func Clean(ds *dataset.Dataset, opt Options) (*dataset.Dataset, Log, error) {
	var lg Log
	if ds.Empty() {
		return nil, lg, ErrEmptyDataset
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &cleaner{opt: opt, log: &lg, logger: logger}
	lg.UselessColumnsRemoved = []string{}

	out, err := c.normalizeNames(ds)
	if err != nil {
		return nil, lg, fmt.Errorf("normalize names: %w", err)
	}
	out, lg.DuplicatesRemoved, _ = c.settle(out)
	out = c.convertDates(out)
	beforeImpute := out
	out = c.impute(out)
	var kept []int
	out, lg.ImputedDuplicatesRemoved, kept = c.settle(out)
	lg.ImputedValuesDiscarded = lg.MissingValuesFilled - nullsIn(beforeImpute, out.Names(), kept)
	logger.Debug("cleaning finished",
		zap.Int("rows", out.Rows()),
		zap.Int("columns", out.Width()),
		zap.Int("duplicates_removed", lg.DuplicatesRemoved),
		zap.Int("missing_values_filled", lg.MissingValuesFilled),
		zap.Int("imputed_values_discarded", lg.ImputedValuesDiscarded),
		zap.Strings("useless_columns_removed", lg.UselessColumnsRemoved))
	return out, lg, nil
}

type cleaner struct {
	opt    Options
	log    *Log
	logger *zap.Logger
}

func (c *cleaner) skip(col, stage string, reason any) {
	c.log.SkippedColumns = append(c.log.SkippedColumns, SkippedColumn{Column: col, Stage: stage, Reason: fmt.Sprint(reason)})
	c.logger.Warn("column skipped", zap.String("column", col), zap.String("stage", stage), zap.Any("reason", reason))
}

// guard runs fn and converts a panic into a skipped-column record.
func (c *cleaner) guard(col, stage string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.skip(col, stage, r)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		c.skip(col, stage, err)
		return false
	}
	return true
}

func (c *cleaner) normalizeNames(ds *dataset.Dataset) (*dataset.Dataset, error) {
	names := ds.Names()
	norm := inference.NormalizeNames(names)
	mapping := make(map[string]string)
	for i, n := range names {
		if norm[i] != n {
			mapping[n] = norm[i]
		}
	}
	if len(mapping) == 0 {
		return ds.Clone(), nil
	}
	c.log.RenamedColumns = mapping
	return ds.Rename(mapping)
}

func (c *cleaner) dropUseless(ds *dataset.Dataset) *dataset.Dataset {
	var drop []string
	for _, col := range ds.Columns() {
		if inference.IsUseless(col, ds.Rows(), c.opt.Inference) {
			drop = append(drop, col.Name)
		}
	}
	if len(drop) == 0 {
		return ds
	}
	c.log.UselessColumnsRemoved = append(c.log.UselessColumnsRemoved, drop...)
	c.logger.Info("dropping useless columns", zap.Strings("columns", drop))
	return ds.Drop(drop...)
}

// settle drops useless columns and duplicate rows until neither changes the
// table: removing rows can leave a column unique per row, and dropping a
// column can make rows collide. kept maps each output row to its input row.
func (c *cleaner) settle(ds *dataset.Dataset) (out *dataset.Dataset, removed int, kept []int) {
	out = ds
	kept = make([]int, ds.Rows())
	for i := range kept {
		kept[i] = i
	}
	for {
		out = c.dropUseless(out)
		if out.Width() == 0 {
			return out, removed, kept
		}
		next, rows := dedupe(out)
		if rows == nil {
			return out, removed, kept
		}
		removed += out.Rows() - next.Rows()
		for i, r := range rows {
			rows[i] = kept[r]
		}
		out, kept = next, rows
	}
}

// dedupe keeps the first occurrence of every distinct row. rows lists the
// surviving input rows, or is nil when nothing was removed.
func dedupe(ds *dataset.Dataset) (out *dataset.Dataset, rows []int) {
	seen := make(map[string]struct{}, ds.Rows())
	keep := make([]int, 0, ds.Rows())
	for i := 0; i < ds.Rows(); i++ {
		k := ds.RowKey(i)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == ds.Rows() {
		return ds, nil
	}
	return ds.Take(keep), keep
}

// nullsIn counts the missing cells of ds that lie in the given columns and rows.
func nullsIn(ds *dataset.Dataset, names []string, rows []int) int {
	n := 0
	for _, name := range names {
		col, ok := ds.Column(name)
		if !ok {
			continue
		}
		for _, r := range rows {
			if col.IsNull(r) {
				n++
			}
		}
	}
	return n
}

func (c *cleaner) convertDates(ds *dataset.Dataset) *dataset.Dataset {
	out := ds
	for _, col := range ds.Columns() {
		if col.Type != dataset.String || col.Categorical {
			continue
		}
		if !inference.LooksLikeDates(col, c.opt.Inference) {
			continue
		}
		var converted *dataset.Column
		ok := c.guard(col.Name, "date_conversion", func() error {
			converted = toTimeColumn(col)
			return nil
		})
		if !ok {
			continue
		}
		next, err := out.With(converted)
		if err != nil {
			c.skip(col.Name, "date_conversion", err)
			continue
		}
		out = next
		c.log.DateColumnsConverted = append(c.log.DateColumnsConverted, col.Name)
	}
	return out
}

// toTimeColumn parses every value; unparseable values become null.
func toTimeColumn(col *dataset.Column) *dataset.Column {
	out := dataset.NewTimeColumn(col.Name, make([]time.Time, col.Len()), make([]bool, col.Len()))
	for i, s := range col.Strings {
		if col.Null[i] {
			out.Null[i] = true
			continue
		}
		t, ok := inference.ParseTime(s)
		if !ok {
			out.Null[i] = true
			continue
		}
		out.Times[i] = t
	}
	return out
}

func (c *cleaner) impute(ds *dataset.Dataset) *dataset.Dataset {
	c.log.MissingValuesFilled = ds.NullCount()
	if c.log.MissingValuesFilled == 0 {
		return ds
	}
	out := ds.Clone()
	for _, col := range ds.Columns() {
		if col.NullCount() == 0 {
			continue
		}
		filled := col.Clone()
		numeric := col.Type == dataset.Number && !col.Categorical
		ok := c.guard(col.Name, "imputation", func() error {
			if numeric {
				return fillMedian(filled)
			}
			fillMode(filled)
			return nil
		})
		if !ok {
			continue
		}
		if err := out.AddColumn(filled); err != nil {
			c.skip(col.Name, "imputation", err)
		}
	}
	return out
}

func fillMedian(col *dataset.Column) error {
	if col.Type != dataset.Number {
		return fmt.Errorf("median imputation needs a number column, got %s", col.Type)
	}
	vals := col.Valid()
	if len(vals) == 0 {
		return nil
	}
	m := stats.Median(vals)
	for i := range col.Numbers {
		if col.Null[i] {
			col.Numbers[i] = m
			col.Null[i] = false
		}
	}
	return nil
}

// fillMode fills nulls with the most frequent value; ties go to the smallest key.
// An entirely missing column has no mode and is left as is.
func fillMode(col *dataset.Column) {
	src := modeRow(col)
	if src < 0 {
		return
	}
	for i := range col.Null {
		if !col.Null[i] {
			continue
		}
		switch col.Type {
		case dataset.Number:
			col.Numbers[i] = col.Numbers[src]
		case dataset.Time:
			col.Times[i] = col.Times[src]
		default:
			col.Strings[i] = col.Strings[src]
		}
		col.Null[i] = false
	}
}

// modeRow returns the first row holding the column mode, or -1.
func modeRow(col *dataset.Column) int {
	keys := make([]string, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if !col.Null[i] {
			keys = append(keys, col.Key(i))
		}
	}
	mode, ok := stats.Mode(keys)
	if !ok {
		return -1
	}
	for i := 0; i < col.Len(); i++ {
		if !col.Null[i] && col.Key(i) == mode {
			return i
		}
	}
	return -1
}

// Summary renders the log as sorted "key: value" lines for the CLI.
func (l Log) Summary() []string {
	e := l.Entries()
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %v", k, e[k]))
	}
	return out
}
