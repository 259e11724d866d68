// Package inference decides, column by column, what role a column plays:
// a numeric measure, a categorical dimension, a date, or a useless identifier.
package inference

import (
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// Class is the inferred semantic role of a column.
type Class int

const (
	Categorical Class = iota
	Numeric
	DateTime
	Useless
)

func (c Class) String() string {
	switch c {
	case Numeric:
		return "numeric"
	case DateTime:
		return "datetime"
	case Useless:
		return "useless"
	default:
		return "categorical"
	}
}

// Options tunes the inference heuristics.
type Options struct {
	// DateSampleSize bounds how many non-missing values are parsed per column.
	DateSampleSize int
	// DateThreshold is the minimum parsed fraction for a column to count as dates.
	DateThreshold float64
	// IDCardinalityRatio is the distinct/rows ratio above which a column whose
	// name carries an identifier token is flagged useless.
	IDCardinalityRatio float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{DateSampleSize: 20, DateThreshold: 0.7, IDCardinalityRatio: 0.95}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DateSampleSize <= 0 {
		o.DateSampleSize = d.DateSampleSize
	}
	if o.DateThreshold <= 0 {
		o.DateThreshold = d.DateThreshold
	}
	if o.IDCardinalityRatio <= 0 {
		o.IDCardinalityRatio = d.IDCardinalityRatio
	}
	return o
}

// Classify returns the classification of every column. It never mutates ds.
func Classify(ds *dataset.Dataset, opt Options) map[string]Class {
	opt = opt.withDefaults()
	out := make(map[string]Class, ds.Width())
	for _, c := range ds.Columns() {
		out[c.Name] = ClassifyColumn(c, ds.Rows(), opt)
	}
	return out
}

// ClassifyColumn classifies a single column of a dataset with the given row count.
func ClassifyColumn(c *dataset.Column, rows int, opt Options) Class {
	opt = opt.withDefaults()
	if IsUseless(c, rows, opt) {
		return Useless
	}
	return TypeOf(c, opt)
}

// Types classifies every column by value type alone, without the Useless pass.
// Stages after cleaning use it so that engineered columns, which are often
// unique per row, keep their Numeric role.
func Types(ds *dataset.Dataset, opt Options) map[string]Class {
	opt = opt.withDefaults()
	out := make(map[string]Class, ds.Width())
	for _, c := range ds.Columns() {
		out[c.Name] = TypeOf(c, opt)
	}
	return out
}

// TypeOf returns Numeric, DateTime or Categorical for a column.
func TypeOf(c *dataset.Column, opt Options) Class {
	switch {
	case c.Type == dataset.Time:
		return DateTime
	case c.Type == dataset.Number && !c.Categorical:
		return Numeric
	case c.Type == dataset.String && !c.Categorical && LooksLikeDates(c, opt):
		return DateTime
	default:
		return Categorical
	}
}

// IsUseless flags identifier-like or empty columns: unique per row, an
// identifier-suggestive name with near-unique values, or entirely missing.
func IsUseless(c *dataset.Column, rows int, opt Options) bool {
	opt = opt.withDefaults()
	if rows == 0 {
		return false
	}
	if c.NullCount() == rows {
		return true
	}
	if c.Categorical {
		return false
	}
	distinct := c.Distinct(true)
	if rows >= 2 && distinct == rows {
		return true
	}
	return HasIdentifierHint(c.Name) && float64(distinct)/float64(rows) > opt.IDCardinalityRatio
}

// LooksLikeDates reports whether a String column's sampled non-missing values
// parse as dates at or above the threshold.
func LooksLikeDates(c *dataset.Column, opt Options) bool {
	if c.Type != dataset.String {
		return false
	}
	opt = opt.withDefaults()
	vals := make([]string, 0, c.Len())
	for i, s := range c.Strings {
		if !c.Null[i] {
			vals = append(vals, s)
		}
	}
	if len(vals) == 0 {
		return false
	}
	return dateFraction(vals, opt.DateSampleSize) >= opt.DateThreshold
}

// ByClass groups column names by class, preserving dataset order.
func ByClass(ds *dataset.Dataset, classes map[string]Class) map[Class][]string {
	out := map[Class][]string{}
	for _, name := range ds.Names() {
		cl, ok := classes[name]
		if !ok {
			continue
		}
		out[cl] = append(out[cl], name)
	}
	return out
}
