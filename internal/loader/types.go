package loader

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
)

// ColumnType is a storage type a user can force on a column before processing.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInt      ColumnType = "int"
	TypeFloat    ColumnType = "float"
	TypeBool     ColumnType = "bool"
	TypeDatetime ColumnType = "datetime"
	TypeCategory ColumnType = "category"
)

var (
	// ErrUnknownType is returned for a type name ParseColumnType does not know.
	ErrUnknownType = errors.New("unknown column type")
	// ErrUnknownColumn is returned when a declared column is not in the file.
	ErrUnknownColumn = errors.New("declared column not found")
)

var typeAliases = map[string]ColumnType{
	"string": TypeString, "text": TypeString, "str": TypeString,
	"int": TypeInt, "integer": TypeInt, "int64": TypeInt,
	"float": TypeFloat, "number": TypeFloat, "float64": TypeFloat, "numeric": TypeFloat,
	"bool": TypeBool, "boolean": TypeBool,
	"datetime": TypeDatetime, "date": TypeDatetime, "time": TypeDatetime,
	"category": TypeCategory, "categorical": TypeCategory,
}

// ParseColumnType accepts a type name or a common alias, case-insensitively.
func ParseColumnType(s string) (ColumnType, error) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q (use string, int, float, bool, datetime or category)", ErrUnknownType, s)
	}
	return t, nil
}

// ParseColumnTypes reads "column=type" declarations. The last '=' splits, so
// column names may contain '='.
func ParseColumnTypes(decls []string) (map[string]ColumnType, error) {
	if len(decls) == 0 {
		return nil, nil
	}
	out := make(map[string]ColumnType, len(decls))
	for _, d := range decls {
		i := strings.LastIndex(d, "=")
		if i <= 0 {
			return nil, fmt.Errorf("column type %q must look like column=type", d)
		}
		t, err := ParseColumnType(d[i+1:])
		if err != nil {
			return nil, err
		}
		out[strings.TrimSpace(d[:i])] = t
	}
	return out, nil
}

// applyTypes converts every declared column. Naming a missing column is an
// error; a column whose values do not fit the type is logged and left as read.
func applyTypes(ds *dataset.Dataset, opt Options) (*dataset.Dataset, error) {
	if len(opt.ColumnTypes) == 0 {
		return ds, nil
	}
	names := make([]string, 0, len(opt.ColumnTypes))
	for n := range opt.ColumnTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	log := opt.logger()
	out := ds
	for _, name := range names {
		col, ok := out.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		t := opt.ColumnTypes[name]
		conv, err := convert(col, t, opt)
		if err != nil {
			log.Warn("column type not applied", zap.String("column", name), zap.String("type", string(t)), zap.Error(err))
			continue
		}
		next, err := out.With(conv)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out = next
		log.Info("column type applied", zap.String("column", name), zap.String("from", col.Type.String()), zap.String("to", string(t)))
	}
	return out, nil
}

func convert(col *dataset.Column, t ColumnType, opt Options) (*dataset.Column, error) {
	n := col.Len()
	switch t {
	case TypeString, TypeCategory:
		vals := make([]string, n)
		for i := range vals {
			vals[i] = col.Display(i)
		}
		out := dataset.NewStringColumn(col.Name, vals, append([]bool(nil), col.Null...))
		out.Categorical = t == TypeCategory
		return out, nil
	case TypeFloat:
		vals := make([]float64, n)
		bad := 0
		for i := range vals {
			if col.IsNull(i) {
				vals[i] = math.NaN()
				continue
			}
			v, ok := numberAt(col, i, opt)
			if !ok {
				bad++
				continue
			}
			vals[i] = v
		}
		if bad > 0 {
			return nil, fmt.Errorf("%d values are not numbers", bad)
		}
		return dataset.NewNumberColumn(col.Name, vals), nil
	case TypeInt:
		// unparseable and missing cells become 0
		vals := make([]float64, n)
		for i := range vals {
			if col.IsNull(i) {
				continue
			}
			if v, ok := numberAt(col, i, opt); ok {
				vals[i] = math.Trunc(v)
			}
		}
		return dataset.NewNumberColumn(col.Name, vals), nil
	case TypeBool:
		vals := make([]string, n)
		for i := range vals {
			if col.IsNull(i) {
				continue
			}
			b, ok := boolAt(col, i)
			if !ok {
				return nil, fmt.Errorf("value %q is not a boolean", col.Display(i))
			}
			vals[i] = fmt.Sprint(b)
		}
		out := dataset.NewStringColumn(col.Name, vals, append([]bool(nil), col.Null...))
		out.Categorical = true
		return out, nil
	case TypeDatetime:
		if col.Type == dataset.Time {
			return col, nil
		}
		times := make([]time.Time, n)
		null := make([]bool, n)
		for i := range times {
			if col.IsNull(i) {
				null[i] = true
				continue
			}
			tm, ok := inference.ParseTime(col.Display(i))
			if !ok {
				null[i] = true
				continue
			}
			times[i] = tm
		}
		return dataset.NewTimeColumn(col.Name, times, null), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func numberAt(col *dataset.Column, i int, opt Options) (float64, bool) {
	switch col.Type {
	case dataset.Number:
		return col.Numbers[i], true
	case dataset.String:
		return parseNumeric(col.Strings[i], opt)
	}
	return 0, false
}

func boolAt(col *dataset.Column, i int) (bool, bool) {
	if col.Type == dataset.Number {
		switch col.Numbers[i] {
		case 0:
			return false, true
		case 1:
			return true, true
		}
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(col.Display(i))) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}
