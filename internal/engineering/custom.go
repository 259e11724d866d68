package engineering

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// Feature definition types.
const (
	TypeArithmetic       = "arithmetic"
	TypeUnary            = "unary"
	TypeCategoricalCount = "categorical_count"
)

// divideEpsilon keeps a zero denominator finite.
const divideEpsilon = 1e-6

var (
	ErrUnknownType      = errors.New("unknown feature type")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrUnknownColumn    = errors.New("column not found")
	ErrNotNumeric       = errors.New("column is not numeric")
	ErrNotCategorical   = errors.New("column is not categorical")
	ErrMissingField     = errors.New("missing required field")
)

// Definition describes one user-defined feature.
type Definition struct {
	Type string `json:"type" yaml:"type"`
	Col1 string `json:"col1,omitempty" yaml:"col1,omitempty"`
	Col2 string `json:"col2,omitempty" yaml:"col2,omitempty"`
	Col  string `json:"col,omitempty" yaml:"col,omitempty"`
	Op   string `json:"op,omitempty" yaml:"op,omitempty"`
}

// Name returns the deterministic column name the definition produces.
func (d Definition) Name() string {
	switch d.Type {
	case TypeArithmetic:
		return fmt.Sprintf("%s_%s_%s", d.Col1, d.Op, d.Col2)
	case TypeUnary:
		return fmt.Sprintf("%s_of_%s", d.Op, d.Col)
	case TypeCategoricalCount:
		return d.Col + "_counts"
	}
	return ""
}

// FeatureError reports why a custom feature could not be built.
type FeatureError struct {
	Definition Definition
	Err        error
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("create feature %q: %v", e.Definition.Name(), e.Err)
}

func (e *FeatureError) Unwrap() error { return e.Err }

// CreateCustomFeature adds the feature described by def. On failure it returns
// ds itself, unchanged, together with a *FeatureError; the failure is also
// logged. Building a feature whose name already exists replaces that column.
func CreateCustomFeature(ds *dataset.Dataset, def Definition, opt Options) (out *dataset.Dataset, err error) {
	log := opt.logger()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
		if err != nil {
			var fe *FeatureError
			if !errors.As(err, &fe) {
				fe = &FeatureError{Definition: def, Err: err}
			}
			log.Warn("custom feature failed", zap.String("type", def.Type), zap.String("op", def.Op), zap.Error(fe.Err))
			out, err = ds, fe
		}
	}()
	if ds == nil {
		return nil, errors.New("nil dataset")
	}

	var col *dataset.Column
	switch def.Type {
	case TypeArithmetic:
		col, err = arithmetic(ds, def, opt)
	case TypeUnary:
		col, err = unary(ds, def, opt)
	case TypeCategoricalCount:
		col, err = categoricalCount(ds, def, opt)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, def.Type)
	}
	if err != nil {
		return nil, err
	}
	next, err := ds.With(col)
	if err != nil {
		return nil, err
	}
	log.Debug("custom feature created", zap.String("column", col.Name))
	return next, nil
}

func lookup(ds *dataset.Dataset, name string, want inference.Class, opt Options) (*dataset.Column, error) {
	if name == "" {
		return nil, ErrMissingField
	}
	c, ok := ds.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	if got := inference.TypeOf(c, opt.Inference); got != want {
		if want == inference.Numeric {
			return nil, fmt.Errorf("%w: %q is %s", ErrNotNumeric, name, got)
		}
		return nil, fmt.Errorf("%w: %q is %s", ErrNotCategorical, name, got)
	}
	return c, nil
}

func arithmetic(ds *dataset.Dataset, def Definition, opt Options) (*dataset.Column, error) {
	var fn func(x, y float64) float64
	switch def.Op {
	case "add":
		fn = func(x, y float64) float64 { return x + y }
	case "subtract":
		fn = func(x, y float64) float64 { return x - y }
	case "multiply":
		fn = func(x, y float64) float64 { return x * y }
	case "divide":
		fn = func(x, y float64) float64 { return x / (y + divideEpsilon) }
	default:
		return nil, fmt.Errorf("%w: arithmetic %q", ErrUnknownOperation, def.Op)
	}
	a, err := lookup(ds, def.Col1, inference.Numeric, opt)
	if err != nil {
		return nil, err
	}
	b, err := lookup(ds, def.Col2, inference.Numeric, opt)
	if err != nil {
		return nil, err
	}
	return combine(def.Name(), a, b, fn), nil
}

func unary(ds *dataset.Dataset, def Definition, opt Options) (*dataset.Column, error) {
	c, err := lookup(ds, def.Col, inference.Numeric, opt)
	if err != nil {
		return nil, err
	}
	n := c.Len()
	vals := make([]float64, n)
	null := append([]bool(nil), c.Null...)
	switch def.Op {
	case "log":
		outOfDomain := 0
		for i, x := range c.Numbers {
			if null[i] {
				continue
			}
			// log(x+1) is undefined for x <= -1; those cells become null
			if x <= -1 {
				null[i] = true
				outOfDomain++
				continue
			}
			vals[i] = math.Log(x + 1)
		}
		if outOfDomain > 0 {
			opt.logger().Warn("log feature: values at or below -1 set to missing",
				zap.String("column", c.Name), zap.Int("count", outOfDomain))
		}
	case "square":
		for i, x := range c.Numbers {
			vals[i] = x * x
		}
	case "sqrt":
		for i, x := range c.Numbers {
			vals[i] = math.Sqrt(math.Max(x, 0))
		}
	case "average":
		valid := c.Valid()
		if len(valid) == 0 {
			return nil, fmt.Errorf("average of %q: no values", c.Name)
		}
		m := stats.Mean(valid)
		for i := range vals {
			vals[i] = m
			null[i] = false
		}
	default:
		return nil, fmt.Errorf("%w: unary %q", ErrUnknownOperation, def.Op)
	}
	for i, v := range vals {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			null[i] = true
		}
	}
	return &dataset.Column{Name: def.Name(), Type: dataset.Number, Numbers: vals, Null: null}, nil
}

func categoricalCount(ds *dataset.Dataset, def Definition, opt Options) (*dataset.Column, error) {
	c, err := lookup(ds, def.Col, inference.Categorical, opt)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, c.Len())
	for i := 0; i < c.Len(); i++ {
		if !c.Null[i] {
			counts[c.Key(i)]++
		}
	}
	vals := make([]float64, c.Len())
	null := make([]bool, c.Len())
	for i := range vals {
		if c.Null[i] {
			null[i] = true
			continue
		}
		vals[i] = float64(counts[c.Key(i)])
	}
	return &dataset.Column{Name: def.Name(), Type: dataset.Number, Numbers: vals, Null: null}, nil
}
