package engineering

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// Log reports what feature engineering produced.
type Log struct {
	FeaturesEngineered int                `json:"features_engineered"`
	Measures           map[string]float64 `json:"measures"`
}

// Entries flattens the log into action name → result.
func (l Log) Entries() map[string]any {
	m := make(map[string]float64, len(l.Measures))
	for k, v := range l.Measures {
		m[k] = v
	}
	return map[string]any{
		"features_engineered": l.FeaturesEngineered,
		"measures":            m,
	}
}

// EngineerFeatures computes measures on ds, then synthesizes one level of
// features over its numeric columns: "a + b" and "a * b" for every unordered
// pair and "PERCENTILE(a)" per column. Synthesized columns never feed further
// synthesis. ds is not modified.
func EngineerFeatures(ds *dataset.Dataset, opt Options) (*dataset.Dataset, Log, error) {
	lg := Log{Measures: ComputeMeasures(ds, opt)}
	if ds.Empty() {
		return nil, lg, fmt.Errorf("engineer features: dataset is empty")
	}
	types := inference.Types(ds, opt.Inference)
	var numeric []*dataset.Column
	for _, c := range ds.Columns() {
		if types[c.Name] == inference.Numeric {
			numeric = append(numeric, c)
		}
	}
	if limit := opt.maxSynthesis(); len(numeric) > limit {
		opt.logger().Info("capping feature synthesis inputs",
			zap.Int("numeric_columns", len(numeric)), zap.Int("max", limit))
		numeric = numeric[:limit]
	}

	out := ds.Clone()
	before := out.Width()
	add := func(c *dataset.Column) error {
		if _, exists := out.Column(c.Name); exists {
			return nil
		}
		return out.AddColumn(c)
	}
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			a, b := numeric[i], numeric[j]
			if err := add(combine(a.Name+" + "+b.Name, a, b, func(x, y float64) float64 { return x + y })); err != nil {
				return nil, lg, fmt.Errorf("add feature: %w", err)
			}
			if err := add(combine(a.Name+" * "+b.Name, a, b, func(x, y float64) float64 { return x * y })); err != nil {
				return nil, lg, fmt.Errorf("multiply feature: %w", err)
			}
		}
	}
	for _, c := range numeric {
		if err := add(percentile(c)); err != nil {
			return nil, lg, fmt.Errorf("percentile feature: %w", err)
		}
	}
	lg.FeaturesEngineered = out.Width() - before
	opt.logger().Debug("features engineered",
		zap.Int("features", lg.FeaturesEngineered), zap.Int("measures", len(lg.Measures)))
	return out, lg, nil
}

// combine applies fn row by row. A null on either side, or a NaN or infinite
// result, yields null.
func combine(name string, a, b *dataset.Column, fn func(x, y float64) float64) *dataset.Column {
	n := a.Len()
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		if a.Null[i] || b.Null[i] {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = fn(a.Numbers[i], b.Numbers[i])
	}
	return dataset.NewNumberColumn(name, vals)
}

// percentile ranks the non-null values of c; nulls stay null.
func percentile(c *dataset.Column) *dataset.Column {
	n := c.Len()
	vals := make([]float64, n)
	null := make([]bool, n)
	idx := make([]int, 0, n)
	valid := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if c.Null[i] {
			null[i] = true
			continue
		}
		idx = append(idx, i)
		valid = append(valid, c.Numbers[i])
	}
	for k, r := range stats.PercentileRank(valid) {
		vals[idx[k]] = r
	}
	return &dataset.Column{Name: fmt.Sprintf("PERCENTILE(%s)", c.Name), Type: dataset.Number, Numbers: vals, Null: null}
}
