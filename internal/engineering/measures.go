// Package engineering derives single-value measures and new feature columns
// from a cleaned dataset.
package engineering

import (
	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// Options controls feature engineering.
type Options struct {
	Inference inference.Options
	// MaxSynthesisColumns caps how many numeric columns take part in pairwise
	// synthesis; 0 means the default of 10.
	MaxSynthesisColumns int
	Logger              *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) maxSynthesis() int {
	if o.MaxSynthesisColumns <= 0 {
		return 10
	}
	return o.MaxSynthesisColumns
}

// ComputeMeasures returns "Sum of", "Average of" for every numeric column with
// more than one distinct value and "Count of" (distinct values) for every
// categorical column.
func ComputeMeasures(ds *dataset.Dataset, opt Options) map[string]float64 {
	out := map[string]float64{}
	if ds == nil {
		return out
	}
	types := inference.Types(ds, opt.Inference)
	for _, c := range ds.Columns() {
		switch types[c.Name] {
		case inference.Numeric:
			if c.Distinct(false) <= 1 {
				continue
			}
			vals := c.Valid()
			out["Sum of "+c.Name] = stats.Sum(vals)
			out["Average of "+c.Name] = stats.Mean(vals)
		case inference.Categorical:
			out["Count of "+c.Name] = float64(c.Distinct(false))
		}
	}
	return out
}
