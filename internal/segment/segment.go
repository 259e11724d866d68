// Package segment clusters dataset rows into labeled segments with seeded
// k-means over standardized numeric columns.
package segment

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
)

// Column is the name of the label column Segment adds.
const Column = "Segment"

// ErrInvalidK is returned for a cluster count below 1 or above the row count.
var ErrInvalidK = errors.New("invalid number of segments")

// Options controls clustering.
type Options struct {
	Inference inference.Options
	Seed      int64
	Restarts  int
	MaxIter   int
	Logger    *zap.Logger
}

// DefaultOptions returns seed 42, 10 restarts and 300 iterations.
func DefaultOptions() Options {
	return Options{Seed: 42, Restarts: 10, MaxIter: 300}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Restarts <= 0 {
		o.Restarts = d.Restarts
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Log reports the segmentation result.
type Log struct {
	SegmentsCreated int      `json:"segments_created"`
	Features        []string `json:"features,omitempty"`
	Inertia         float64  `json:"inertia,omitempty"`
}

// Entries flattens the log; a skipped segmentation yields an empty map.
func (l Log) Entries() map[string]any {
	if l.SegmentsCreated == 0 {
		return map[string]any{}
	}
	return map[string]any{"segments_created": l.SegmentsCreated}
}

// Segment adds (or replaces) the Segment column with k-means labels 0..k-1.
// Without numeric columns it returns ds unchanged with an empty log.
func Segment(ds *dataset.Dataset, k int, opt Options) (*dataset.Dataset, Log, error) {
	opt = opt.withDefaults()
	X, features := matrix(ds, opt)
	if len(features) == 0 {
		opt.Logger.Info("segmentation skipped: no numeric columns")
		return ds, Log{}, nil
	}
	if k < 1 || k > ds.Rows() {
		return nil, Log{}, fmt.Errorf("%w: k=%d for %d rows", ErrInvalidK, k, ds.Rows())
	}
	m, err := bestOf(X, k, opt.MaxIter, opt.Restarts, opt.Seed)
	if err != nil {
		return nil, Log{}, fmt.Errorf("kmeans: %w", err)
	}
	labels := make([]string, len(m.Labels))
	for i, l := range m.Labels {
		labels[i] = strconv.Itoa(l)
	}
	col := dataset.NewStringColumn(Column, labels, nil)
	col.Categorical = true
	out, err := ds.With(col)
	if err != nil {
		return nil, Log{}, err
	}
	opt.Logger.Debug("segmentation finished",
		zap.Int("k", k), zap.Strings("features", features), zap.Float64("inertia", m.Inertia))
	return out, Log{SegmentsCreated: k, Features: features, Inertia: m.Inertia}, nil
}

// matrix standardizes the numeric columns of ds. A previous Segment column is
// categorical and never feeds the next clustering.
func matrix(ds *dataset.Dataset, opt Options) ([][]float64, []string) {
	if ds.Empty() {
		return nil, nil
	}
	types := inference.Types(ds, opt.Inference)
	var cols []*dataset.Column
	var names []string
	for _, c := range ds.Columns() {
		if c.Name == Column || types[c.Name] != inference.Numeric {
			continue
		}
		cols = append(cols, c)
		names = append(names, c.Name)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return standardize(cols, ds.Rows()), names
}
