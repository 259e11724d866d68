// Package workflow carries one dataset through the processing stages.
// Every stage returns a new Context and leaves its receiver untouched, so a
// caller can keep earlier snapshots (raw, cleaned, engineered) side by side.
package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dashloom-cli/internal/analysis"
	"github.com/KaramelBytes/dashloom-cli/internal/charts"
	"github.com/KaramelBytes/dashloom-cli/internal/cleaning"
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/engineering"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/narrative"
	"github.com/KaramelBytes/dashloom-cli/internal/segment"
)

// MaxCharts bounds the charts one dashboard holds.
const MaxCharts = 10

var (
	ErrNoDataset     = errors.New("no dataset loaded")
	ErrNotCleaned    = errors.New("dataset has not been cleaned")
	ErrTooManyCharts = fmt.Errorf("a dashboard holds at most %d charts", MaxCharts)
	ErrChartNotFound = errors.New("chart not found")
)

// Stage records how far the dataset has been processed.
type Stage int

const (
	Raw Stage = iota
	Cleaned
	Engineered
)

func (s Stage) String() string {
	switch s {
	case Cleaned:
		return "cleaned"
	case Engineered:
		return "engineered"
	default:
		return "raw"
	}
}

// Options bundles the per-stage options.
type Options struct {
	Inference   inference.Options
	Engineering engineering.Options
	Segment     segment.Options
	// OutlierThreshold is the robust z-score cutoff for outliers_identified; 0 skips it.
	OutlierThreshold float64
	Logger           *zap.Logger
}

// DefaultOptions returns the defaults of every stage.
func DefaultOptions() Options {
	return Options{
		Inference:        inference.DefaultOptions(),
		Segment:          segment.DefaultOptions(),
		OutlierThreshold: 3.5,
	}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Context is one workflow snapshot. Fields are read-only to callers.
type Context struct {
	ID       string
	Stage    Stage
	Dataset  *dataset.Dataset
	Measures map[string]float64
	Log      map[string]any
	Charts   []charts.Spec

	opt Options
}

// Start validates raw and opens a new workflow.
func Start(raw *dataset.Dataset, opt Options) (*Context, error) {
	if raw.Empty() {
		return nil, fmt.Errorf("start workflow: %w", ErrNoDataset)
	}
	c := &Context{
		ID:       uuid.NewString(),
		Dataset:  raw,
		Measures: map[string]float64{},
		Log:      map[string]any{},
		opt:      opt,
	}
	opt.logger().Debug("workflow started", zap.String("id", c.ID), zap.Int("rows", raw.Rows()), zap.Int("columns", raw.Width()))
	return c, nil
}

func (c *Context) clone() *Context {
	cp := *c
	cp.Measures = make(map[string]float64, len(c.Measures))
	for k, v := range c.Measures {
		cp.Measures[k] = v
	}
	cp.Log = make(map[string]any, len(c.Log))
	for k, v := range c.Log {
		cp.Log[k] = v
	}
	cp.Charts = append([]charts.Spec(nil), c.Charts...)
	return &cp
}

// Classes re-derives the column classes of the current dataset.
func (c *Context) Classes() map[string]inference.Class {
	return inference.Types(c.Dataset, c.opt.Inference)
}

// Clean runs the cleaning engine and counts outliers on the cleaned data.
func (c *Context) Clean() (*Context, error) {
	ds, lg, err := cleaning.Clean(c.Dataset, cleaning.Options{Inference: c.opt.Inference, Logger: c.opt.Logger})
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	next := c.clone()
	next.Dataset = ds
	next.Stage = Cleaned
	for k, v := range lg.Entries() {
		next.Log[k] = v
	}
	if c.opt.OutlierThreshold > 0 {
		rows, _ := analysis.Outliers(ds, c.opt.OutlierThreshold)
		next.Log["outliers_identified"] = rows
	}
	return next, nil
}

// Engineer computes measures and synthesizes features on a cleaned dataset.
func (c *Context) Engineer() (*Context, error) {
	if c.Stage < Cleaned {
		return nil, ErrNotCleaned
	}
	ds, lg, err := engineering.EngineerFeatures(c.Dataset, c.engineeringOptions())
	if err != nil {
		return nil, fmt.Errorf("engineer: %w", err)
	}
	next := c.clone()
	next.Dataset = ds
	next.Stage = Engineered
	next.Measures = lg.Measures
	for k, v := range lg.Entries() {
		next.Log[k] = v
	}
	return next, nil
}

// Segment clusters the numeric columns into k segments. A dataset without
// numeric columns comes back unchanged.
func (c *Context) Segment(k int) (*Context, error) {
	opt := c.opt.Segment
	opt.Inference = c.opt.Inference
	if opt.Logger == nil {
		opt.Logger = c.opt.Logger
	}
	ds, lg, err := segment.Segment(c.Dataset, k, opt)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	next := c.clone()
	next.Dataset = ds
	for key, v := range lg.Entries() {
		next.Log[key] = v
	}
	return next, nil
}

// Process runs clean and engineer, then segments when k > 0. Any failure
// aborts the whole run.
func (c *Context) Process(k int) (*Context, error) {
	next, err := c.Clean()
	if err != nil {
		return nil, err
	}
	if next, err = next.Engineer(); err != nil {
		return nil, err
	}
	if k > 0 {
		if next, err = next.Segment(k); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// AddFeature applies a custom feature. On failure the receiver stays the
// current snapshot and the *engineering.FeatureError is returned.
func (c *Context) AddFeature(def engineering.Definition) (*Context, error) {
	opt := c.engineeringOptions()
	ds, err := engineering.CreateCustomFeature(c.Dataset, def, opt)
	if err != nil {
		return c, err
	}
	next := c.clone()
	next.Dataset = ds
	next.Measures = engineering.ComputeMeasures(ds, opt)
	return next, nil
}

// AddChart validates spec against the current columns and appends it,
// assigning an ID when it has none.
func (c *Context) AddChart(spec charts.Spec) (*Context, error) {
	if len(c.Charts) >= MaxCharts {
		return nil, ErrTooManyCharts
	}
	cfg, err := spec.Config()
	if err != nil {
		return nil, err
	}
	if card, ok := cfg.(charts.Card); ok && card.Measure != "" {
		if _, known := c.Measures[card.Measure]; !known {
			return nil, fmt.Errorf("unknown measure %q", card.Measure)
		}
	}
	if err := charts.Validate(cfg, c.Classes()); err != nil {
		return nil, err
	}
	if spec.ID == "" {
		spec.ID = charts.NewID()
	}
	next := c.clone()
	next.Charts = append(next.Charts, spec)
	return next, nil
}

// RemoveChart drops the chart with the given ID.
func (c *Context) RemoveChart(id string) (*Context, error) {
	for i, s := range c.Charts {
		if s.ID == id {
			next := c.clone()
			next.Charts = append(next.Charts[:i:i], next.Charts[i+1:]...)
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrChartNotFound, id)
}

// LogSummary renders the log as sorted "key: value" lines.
func (c *Context) LogSummary() []string {
	keys := make([]string, 0, len(c.Log))
	for k := range c.Log {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %v", k, c.Log[k]))
	}
	return out
}

// Narrative pairs a chart with its generated sentence.
type Narrative struct {
	Chart   charts.Spec
	Outcome narrative.Outcome
}

// Narratives explains every chart in order. One chart's failure never
// affects another.
func (c *Context) Narratives() []Narrative {
	out := make([]Narrative, 0, len(c.Charts))
	for _, s := range c.Charts {
		out = append(out, Narrative{Chart: s, Outcome: narrative.ExplainSpec(s, c.Dataset)})
	}
	return out
}

// Story suggests a presentation order for the charts.
func (c *Context) Story() string {
	return narrative.Story(c.Charts)
}

func (c *Context) engineeringOptions() engineering.Options {
	opt := c.opt.Engineering
	opt.Inference = c.opt.Inference
	if opt.Logger == nil {
		opt.Logger = c.opt.Logger
	}
	return opt
}
