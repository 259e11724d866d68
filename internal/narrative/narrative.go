// Package narrative turns a chart configuration and its data into a one-sentence
// finding, and suggests an order in which to present a set of charts.
package narrative

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/dashloom-cli/internal/charts"
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// Fallback sentences.
const (
	UniversalFallback   = "An automated narrative for this chart could not be generated."
	GenericText         = "This chart visualizes the distribution and relationship of the selected data."
	NotEnoughCategories = "Not enough distinct categories to compare."
	NotEnoughPoints     = "Not enough data points to determine a trend."
	NoCategories        = "No categories to display."
	AxesRequired        = "X and Y axes must be selected."
)

// Outcome is the result of narrating one chart. Fallback is true when the
// statistic could not be computed and Text explains why.
type Outcome struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

func finding(format string, args ...any) Outcome {
	return Outcome{Text: fmt.Sprintf(format, args...)}
}

func fallback(format string, args ...any) Outcome {
	return Outcome{Text: fmt.Sprintf(format, args...), Fallback: true}
}

type narrator func(cfg charts.Config, ds *dataset.Dataset) Outcome

var narrators = map[charts.Type]narrator{
	charts.Bar:       narrateBar,
	charts.Line:      narrateTrend,
	charts.Area:      narrateTrend,
	charts.Histogram: narrateHistogram,
	charts.Box:       narrateSpread,
	charts.Violin:    narrateSpread,
	charts.Scatter:   narrateCorrelation,
	charts.Bubble:    narrateCorrelation,
	charts.Scatter3D: narrateCorrelation,
	charts.Donut:     narrateShare,
	charts.Pie:       narrateShare,
	charts.Treemap:   narrateShare,
	charts.Sunburst:  narrateShare,
	charts.Funnel:    narrateFunnel,
	charts.Waterfall: narrateWaterfall,
	charts.Heatmap:   narrateHeatmap,
	charts.Gantt:     narrateGantt,
	charts.Gauge:     narrateGauge,
	charts.DataTable: narrateTable,
	charts.KPI:       narrateCard,
}

// Narrate returns the narrative sentence for cfg over ds.
func Narrate(cfg charts.Config, ds *dataset.Dataset) string {
	return Explain(cfg, ds).Text
}

// Explain runs the narrator for the chart type. It never panics: any failure
// inside a narrator becomes the universal fallback.
func Explain(cfg charts.Config, ds *dataset.Dataset) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Text: UniversalFallback, Fallback: true}
		}
	}()
	if cfg == nil || ds == nil {
		return Outcome{Text: UniversalFallback, Fallback: true}
	}
	n, ok := narrators[cfg.ChartType()]
	if !ok {
		return Outcome{Text: GenericText}
	}
	out = n(cfg, ds)
	if out.Text == "" {
		return Outcome{Text: UniversalFallback, Fallback: true}
	}
	return out
}

// ExplainSpec narrates a stored chart spec. Types without a configuration
// variant get the generic sentence.
func ExplainSpec(s charts.Spec, ds *dataset.Dataset) Outcome {
	cfg, err := s.Config()
	if err != nil {
		return Outcome{Text: GenericText}
	}
	return Explain(cfg, ds)
}

// lookup returns the named columns or a fallback naming the first missing one.
func lookup(ds *dataset.Dataset, names ...string) ([]*dataset.Column, *Outcome) {
	cols := make([]*dataset.Column, len(names))
	for i, n := range names {
		c, ok := ds.Column(n)
		if !ok {
			o := fallback("Column '%s' is not available in the current data.", n)
			return nil, &o
		}
		cols[i] = c
	}
	return cols, nil
}

func numeric(c *dataset.Column) *Outcome {
	if c.Type != dataset.Number || c.Categorical {
		o := fallback("Column '%s' must be numeric to summarize this chart.", c.Name)
		return &o
	}
	return nil
}

// group sums values per category in first-appearance order, skipping rows
// where either side is missing.
type group struct {
	labels []string
	sums   []float64
}

func groupSum(by, val *dataset.Column) group {
	var g group
	pos := map[string]int{}
	for i := 0; i < by.Len(); i++ {
		if by.Null[i] || val.Null[i] {
			continue
		}
		k := by.Key(i)
		j, ok := pos[k]
		if !ok {
			j = len(g.labels)
			pos[k] = j
			g.labels = append(g.labels, by.Display(i))
			g.sums = append(g.sums, 0)
		}
		g.sums[j] += val.Numbers[i]
	}
	return g
}

func (g group) argmax() int {
	best := 0
	for i, v := range g.sums {
		if v > g.sums[best] {
			best = i
		}
	}
	return best
}

func (g group) argmin() int {
	best := 0
	for i, v := range g.sums {
		if v < g.sums[best] {
			best = i
		}
	}
	return best
}

func narrateBar(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.XY)
	if c.X == "" || c.Y == "" {
		return fallback(NotEnoughCategories)
	}
	cols, miss := lookup(ds, c.X, c.Y)
	if miss != nil {
		return *miss
	}
	x, y := cols[0], cols[1]
	if x.Distinct(false) < 2 {
		return fallback(NotEnoughCategories)
	}
	if bad := numeric(y); bad != nil {
		return *bad
	}
	g := groupSum(x, y)
	if len(g.labels) < 2 {
		return fallback(NotEnoughCategories)
	}
	return finding("The data highlights that '%s' has the highest value, while '%s' has the lowest.",
		g.labels[g.argmax()], g.labels[g.argmin()])
}

func narrateTrend(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.XY)
	if c.X == "" || c.Y == "" {
		return fallback(NotEnoughPoints)
	}
	cols, miss := lookup(ds, c.X, c.Y)
	if miss != nil {
		return *miss
	}
	x, y := cols[0], cols[1]
	if bad := numeric(y); bad != nil {
		return *bad
	}
	rows := make([]int, 0, ds.Rows())
	for i := 0; i < ds.Rows(); i++ {
		if !x.Null[i] && !y.Null[i] {
			rows = append(rows, i)
		}
	}
	if len(rows) < 2 {
		return fallback(NotEnoughPoints)
	}
	switch x.Type {
	case dataset.Time:
		sort.SliceStable(rows, func(a, b int) bool { return x.Times[rows[a]].Before(x.Times[rows[b]]) })
	case dataset.Number:
		sort.SliceStable(rows, func(a, b int) bool { return x.Numbers[rows[a]] < x.Numbers[rows[b]] })
	}
	first, last := y.Numbers[rows[0]], y.Numbers[rows[len(rows)-1]]
	trend := "a stable trend"
	switch {
	case last > first:
		trend = "an upward trend"
	case last < first:
		trend = "a downward trend"
	}
	return finding("Over the observed period, '%s' shows %s.", c.Y, trend)
}

func narrateCorrelation(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.Point)
	if c.X == "" || c.Y == "" {
		return fallback(AxesRequired)
	}
	cols, miss := lookup(ds, c.X, c.Y)
	if miss != nil {
		return *miss
	}
	x, y := cols[0], cols[1]
	for _, col := range cols {
		if bad := numeric(col); bad != nil {
			return *bad
		}
	}
	var xs, ys []float64
	for i := 0; i < ds.Rows(); i++ {
		if !x.Null[i] && !y.Null[i] {
			xs = append(xs, x.Numbers[i])
			ys = append(ys, y.Numbers[i])
		}
	}
	r, ok := stats.Pearson(xs, ys)
	if !ok {
		return fallback("Not enough varied data points to measure a relationship between '%s' and '%s'.", c.X, c.Y)
	}
	strength := correlationStrength(r)
	if strength == "weak" {
		return finding("There appears to be a weak relationship between '%s' and '%s'.", c.X, c.Y)
	}
	direction := "negative"
	if r > 0 {
		direction = "positive"
	}
	return finding("A %s %s correlation is observed between '%s' and '%s'.", strength, direction, c.X, c.Y)
}

func narrateShare(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.Part)
	names := c.Names
	if names == "" && len(c.Path) > 0 {
		names = c.Path[0]
	}
	if names == "" || c.Values == "" {
		return fallback(NoCategories)
	}
	cols, miss := lookup(ds, names, c.Values)
	if miss != nil {
		return *miss
	}
	if bad := numeric(cols[1]); bad != nil {
		return *bad
	}
	g := groupSum(cols[0], cols[1])
	if len(g.labels) == 0 {
		return fallback(NoCategories)
	}
	total := stats.Sum(g.sums)
	if total == 0 {
		return fallback("The values of '%s' sum to zero, so no share can be computed.", c.Values)
	}
	top := g.argmax()
	return finding("'%s' represents the largest segment, accounting for %.1f%% of the total.",
		g.labels[top], g.sums[top]/total*100)
}

func narrateFunnel(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.Part)
	if c.Names == "" || c.Values == "" {
		return fallback(NoCategories)
	}
	cols, miss := lookup(ds, c.Names, c.Values)
	if miss != nil {
		return *miss
	}
	if bad := numeric(cols[1]); bad != nil {
		return *bad
	}
	g := groupSum(cols[0], cols[1])
	if len(g.labels) < 2 {
		return fallback("Not enough stages to compute a conversion rate.")
	}
	order := make([]int, len(g.labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return g.sums[order[a]] > g.sums[order[b]] })
	first, last := order[0], order[len(order)-1]
	rate := 0.0
	if g.sums[first] > 0 {
		rate = g.sums[last] / g.sums[first] * 100
	}
	return finding("The funnel shows a conversion from '%s' to '%s', with an overall conversion rate of %.1f%%.",
		g.labels[first], g.labels[last], rate)
}

func narrateSpread(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.XY)
	if c.Y == "" {
		return fallback(AxesRequired)
	}
	names := []string{c.Y}
	if c.X != "" {
		names = append(names, c.X)
	}
	if _, miss := lookup(ds, names...); miss != nil {
		return *miss
	}
	if c.X == "" {
		return finding("This plot shows the distribution of '%s', highlighting its median and spread.", c.Y)
	}
	return finding("This plot shows the distribution of '%s' across different categories of '%s', highlighting differences in median and spread.", c.Y, c.X)
}

func narrateHistogram(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.XY)
	if c.X == "" {
		return fallback("An x column must be selected.")
	}
	if _, miss := lookup(ds, c.X); miss != nil {
		return *miss
	}
	return finding("This histogram shows how often each range of '%s' occurs, revealing the shape of its distribution.", c.X)
}

func narrateHeatmap(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.Matrix)
	if _, miss := lookup(ds, c.Columns...); miss != nil {
		return *miss
	}
	return finding("This heatmap visualizes the correlation between numeric variables. Warmer colors indicate a stronger positive correlation.")
}

func narrateWaterfall(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.Part)
	if c.Names == "" || c.Values == "" {
		return fallback(NoCategories)
	}
	if _, miss := lookup(ds, c.Names, c.Values); miss != nil {
		return *miss
	}
	return finding("This waterfall chart shows how each '%s' adds to or subtracts from the cumulative total of '%s'.", c.Names, c.Values)
}

func narrateGantt(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.Timeline)
	if c.Task == "" || c.Start == "" || c.Finish == "" {
		return fallback("Task, Start and Finish columns must be selected.")
	}
	if _, miss := lookup(ds, c.Task, c.Start, c.Finish); miss != nil {
		return *miss
	}
	return finding("This timeline shows when each '%s' runs, from '%s' to '%s', making overlaps and gaps easy to spot.", c.Task, c.Start, c.Finish)
}

func narrateGauge(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.Dial)
	if c.Value == "" || c.Threshold == "" {
		return fallback("Value and threshold columns must be selected.")
	}
	cols, miss := lookup(ds, c.Value, c.Threshold)
	if miss != nil {
		return *miss
	}
	for _, col := range cols {
		if bad := numeric(col); bad != nil {
			return *bad
		}
	}
	v, th := stats.Mean(cols[0].Valid()), stats.Mean(cols[1].Valid())
	if math.IsNaN(v) || math.IsNaN(th) {
		return fallback("There are no values to compare against the threshold.")
	}
	rel := "in line with"
	switch {
	case v > th:
		rel = "above"
	case v < th:
		rel = "below"
	}
	return finding("The average '%s' (%.2f) is %s the average '%s' (%.2f).", c.Value, v, rel, c.Threshold, th)
}

func narrateTable(cfg charts.Config, ds *dataset.Dataset) Outcome {
	c := cfg.(charts.Table)
	if len(c.Columns) == 0 {
		return finding("Displaying all %d columns.", ds.Width())
	}
	if _, miss := lookup(ds, c.Columns...); miss != nil {
		return *miss
	}
	return finding("Displaying %d selected columns.", len(c.Columns))
}

func narrateCard(cfg charts.Config, _ *dataset.Dataset) Outcome {
	c := cfg.(charts.Card)
	if c.Measure == "" {
		return fallback("A measure must be selected.")
	}
	return finding("This card tracks the '%s' measure.", c.Measure)
}

// correlationStrength buckets |r|: weak below 0.4, moderate below 0.7, strong otherwise.
func correlationStrength(r float64) string {
	switch abs := math.Abs(r); {
	case abs >= 0.7:
		return "strong"
	case abs >= 0.4:
		return "moderate"
	}
	return "weak"
}
