package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// Options controls profiling behavior.
type Options struct {
	Inference inference.Options
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// TopValues caps the category counts listed per column.
	TopValues int
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// OutlierThreshold is the robust z-score (MAD) cutoff; 0 disables outlier counts.
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		Inference:        inference.DefaultOptions(),
		SampleRows:       5,
		TopValues:        5,
		Correlations:     true,
		OutlierThreshold: 3.5,
	}
}

// Report is a markdown-friendly profile of a dataset.
type Report struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Warnings []string
	Groups   []GroupResult
	Corr     *CorrMatrix
}

// ColumnSummary captures the inferred class and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|useless
	Storage dataset.Type
	Unit    string
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Time range
	First time.Time
	Last  time.Time
	// Top values for string columns
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by column name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// Profile summarizes every column of ds. It never modifies ds.
func Profile(ds *dataset.Dataset, name string, opt Options) *Report {
	rep := &Report{Name: name}
	if ds == nil {
		return rep
	}
	rep.Rows = ds.Rows()
	classes := inference.Classify(ds, opt.Inference)
	for _, c := range ds.Columns() {
		rep.Cols = append(rep.Cols, summarize(c, classes[c.Name], opt))
	}
	sampleRows := opt.SampleRows
	if sampleRows > ds.Rows() {
		sampleRows = ds.Rows()
	}
	for i := 0; i < sampleRows; i++ {
		row := make([]string, ds.Width())
		for j, c := range ds.Columns() {
			row[j] = c.Display(i)
		}
		rep.Samples = append(rep.Samples, row)
	}
	if opt.Correlations {
		rep.Corr = Correlations(ds, opt.Inference)
	}
	if len(opt.GroupBy) > 0 {
		groups, warn := groupBy(ds, opt.GroupBy)
		rep.Groups = groups
		rep.Warnings = append(rep.Warnings, warn...)
	}
	for _, c := range rep.Cols {
		if c.Kind == inference.Useless.String() {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %q looks like an identifier or is empty and will be dropped by cleaning", c.Name))
		}
		if c.Missing > 0 && c.NonNull == 0 {
			continue
		}
		if c.Missing*2 > c.Missing+c.NonNull {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %q is more than half missing", c.Name))
		}
	}
	return rep
}

func summarize(c *dataset.Column, class inference.Class, opt Options) ColumnSummary {
	cs := ColumnSummary{
		Name:    c.Name,
		Kind:    class.String(),
		Storage: c.Type,
		Missing: c.NullCount(),
		Unique:  c.Distinct(false),
	}
	cs.NonNull = c.Len() - cs.Missing
	_, cs.Unit = splitUnits(c.Name)
	switch c.Type {
	case dataset.Number:
		vals := c.Valid()
		if len(vals) == 0 {
			break
		}
		cs.Min, cs.Max = vals[0], vals[0]
		for _, v := range vals {
			if v < cs.Min {
				cs.Min = v
			}
			if v > cs.Max {
				cs.Max = v
			}
		}
		cs.Mean = stats.Mean(vals)
		if len(vals) > 1 {
			cs.Std = stats.SampleStd(vals)
		}
		if opt.OutlierThreshold > 0 {
			cs.OutlierThreshold = opt.OutlierThreshold
			cs.OutliersCount, cs.OutliersMaxAbsZ = stats.RobustOutliers(vals, opt.OutlierThreshold)
		}
	case dataset.Time:
		for i, t := range c.Times {
			if c.IsNull(i) {
				continue
			}
			if cs.First.IsZero() || t.Before(cs.First) {
				cs.First = t
			}
			if cs.Last.IsZero() || t.After(cs.Last) {
				cs.Last = t
			}
		}
	default:
		cs.TopValues = topValues(c, opt.TopValues)
	}
	return cs
}

func topValues(c *dataset.Column, n int) []CategoryCount {
	counts := map[string]int{}
	for i := 0; i < c.Len(); i++ {
		if !c.IsNull(i) {
			counts[c.Strings[i]]++
		}
	}
	out := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func groupBy(ds *dataset.Dataset, names []string) ([]GroupResult, []string) {
	var keys []*dataset.Column
	var warnings []string
	for _, n := range names {
		c, ok := ds.Column(strings.TrimSpace(n))
		if !ok {
			warnings = append(warnings, fmt.Sprintf("group-by column %q not found", n))
			continue
		}
		keys = append(keys, c)
	}
	if len(keys) == 0 {
		return nil, warnings
	}
	type acc struct {
		size  int
		sum   map[string]float64
		stats map[string]NumSummary
	}
	groups := map[string]*acc{}
	var order []string
	for i := 0; i < ds.Rows(); i++ {
		parts := make([]string, len(keys))
		for j, c := range keys {
			parts[j] = fmt.Sprintf("%s=%s", c.Name, safeVal(c.Display(i)))
		}
		gkey := strings.Join(parts, " | ")
		g := groups[gkey]
		if g == nil {
			g = &acc{sum: map[string]float64{}, stats: map[string]NumSummary{}}
			groups[gkey] = g
			order = append(order, gkey)
		}
		g.size++
		for _, c := range ds.Columns() {
			if c.Type != dataset.Number || c.IsNull(i) {
				continue
			}
			x := c.Numbers[i]
			m := g.stats[c.Name]
			if m.Count == 0 || x < m.Min {
				m.Min = x
			}
			if m.Count == 0 || x > m.Max {
				m.Max = x
			}
			m.Count++
			g.sum[c.Name] += x
			g.stats[c.Name] = m
		}
	}
	out := make([]GroupResult, 0, len(order))
	for _, k := range order {
		g := groups[k]
		for name, m := range g.stats {
			m.Mean = g.sum[name] / float64(m.Count)
			g.stats[name] = m
		}
		out = append(out, GroupResult{Key: k, Size: g.size, Metrics: g.stats})
	}
	return out, warnings
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Price (USD)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Weight [kg]
	{regexp.MustCompile(`^(.*?)[_\s-]+(usd|eur|gbp|kg|km|pct|%)$`), 2},
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
