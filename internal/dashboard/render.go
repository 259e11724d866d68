package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/analysis"
	"github.com/KaramelBytes/dashloom-cli/internal/charts"
	"github.com/KaramelBytes/dashloom-cli/internal/loader"
	"github.com/KaramelBytes/dashloom-cli/internal/workflow"
)

// Problem is a chart or KPI that could not be placed on the built dashboard.
type Problem struct {
	Subject string
	Err     error
}

func (p Problem) String() string { return fmt.Sprintf("%s: %v", p.Subject, p.Err) }

// Build is a processed dashboard ready to render.
type Build struct {
	Dashboard *Dashboard
	Context   *workflow.Context
	Problems  []Problem
}

// Build reloads the source, runs the processing workflow and places every
// chart. A chart that no longer fits the data is reported, not fatal.
func (d *Dashboard) Build(lopt loader.Options, wopt workflow.Options) (*Build, error) {
	if d.Source == "" {
		return nil, ErrNoSource
	}
	lopt.SheetName = d.Sheet
	if len(d.ColumnTypes) > 0 {
		lopt.ColumnTypes = make(map[string]loader.ColumnType, len(d.ColumnTypes))
		for name, t := range d.ColumnTypes {
			ct, err := loader.ParseColumnType(t)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			lopt.ColumnTypes[name] = ct
		}
	}
	raw, err := loader.Load(d.SourcePath(), lopt)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	ctx, err := workflow.Start(raw, wopt)
	if err != nil {
		return nil, err
	}
	if ctx, err = ctx.Process(d.Segments); err != nil {
		return nil, err
	}
	b := &Build{Dashboard: d}
	for _, spec := range d.Charts {
		next, err := ctx.AddChart(spec)
		if err != nil {
			b.Problems = append(b.Problems, Problem{Subject: spec.Label(), Err: err})
			continue
		}
		ctx = next
	}
	for _, k := range d.KPIs {
		if _, ok := ctx.Measures[k]; !ok {
			b.Problems = append(b.Problems, Problem{Subject: "KPI " + k, Err: fmt.Errorf("measure not computed for this data")})
		}
	}
	b.Context = ctx
	return b, nil
}

// Markdown renders KPI cards, each chart with its narrative, and the
// suggested story order.
func (b *Build) Markdown() string {
	var sb strings.Builder
	d, ctx := b.Dashboard, b.Context
	sb.WriteString("# ")
	sb.WriteString(d.Name)
	sb.WriteString("\n\n")
	if d.Description != "" {
		sb.WriteString(d.Description)
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("Source: %s (%d rows, %d columns)\n\n", d.Source, ctx.Dataset.Rows(), ctx.Dataset.Width()))

	if len(d.KPIs) > 0 {
		sb.WriteString("## Key metrics\n\n")
		for _, k := range d.KPIs {
			if v, ok := ctx.Measures[k]; ok {
				sb.WriteString(fmt.Sprintf("- **%s:** %s\n", k, formatMeasure(v)))
			}
		}
		sb.WriteString("\n")
	}

	if notes := ctx.Narratives(); len(notes) > 0 {
		sb.WriteString("## Charts\n\n")
		for i, n := range notes {
			sb.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, n.Chart.Label()))
			sb.WriteString(fmt.Sprintf("_%s_ · %s\n\n", n.Chart.Type, roles(n.Chart)))
			sb.WriteString(n.Outcome.Text)
			sb.WriteString("\n\n")
		}
		sb.WriteString(ctx.Story())
		sb.WriteString("\n")
	}

	if len(b.Problems) > 0 {
		sb.WriteString("## Skipped\n\n")
		for _, p := range b.Problems {
			sb.WriteString("- ")
			sb.WriteString(p.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func roles(s charts.Spec) string {
	cfg, err := s.Config()
	if err != nil {
		return ""
	}
	a := cfg.Assignments()
	if len(a) == 0 {
		return "no columns"
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Join(a[k], ",")))
	}
	return strings.Join(parts, " ")
}

func formatMeasure(v float64) string {
	if v == float64(int64(v)) {
		return analysis.FormatNumber(v, 0)
	}
	return analysis.FormatNumber(v, 2)
}
