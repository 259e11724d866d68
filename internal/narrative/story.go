package narrative

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/charts"
)

type step struct {
	title string
	lead  string
	types []charts.Type
}

// storySteps is the presentation order: the whole, change over time,
// comparisons, relationships, distributions, then the raw rows.
var storySteps = []step{
	{"Composition", "Open with the big picture and show how the whole breaks down using", []charts.Type{charts.Donut, charts.Pie, charts.Treemap, charts.Sunburst, charts.Funnel, charts.Waterfall}},
	{"Trend", "Show how things change over time with", []charts.Type{charts.Line, charts.Area, charts.Gantt}},
	{"Comparison", "Compare categories and targets with", []charts.Type{charts.Bar, charts.Gauge, charts.KPI}},
	{"Relationship", "Explore what moves together with", []charts.Type{charts.Scatter, charts.Bubble, charts.Scatter3D, charts.Heatmap}},
	{"Distribution", "Dig into the spread of values with", []charts.Type{charts.Histogram, charts.Box, charts.Violin}},
	{"Raw data", "Close with the detail behind the story in", []charts.Type{charts.DataTable}},
}

// Category returns the story step a chart type belongs to. Unknown types
// are treated as raw data.
func Category(t charts.Type) string {
	for _, s := range storySteps {
		for _, st := range s.types {
			if st == t {
				return s.title
			}
		}
	}
	return storySteps[len(storySteps)-1].title
}

// Story groups the charts by category and renders a numbered markdown list,
// one step per non-empty category, in presentation order.
func Story(specs []charts.Spec) string {
	if len(specs) == 0 {
		return "Add charts to the dashboard to get a suggested story order."
	}
	buckets := make(map[string][]string, len(storySteps))
	for _, s := range specs {
		cat := Category(s.Type)
		buckets[cat] = append(buckets[cat], "'"+s.Label()+"'")
	}
	var b strings.Builder
	b.WriteString("**Suggested story order**\n\n")
	n := 0
	for _, s := range storySteps {
		labels := buckets[s.title]
		if len(labels) == 0 {
			continue
		}
		n++
		b.WriteString(fmt.Sprintf("%d. **%s:** %s %s.\n", n, s.title, s.lead, joinList(labels)))
	}
	return b.String()
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
