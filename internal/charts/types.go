// Package charts holds the chart type enumeration, the role table mapping each
// type to the column classes its roles accept, and typed chart configurations.
package charts

// Type names a chart kind. The set is open: unknown names resolve to every column.
type Type string

const (
	Bar       Type = "Bar Chart"
	Line      Type = "Line Chart"
	Area      Type = "Area Chart"
	Histogram Type = "Histogram"
	Box       Type = "Box Plot"
	Violin    Type = "Violin Chart"
	Scatter   Type = "Scatter Plot"
	Bubble    Type = "Bubble Chart"
	Scatter3D Type = "3D Scatter Plot"
	Donut     Type = "Donut Chart"
	Pie       Type = "Pie Chart"
	Treemap   Type = "Treemap"
	Sunburst  Type = "Sunburst Chart"
	Funnel    Type = "Funnel Chart"
	Waterfall Type = "Waterfall Chart"
	Heatmap   Type = "Heatmap"
	Gantt     Type = "Gantt Chart"
	Gauge     Type = "Gauge Chart"
	DataTable Type = "Data Table"
	KPI       Type = "KPI"
)

// All lists the built-in chart types in menu order.
var All = []Type{
	Bar, Line, Area, Histogram, Box, Violin,
	Scatter, Bubble, Scatter3D,
	Donut, Pie, Treemap, Sunburst, Funnel, Waterfall,
	Heatmap, Gantt, Gauge, DataTable, KPI,
}

// Known reports whether t is one of the built-in types.
func Known(t Type) bool {
	_, ok := roleTable[t]
	return ok
}

// Parse matches a user-supplied name case-insensitively, also accepting the
// short form without the "Chart"/"Plot" suffix (e.g. "bar", "scatter").
func Parse(s string) (Type, bool) {
	key := normalizeTypeName(s)
	for _, t := range All {
		if normalizeTypeName(string(t)) == key {
			return t, true
		}
	}
	return Type(s), false
}
