package charts

import (
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
)

// Role names used in configurations and resolver output.
const (
	RoleX           = "x"
	RoleY           = "y"
	RoleZ           = "z"
	RoleColor       = "color"
	RoleSize        = "size"
	RoleNames       = "names"
	RoleValues      = "values"
	RolePath        = "path"
	RoleNumericOnly = "numeric_only"
	RoleTask        = "Task"
	RoleStart       = "Start"
	RoleFinish      = "Finish"
	RoleGanttColor  = "Color"
	RoleValue       = "value"
	RoleThreshold   = "threshold"
	RoleAll         = "all"
)

// Role describes one slot of a chart. A nil Accepts means any column.
type Role struct {
	Name     string
	Accepts  []inference.Class
	Required bool
	Multi    bool
}

func (r Role) accepts(c inference.Class) bool {
	if r.Accepts == nil {
		return true
	}
	for _, a := range r.Accepts {
		if a == c {
			return true
		}
	}
	return false
}

var (
	anyClass  []inference.Class
	numeric   = []inference.Class{inference.Numeric}
	dimension = []inference.Class{inference.Categorical, inference.DateTime}
	axis      = []inference.Class{inference.Categorical, inference.DateTime, inference.Numeric}
)

func xyRoles(xRequired, yRequired bool) []Role {
	return []Role{
		{Name: RoleX, Accepts: axis, Required: xRequired},
		{Name: RoleY, Accepts: numeric, Required: yRequired},
	}
}

func partRoles(namesRequired, pathRequired bool) []Role {
	return []Role{
		{Name: RoleNames, Accepts: dimension, Required: namesRequired},
		{Name: RoleValues, Accepts: numeric, Required: true},
		{Name: RolePath, Accepts: dimension, Required: pathRequired, Multi: true},
	}
}

// roleTable maps every built-in chart type to its ordered roles.
var roleTable = map[Type][]Role{
	Bar:       xyRoles(true, true),
	Line:      xyRoles(true, true),
	Area:      xyRoles(true, true),
	Histogram: xyRoles(true, false),
	Box:       xyRoles(false, true),
	Violin:    xyRoles(false, true),
	Scatter: {
		{Name: RoleX, Accepts: numeric, Required: true},
		{Name: RoleY, Accepts: numeric, Required: true},
		{Name: RoleColor, Accepts: anyClass},
		{Name: RoleSize, Accepts: numeric},
	},
	Bubble: {
		{Name: RoleX, Accepts: numeric, Required: true},
		{Name: RoleY, Accepts: numeric, Required: true},
		{Name: RoleSize, Accepts: numeric, Required: true},
		{Name: RoleColor, Accepts: anyClass},
	},
	Scatter3D: {
		{Name: RoleX, Accepts: numeric, Required: true},
		{Name: RoleY, Accepts: numeric, Required: true},
		{Name: RoleZ, Accepts: numeric, Required: true},
		{Name: RoleColor, Accepts: anyClass},
	},
	Donut:     partRoles(true, false),
	Pie:       partRoles(true, false),
	Funnel:    partRoles(true, false),
	Treemap:   partRoles(false, true),
	Sunburst:  partRoles(false, true),
	Waterfall: partRoles(true, false)[:2],
	Heatmap: {
		{Name: RoleNumericOnly, Accepts: numeric, Required: true, Multi: true},
	},
	Gantt: {
		{Name: RoleTask, Accepts: []inference.Class{inference.Categorical}, Required: true},
		{Name: RoleStart, Accepts: []inference.Class{inference.DateTime}, Required: true},
		{Name: RoleFinish, Accepts: []inference.Class{inference.DateTime}, Required: true},
		{Name: RoleGanttColor, Accepts: anyClass},
	},
	Gauge: {
		{Name: RoleValue, Accepts: numeric, Required: true},
		{Name: RoleThreshold, Accepts: numeric, Required: true},
	},
	DataTable: {{Name: RoleAll, Accepts: anyClass, Required: true, Multi: true}},
	KPI:       {{Name: RoleAll, Accepts: anyClass, Multi: true}},
}

// Roles returns the ordered roles of a built-in type, or nil.
func Roles(t Type) []Role {
	return roleTable[t]
}

// CompatibleColumns classifies ds and resolves the legal columns per role.
func CompatibleColumns(ds *dataset.Dataset, t Type, opt inference.Options) map[string][]string {
	return Resolve(inference.Types(ds, opt), ds.Names(), t)
}

// Resolve lists, for each role of t, the columns whose class the role
// accepts. Columns are grouped in the role's class order, then dataset order.
// Unknown types resolve to {"all": every column}.
func Resolve(classes map[string]inference.Class, names []string, t Type) map[string][]string {
	roles, ok := roleTable[t]
	if !ok {
		return map[string][]string{RoleAll: append([]string{}, names...)}
	}
	out := make(map[string][]string, len(roles))
	for _, r := range roles {
		cols := []string{}
		if r.Accepts == nil {
			cols = append(cols, names...)
		} else {
			for _, want := range r.Accepts {
				for _, n := range names {
					if c, ok := classes[n]; ok && c == want {
						cols = append(cols, n)
					}
				}
			}
		}
		out[r.Name] = cols
	}
	return out
}

func normalizeTypeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " chart")
	s = strings.TrimSuffix(s, " plot")
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}
