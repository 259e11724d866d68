package charts

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dashloom-cli/internal/inference"
)

// ErrUnknownType is returned when a Spec names a type with no configuration variant.
var ErrUnknownType = errors.New("unknown chart type")

// Config is a fully typed chart configuration. Each chart family has its own
// variant with statically known role fields.
type Config interface {
	ChartType() Type
	// Assignments maps each filled role to its column(s).
	Assignments() map[string][]string
}

// XY covers Bar, Line, Area, Histogram, Box and Violin charts.
type XY struct {
	Kind Type
	X, Y string
}

// Point covers Scatter, Bubble and 3D Scatter charts.
type Point struct {
	Kind        Type
	X, Y, Z     string
	Size, Color string
}

// Part covers Donut, Pie, Treemap, Sunburst, Funnel and Waterfall charts.
type Part struct {
	Kind   Type
	Names  string
	Values string
	Path   []string
}

// Matrix is a correlation heatmap over numeric columns.
type Matrix struct {
	Columns []string
}

// Timeline is a Gantt chart.
type Timeline struct {
	Task, Start, Finish, Color string
}

// Dial is a Gauge chart comparing a value with a threshold.
type Dial struct {
	Value, Threshold string
}

// Table is a Data Table over the selected columns.
type Table struct {
	Columns []string
}

// Card is a KPI card showing one computed measure.
type Card struct {
	Measure string
}

func (c XY) ChartType() Type { return c.Kind }
func (c Point) ChartType() Type { return c.Kind }
func (c Part) ChartType() Type { return c.Kind }
func (Matrix) ChartType() Type { return Heatmap }
func (Timeline) ChartType() Type { return Gantt }
func (Dial) ChartType() Type { return Gauge }
func (Table) ChartType() Type { return DataTable }
func (Card) ChartType() Type { return KPI }

func assign(pairs ...string) map[string][]string {
	out := map[string][]string{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			out[pairs[i]] = []string{pairs[i+1]}
		}
	}
	return out
}

func (c XY) Assignments() map[string][]string { return assign(RoleX, c.X, RoleY, c.Y) }

func (c Point) Assignments() map[string][]string {
	return assign(RoleX, c.X, RoleY, c.Y, RoleZ, c.Z, RoleSize, c.Size, RoleColor, c.Color)
}

func (c Part) Assignments() map[string][]string {
	out := assign(RoleNames, c.Names, RoleValues, c.Values)
	if len(c.Path) > 0 {
		out[RolePath] = append([]string{}, c.Path...)
	}
	return out
}

func (c Matrix) Assignments() map[string][]string {
	if len(c.Columns) == 0 {
		return map[string][]string{}
	}
	return map[string][]string{RoleNumericOnly: append([]string{}, c.Columns...)}
}

func (c Timeline) Assignments() map[string][]string {
	return assign(RoleTask, c.Task, RoleStart, c.Start, RoleFinish, c.Finish, RoleGanttColor, c.Color)
}

func (c Dial) Assignments() map[string][]string {
	return assign(RoleValue, c.Value, RoleThreshold, c.Threshold)
}

func (c Table) Assignments() map[string][]string {
	if len(c.Columns) == 0 {
		return map[string][]string{}
	}
	return map[string][]string{RoleAll: append([]string{}, c.Columns...)}
}

func (Card) Assignments() map[string][]string { return map[string][]string{} }

// Spec is the flat, serializable form of a chart stored in dashboard files.
type Spec struct {
	ID        string   `json:"id" yaml:"id,omitempty"`
	Type      Type     `json:"type" yaml:"type"`
	Title     string   `json:"title,omitempty" yaml:"title,omitempty"`
	X         string   `json:"x,omitempty" yaml:"x,omitempty"`
	Y         string   `json:"y,omitempty" yaml:"y,omitempty"`
	Z         string   `json:"z,omitempty" yaml:"z,omitempty"`
	Size      string   `json:"size,omitempty" yaml:"size,omitempty"`
	Color     string   `json:"color,omitempty" yaml:"color,omitempty"`
	Names     string   `json:"names,omitempty" yaml:"names,omitempty"`
	Values    string   `json:"values,omitempty" yaml:"values,omitempty"`
	Path      []string `json:"path,omitempty" yaml:"path,omitempty"`
	Columns   []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Task      string   `json:"task,omitempty" yaml:"task,omitempty"`
	Start     string   `json:"start,omitempty" yaml:"start,omitempty"`
	Finish    string   `json:"finish,omitempty" yaml:"finish,omitempty"`
	Value     string   `json:"value,omitempty" yaml:"value,omitempty"`
	Threshold string   `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Measure   string   `json:"measure,omitempty" yaml:"measure,omitempty"`
}

// NewID returns a fresh chart identifier.
func NewID() string { return uuid.New().String() }

// Config builds the typed variant matching s.Type.
func (s Spec) Config() (Config, error) {
	switch s.Type {
	case Bar, Line, Area, Histogram, Box, Violin:
		return XY{Kind: s.Type, X: s.X, Y: s.Y}, nil
	case Scatter, Bubble, Scatter3D:
		return Point{Kind: s.Type, X: s.X, Y: s.Y, Z: s.Z, Size: s.Size, Color: s.Color}, nil
	case Donut, Pie, Treemap, Sunburst, Funnel, Waterfall:
		return Part{Kind: s.Type, Names: s.Names, Values: s.Values, Path: s.Path}, nil
	case Heatmap:
		return Matrix{Columns: s.Columns}, nil
	case Gantt:
		return Timeline{Task: s.Task, Start: s.Start, Finish: s.Finish, Color: s.Color}, nil
	case Gauge:
		return Dial{Value: s.Value, Threshold: s.Threshold}, nil
	case DataTable:
		return Table{Columns: s.Columns}, nil
	case KPI:
		return Card{Measure: s.Measure}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
}

// Label returns the title, or a name derived from the type and roles.
func (s Spec) Label() string {
	if s.Title != "" {
		return s.Title
	}
	switch {
	case s.X != "" && s.Y != "":
		return fmt.Sprintf("%s: %s by %s", s.Type, s.Y, s.X)
	case s.Names != "" && s.Values != "":
		return fmt.Sprintf("%s: %s by %s", s.Type, s.Values, s.Names)
	case s.Value != "":
		return fmt.Sprintf("%s: %s", s.Type, s.Value)
	case s.Measure != "":
		return fmt.Sprintf("%s: %s", s.Type, s.Measure)
	}
	return string(s.Type)
}

// ValidationError reports why a configuration cannot be rendered.
type ValidationError struct {
	Type   Type
	Role   string
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: role %q column %q: %s", e.Type, e.Role, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s: role %q: %s", e.Type, e.Role, e.Reason)
}

// Validate checks that every required role is filled and that each assigned
// column exists with a class the role accepts.
func Validate(cfg Config, classes map[string]inference.Class) error {
	t := cfg.ChartType()
	roles, ok := roleTable[t]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if card, ok := cfg.(Card); ok {
		if card.Measure == "" {
			return &ValidationError{Type: t, Role: "measure", Reason: "a measure is required"}
		}
		return nil
	}
	got := cfg.Assignments()
	for _, r := range roles {
		cols := got[r.Name]
		if len(cols) == 0 {
			if r.Required {
				return &ValidationError{Type: t, Role: r.Name, Reason: "required role is empty"}
			}
			continue
		}
		for _, col := range cols {
			class, ok := classes[col]
			if !ok {
				return &ValidationError{Type: t, Role: r.Name, Column: col, Reason: "column does not exist"}
			}
			if !r.accepts(class) {
				return &ValidationError{Type: t, Role: r.Name, Column: col, Reason: fmt.Sprintf("%s column not accepted", class)}
			}
		}
	}
	return nil
}
