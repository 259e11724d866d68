package charts

import (
	"errors"
	"testing"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
)

// mixed has one column of every classification, including an identifier.
func mixed(t *testing.T) *dataset.Dataset {
	t.Helper()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ds, err := dataset.FromColumns(
		dataset.NewNumberColumn("amount", []float64{1, 2, 2}),
		dataset.NewStringColumn("region", []string{"n", "s", "n"}, nil),
		dataset.NewTimeColumn("start", []time.Time{day, day.AddDate(0, 0, 1), day}, nil),
		dataset.NewStringColumn("row_id", []string{"r1", "r2", "r3"}, nil),
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return ds
}

func TestCompatibilityTableCoverage(t *testing.T) {
	ds := mixed(t)
	classes := inference.Classify(ds, inference.Options{})
	seen := map[inference.Class]bool{}
	for _, c := range classes {
		seen[c] = true
	}
	if len(seen) != 4 {
		t.Fatalf("fixture should cover every class, got %v", classes)
	}
	for _, typ := range All {
		got := CompatibleColumns(ds, typ, inference.Options{})
		if len(got) == 0 {
			t.Fatalf("%s: empty role map", typ)
		}
		for role, cols := range got {
			if len(cols) == 0 {
				t.Errorf("%s: role %s has no columns", typ, role)
			}
		}
	}
}

func TestResolveRoles(t *testing.T) {
	classes := map[string]inference.Class{
		"amount": inference.Numeric, "region": inference.Categorical, "start": inference.DateTime,
	}
	names := []string{"amount", "region", "start"}
	got := Resolve(classes, names, Bar)
	if x := got[RoleX]; len(x) != 3 || x[0] != "region" || x[1] != "start" || x[2] != "amount" {
		t.Fatalf("bar x = %v", x)
	}
	if y := got[RoleY]; len(y) != 1 || y[0] != "amount" {
		t.Fatalf("bar y = %v", y)
	}
	gantt := Resolve(classes, names, Gantt)
	if len(gantt[RoleTask]) != 1 || gantt[RoleStart][0] != "start" || len(gantt[RoleGanttColor]) != 3 {
		t.Fatalf("gantt = %v", gantt)
	}
	donut := Resolve(classes, names, Donut)
	if len(donut[RoleNames]) != 2 || donut[RoleValues][0] != "amount" {
		t.Fatalf("donut = %v", donut)
	}
}

func TestResolveUnknownTypeFallsBackToAll(t *testing.T) {
	got := Resolve(map[string]inference.Class{}, []string{"a", "b"}, Type("Radar Chart"))
	if len(got) != 1 || len(got[RoleAll]) != 2 {
		t.Fatalf("fallback = %v", got)
	}
}

func TestParse(t *testing.T) {
	tests := map[string]Type{"bar": Bar, "Scatter": Scatter, "3d scatter": Scatter3D, "data table": DataTable, "kpi": KPI, "treemap": Treemap}
	for in, want := range tests {
		if got, ok := Parse(in); !ok || got != want {
			t.Errorf("Parse(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := Parse("radar"); ok {
		t.Errorf("radar should not parse")
	}
}

func TestSpecConfigVariants(t *testing.T) {
	for _, typ := range All {
		cfg, err := Spec{Type: typ}.Config()
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		if cfg.ChartType() != typ {
			t.Fatalf("%s: variant reports %s", typ, cfg.ChartType())
		}
	}
	if _, err := (Spec{Type: "Radar"}).Config(); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	classes := map[string]inference.Class{"amount": inference.Numeric, "region": inference.Categorical}
	if err := Validate(XY{Kind: Bar, X: "region", Y: "amount"}, classes); err != nil {
		t.Fatalf("valid bar: %v", err)
	}
	tests := []struct {
		cfg    Config
		role   string
		column string
	}{
		{XY{Kind: Bar, X: "region"}, RoleY, ""},
		{XY{Kind: Bar, X: "region", Y: "region"}, RoleY, "region"},
		{XY{Kind: Line, X: "gone", Y: "amount"}, RoleX, "gone"},
		{Dial{Value: "amount"}, RoleThreshold, ""},
		{Card{}, "measure", ""},
	}
	for _, tt := range tests {
		err := Validate(tt.cfg, classes)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Role != tt.role || ve.Column != tt.column {
			t.Errorf("%+v: err = %v", tt.cfg, err)
		}
	}
	if err := Validate(Card{Measure: "Sum of amount"}, classes); err != nil {
		t.Fatalf("kpi: %v", err)
	}
}

func TestNewIDIsUnique(t *testing.T) {
	if a, b := NewID(), NewID(); a == b || len(a) != 36 {
		t.Fatalf("ids %q %q", a, b)
	}
}
