package dashboard_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/dashloom-cli/internal/charts"
	"github.com/KaramelBytes/dashloom-cli/internal/dashboard"
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/loader"
	"github.com/KaramelBytes/dashloom-cli/internal/workflow"
)

func writeSales(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Order Date,Region,Sales\n")
	regions := []string{"north", "south", "east"}
	for i := 0; i < 30; i++ {
		b.WriteString(fmt.Sprintf("2024-01-%02d,%s,%d\n", i%28+1, regions[i%3], 100+(i*7)%20))
	}
	path := filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dash")
	d := dashboard.New("q1", "First quarter", dir)
	spec, err := d.AddChart(charts.Spec{Type: charts.Bar, X: "region", Y: "sales"})
	if err != nil {
		t.Fatalf("AddChart: %v", err)
	}
	if spec.ID == "" {
		t.Fatalf("chart id not assigned")
	}
	if err := d.AddKPI("Sum of sales"); err != nil {
		t.Fatalf("AddKPI: %v", err)
	}
	if err := d.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := dashboard.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Name != "q1" || len(back.Charts) != 1 || back.Charts[0].ID != spec.ID || back.KPIs[0] != "Sum of sales" {
		t.Fatalf("loaded = %+v", back)
	}
	if back.RootDir() != dir {
		t.Fatalf("root = %s", back.RootDir())
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := dashboard.Load(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v", err)
	}
}

func TestChartAndKPIEditing(t *testing.T) {
	d := dashboard.New("x", "", t.TempDir())
	if _, err := d.AddChart(charts.Spec{Type: "Radar"}); !errors.Is(err, charts.ErrUnknownType) {
		t.Fatalf("unknown type: %v", err)
	}
	first, _ := d.AddChart(charts.Spec{ID: "aaaa-1", Type: charts.Histogram, X: "sales"})
	d.AddChart(charts.Spec{ID: "aaaa-2", Type: charts.Histogram, X: "sales"})
	if _, err := d.RemoveChart("aaaa"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("ambiguous prefix: %v", err)
	}
	removed, err := d.RemoveChart(first.ID)
	if err != nil || removed.ID != "aaaa-1" || len(d.Charts) != 1 {
		t.Fatalf("remove: %v %+v", err, d.Charts)
	}
	if _, err := d.RemoveChart("zzz"); !errors.Is(err, workflow.ErrChartNotFound) {
		t.Fatalf("missing chart: %v", err)
	}
	for len(d.Charts) < workflow.MaxCharts {
		if _, err := d.AddChart(charts.Spec{Type: charts.Histogram, X: "sales"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := d.AddChart(charts.Spec{Type: charts.Histogram, X: "sales"}); !errors.Is(err, workflow.ErrTooManyCharts) {
		t.Fatalf("limit: %v", err)
	}

	if err := d.AddKPI("Sum of sales"); err != nil {
		t.Fatal(err)
	}
	if err := d.AddKPI("Sum of sales"); !errors.Is(err, dashboard.ErrDuplicateKPI) {
		t.Fatalf("duplicate: %v", err)
	}
	if err := d.RemoveKPI("Sum of sales"); err != nil {
		t.Fatal(err)
	}
	if err := d.RemoveKPI("Sum of sales"); !errors.Is(err, dashboard.ErrKPINotFound) {
		t.Fatalf("missing kpi: %v", err)
	}
}

func TestBuildAndRender(t *testing.T) {
	dir := t.TempDir()
	src := writeSales(t, dir)
	d := dashboard.New("Sales", "Regional sales", filepath.Join(dir, "dash"))
	if err := d.SetSource(src, "", 0); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	d.AddChart(charts.Spec{Type: charts.Bar, X: "region", Y: "sales", Title: "Sales by region"})
	d.AddChart(charts.Spec{Type: charts.Line, X: "order_date", Y: "profit"})
	d.AddKPI("Sum of sales")
	d.AddKPI("Sum of profit")

	b, err := d.Build(loader.DefaultOptions(), workflow.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(b.Context.Charts) != 1 || len(b.Problems) != 2 {
		t.Fatalf("charts=%d problems=%v", len(b.Context.Charts), b.Problems)
	}
	md := b.Markdown()
	for _, want := range []string{"# Sales", "## Key metrics", "**Sum of sales:**", "### 1. Sales by region", "has the highest value", "**Suggested story order**", "## Skipped"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestBuildWithoutSource(t *testing.T) {
	d := dashboard.New("empty", "", t.TempDir())
	if _, err := d.Build(loader.DefaultOptions(), workflow.DefaultOptions()); !errors.Is(err, dashboard.ErrNoSource) {
		t.Fatalf("got %v", err)
	}
}

func TestSetSourceStoresRelativePath(t *testing.T) {
	dir := t.TempDir()
	src := writeSales(t, filepath.Join(dir))
	d := dashboard.New("rel", "", dir)
	if err := d.SetSource(src, "", 2); err != nil {
		t.Fatal(err)
	}
	if d.Source != "sales.csv" || d.SourcePath() != src {
		t.Fatalf("source=%s path=%s", d.Source, d.SourcePath())
	}
	if err := d.SetSource(src, "", -1); !errors.Is(err, dashboard.ErrInvalidSegments) {
		t.Fatalf("got %v", err)
	}
}

func TestColumnTypesPersistAndApply(t *testing.T) {
	dir := t.TempDir()
	src := writeSales(t, dir)
	d := dashboard.New("typed", "", filepath.Join(dir, "dash"))
	if err := os.MkdirAll(filepath.Join(dir, "dash"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := d.SetSource(src, "", 0); err != nil {
		t.Fatal(err)
	}
	if err := d.SetColumnTypes([]string{"Sales=text"}); err != nil {
		t.Fatalf("SetColumnTypes: %v", err)
	}
	if err := d.Save(); err != nil {
		t.Fatal(err)
	}
	d, err := dashboard.Load(filepath.Join(dir, "dash"))
	if err != nil {
		t.Fatal(err)
	}
	if d.ColumnTypes["Sales"] != "string" {
		t.Fatalf("column types = %v", d.ColumnTypes)
	}

	b, err := d.Build(loader.DefaultOptions(), workflow.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sales, ok := b.Context.Dataset.Column("sales")
	if !ok || sales.Type != dataset.String {
		t.Fatalf("sales = %+v", sales)
	}

	if err := d.SetColumnTypes([]string{"Sales=money"}); !errors.Is(err, loader.ErrUnknownType) {
		t.Fatalf("got %v", err)
	}
	d.ColumnTypes = map[string]string{"Sales": "money"}
	if _, err := d.Build(loader.DefaultOptions(), workflow.DefaultOptions()); !errors.Is(err, loader.ErrUnknownType) {
		t.Fatalf("got %v", err)
	}
	if err := d.SetColumnTypes(nil); err != nil || d.ColumnTypes != nil {
		t.Fatalf("clear: %v %v", d.ColumnTypes, err)
	}
}
