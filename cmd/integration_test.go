package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/dashloom-cli/internal/dashboard"
	"github.com/KaramelBytes/dashloom-cli/internal/loader"
	"github.com/KaramelBytes/dashloom-cli/internal/segment"
)

// resetFlags puts every flag of every command back to its default so that
// values from one invocation do not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execCmd(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

func execCmd(args ...string) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// isolateHome points HOME at a temp dir so config and dashboards stay local.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeSalesCSV(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Order Date,Region,Sales,Quantity\n")
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	regions := []string{"North", "South", "East", "West"}
	for i := 0; i < 40; i++ {
		d := base.AddDate(0, i/2, 0).Format("2006-01-02")
		fmt.Fprintf(&b, "%s,%s,%d,%d\n", d, regions[i%4], 100+(i*7)%20, i%5+1)
	}
	path := filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestCLI_ProfileWithKPIs(t *testing.T) {
	home := isolateHome(t)
	data := writeSalesCSV(t, home)
	out := filepath.Join(home, "profile.md")

	runCmd(t, "profile", data, "--kpis", "--drivers", "Sales", "--target", "Region", "-o", out)

	md := readFile(t, out)
	for _, want := range []string{
		"[DATASET SUMMARY]", "Rows: 40", "[SCHEMA]",
		"[KEY DRIVERS OF SALES]", "- Quantity: |r|=",
		"[KEY METRICS]", "- suggested date: order_date", "- suggested value: sales",
		"Year-over-Year Growth", "[TOP REGION BY SALES]",
		"[TARGET ANALYSIS: REGION]", "Task: classification", "Most influential:",
		"- seasonality: needs at least 24 months of data",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("profile missing %q:\n%s", want, md)
		}
	}
}

func TestCLI_ProfileColumnTypes(t *testing.T) {
	home := isolateHome(t)
	data := writeSalesCSV(t, home)
	out := filepath.Join(home, "typed.md")

	runCmd(t, "profile", data, "--drivers", "Sales", "--column-type", "Quantity=category", "-o", out)
	if md := readFile(t, out); strings.Contains(md, "- Quantity: |r|=") {
		t.Fatalf("a category column was ranked as a numeric driver:\n%s", md)
	}
	if err := execCmd("profile", data, "--column-type", "Nope=int"); err == nil {
		t.Fatalf("expected error for an unknown declared column")
	}
	if err := execCmd("profile", data, "--column-type", "Quantity=money"); err == nil {
		t.Fatalf("expected error for an unknown type")
	}
}

func TestCLI_ProfileBatchOutDir(t *testing.T) {
	home := isolateHome(t)
	writeSalesCSV(t, home)
	sub := filepath.Join(home, "more")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSalesCSV(t, sub)
	outDir := filepath.Join(home, "profiles")

	runCmd(t, "profile", filepath.Join(home, "*.csv"), filepath.Join(sub, "*.csv"), "--out-dir", outDir)

	for _, name := range []string{"sales.profile.md", "sales__2.profile.md"} {
		if md := readFile(t, filepath.Join(outDir, name)); !strings.Contains(md, "[SCHEMA]") {
			t.Fatalf("%s has no schema", name)
		}
	}
	if err := execCmd("profile", filepath.Join(home, "*.csv"), filepath.Join(sub, "*.csv"), "-o", filepath.Join(home, "x.md")); err == nil {
		t.Fatalf("expected error for -o with several files")
	}
}

func TestCLI_CleanProcessAndFeature(t *testing.T) {
	home := isolateHome(t)
	data := writeSalesCSV(t, home)

	cleaned := filepath.Join(home, "out", "cleaned.csv")
	runCmd(t, "clean", data, "-o", cleaned)
	if head := strings.SplitN(readFile(t, cleaned), "\n", 2)[0]; head != "order_date,region,sales,quantity" {
		t.Fatalf("cleaned header = %q", head)
	}

	processed := filepath.Join(home, "processed.xlsx")
	runCmd(t, "process", data, "-k", "2", "-o", processed)
	ds, err := loader.Load(processed, loader.DefaultOptions())
	if err != nil {
		t.Fatalf("load processed: %v", err)
	}
	if _, ok := ds.Column(segment.Column); !ok {
		t.Fatalf("processed data has no segment column: %v", ds.Names())
	}
	// four source columns, the segment labels and at least one engineered feature
	if ds.Width() < 6 {
		t.Fatalf("no engineered features: %v", ds.Names())
	}

	featured := filepath.Join(home, "featured.csv")
	runCmd(t, "feature", data, "--type", "arithmetic", "--col1", "sales", "--col2", "quantity", "--op", "divide", "-o", featured)
	if head := strings.SplitN(readFile(t, featured), "\n", 2)[0]; !strings.HasSuffix(head, ",sales_divide_quantity") {
		t.Fatalf("featured header = %q", head)
	}
	if err := execCmd("feature", data, "--type", "unary", "--col", "region", "--op", "log"); err == nil {
		t.Fatalf("expected error for log of a categorical column")
	}
}

func TestCLI_FeatureFromYAML(t *testing.T) {
	home := isolateHome(t)
	data := writeSalesCSV(t, home)
	spec := filepath.Join(home, "features.yaml")
	yml := "- type: unary\n  col: sales\n  op: square\n- type: categorical_count\n  col: region\n- type: unary\n  col: nope\n  op: log\n"
	if err := os.WriteFile(spec, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(home, "f.csv")
	runCmd(t, "feature", data, "--from", spec, "-o", out)
	head := strings.SplitN(readFile(t, out), "\n", 2)[0]
	if !strings.Contains(head, "square_of_sales") || !strings.Contains(head, "region_counts") {
		t.Fatalf("header = %q", head)
	}
}

func TestCLI_DashboardLifecycle(t *testing.T) {
	home := isolateHome(t)
	data := writeSalesCSV(t, home)

	runCmd(t, "dashboard", "init", "sales", "-d", "Monthly sales", "--source", data)
	if err := execCmd("dashboard", "init", "sales"); err == nil {
		t.Fatalf("expected error re-initializing dashboard")
	}
	runCmd(t, "dashboard", "add", "sales", "--type", "bar", "--x", "region", "--y", "sales")
	runCmd(t, "dashboard", "add", "sales", "--type", "line", "--x", "order_date", "--y", "sales", "--title", "Sales over time")
	if err := execCmd("dashboard", "add", "sales", "--type", "bar", "--x", "region", "--y", "region"); err == nil {
		t.Fatalf("expected validation error for a categorical y axis")
	}
	runCmd(t, "dashboard", "kpi", "sales", "Sum of sales")
	if err := execCmd("dashboard", "kpi", "sales", "Sum of nothing"); err == nil {
		t.Fatalf("expected error for unknown measure")
	}

	dir := filepath.Join(home, ".dashloom", "dashboards", "sales")
	d, err := dashboard.Load(dir)
	if err != nil {
		t.Fatalf("load dashboard: %v", err)
	}
	if len(d.Charts) != 2 || len(d.KPIs) != 1 {
		t.Fatalf("charts=%d kpis=%v", len(d.Charts), d.KPIs)
	}

	out := filepath.Join(home, "dash.md")
	runCmd(t, "dashboard", "render", "sales", "-o", out)
	md := readFile(t, out)
	for _, want := range []string{"# sales", "Monthly sales", "## Key metrics", "**Sum of sales:**", "### 1. Bar Chart: sales by region", "### 2. Sales over time"} {
		if !strings.Contains(md, want) {
			t.Fatalf("render missing %q:\n%s", want, md)
		}
	}

	runCmd(t, "dashboard", "remove", "sales", d.Charts[0].ID[:8])
	runCmd(t, "dashboard", "kpi", "sales", "Sum of sales", "--remove")
	d, err = dashboard.Load(dir)
	if err != nil {
		t.Fatalf("reload dashboard: %v", err)
	}
	if len(d.Charts) != 1 || len(d.KPIs) != 0 {
		t.Fatalf("after removal charts=%d kpis=%v", len(d.Charts), d.KPIs)
	}
	runCmd(t, "dashboard", "list")
	runCmd(t, "dashboard", "show", "sales")
	runCmd(t, "dashboard", "show", dir+string(os.PathSeparator))
}

func TestCLI_DashboardAddFromYAML(t *testing.T) {
	home := isolateHome(t)
	data := writeSalesCSV(t, home)
	runCmd(t, "dashboard", "init", "yml", "--source", data)
	spec := filepath.Join(home, "charts.yaml")
	yml := "- type: donut\n  names: region\n  values: sales\n- type: Scatter Plot\n  x: quantity\n  y: sales\n"
	if err := os.WriteFile(spec, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	runCmd(t, "dashboard", "add", "yml", "--from", spec)
	d, err := dashboard.Load(filepath.Join(home, ".dashloom", "dashboards", "yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(d.Charts) != 2 || d.Charts[0].Type != "Donut Chart" || d.Charts[1].Type != "Scatter Plot" {
		t.Fatalf("charts = %+v", d.Charts)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := isolateHome(t)
	runCmd(t, "config", "set", "default_segments", "4")
	if got := readFile(t, filepath.Join(home, ".dashloom", "config.yaml")); !strings.Contains(got, "default_segments: 4") {
		t.Fatalf("config file:\n%s", got)
	}
	runCmd(t, "config", "show")
	if cfg == nil || cfg.DefaultSegments != 4 {
		t.Fatalf("config not reloaded: %+v", cfg)
	}
	if err := execCmd("config", "set", "date_threshold", "2"); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := execCmd("config", "set", "outlier_threshold", "0"); err == nil {
		t.Fatalf("expected error for a zero outlier threshold")
	}
	runCmd(t, "config", "set", "segment_seed", "0")
	runCmd(t, "config", "show")
	if got := segmentOptions().Seed; got != 0 {
		t.Fatalf("segment seed = %d, want 0", got)
	}
}

func TestCLI_ChartsAndSegments(t *testing.T) {
	home := isolateHome(t)
	data := writeSalesCSV(t, home)
	runCmd(t, "charts", "types")
	runCmd(t, "charts", "columns", data, "--type", "scatter")
	runCmd(t, "segment", data, "-k", "3")
	runCmd(t, "segment", "optimize", data, "--max-k", "4", "--method", "silhouette")
	if err := execCmd("segment", "optimize", data, "--method", "gap"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}
