package analysis

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
)

// metrics has one strong outlier in row 8 shared by Score and Concentration.
func metrics(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromColumns(
		dataset.NewStringColumn("Group", []string{"A", "A", "A", "B", "B", "B", "A", "B", "A", "B"}, nil),
		dataset.NewNumberColumn("Concentration (g/L)", []float64{0.5, 0.6, 0.55, 0.7, 0.65, 0.68, 0.52, 0.75, 3.0, 0.65}),
		dataset.NewNumberColumn("Score", []float64{10, 11, 9.5, 10.5, 9.8, 10.2, 8.8, 9.7, 50, 10}),
		dataset.NewNumberColumn("Noise", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}),
		dataset.NewStringColumn("Note", []string{"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth"}, nil),
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return ds
}

func TestProfileAndMarkdown(t *testing.T) {
	opt := DefaultOptions()
	opt.SampleRows = 3
	opt.GroupBy = []string{"Group"}
	rep := Profile(metrics(t), "metrics.csv", opt)

	if rep.Rows != 10 || len(rep.Cols) != 5 || len(rep.Samples) != 3 {
		t.Fatalf("rows=%d cols=%d samples=%d", rep.Rows, len(rep.Cols), len(rep.Samples))
	}
	if got := strings.Join(rep.Samples[0], ","); got != "A,0.5,10,1,first" {
		t.Fatalf("first sample = %s", got)
	}
	score := rep.Cols[2]
	if score.Kind != "numeric" || score.Min != 8.8 || score.Max != 50 || score.OutliersCount != 1 {
		t.Fatalf("score summary = %+v", score)
	}
	if rep.Cols[4].Kind != "useless" {
		t.Fatalf("unique notes should classify as useless, got %s", rep.Cols[4].Kind)
	}

	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: metrics.csv",
		"Rows: 10",
		"Concentration [g/L]: numeric",
		"outliers: 1 above |z|>3.5",
		"Group: categorical",
		"top: A(5), B(5)",
		"[GROUP-BY SUMMARY]",
		"Group=A (n=5)",
		"[CORRELATIONS]",
		"Concentration (g/L) ~ Score",
		"[HEAD AND SAMPLE ROWS]",
		"[NOTES]",
		`column "Note" looks like an identifier`,
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestProfileMissingGroupColumnWarns(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = []string{"Nope"}
	rep := Profile(metrics(t), "", opt)
	if len(rep.Groups) != 0 {
		t.Fatalf("groups = %v", rep.Groups)
	}
	found := false
	for _, w := range rep.Warnings {
		if strings.Contains(w, `group-by column "Nope" not found`) {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v", rep.Warnings)
	}
}

func TestGroupMetrics(t *testing.T) {
	groups, _ := groupBy(metrics(t), []string{"Group"})
	if len(groups) != 2 || groups[0].Key != "Group=A" {
		t.Fatalf("groups = %+v", groups)
	}
	m := groups[1].Metrics["Score"]
	// B rows: 10.5, 9.8, 10.2, 9.7, 10
	if m.Count != 5 || m.Min != 9.7 || m.Max != 10.5 || math.Abs(m.Mean-10.04) > 1e-9 {
		t.Fatalf("B score = %+v", m)
	}
}

func TestOutliersCountsRows(t *testing.T) {
	rows, per := Outliers(metrics(t), 3.5)
	if rows != 1 {
		t.Fatalf("rows = %d", rows)
	}
	if per["Score"] != 1 || per["Concentration (g/L)"] != 1 || per["Noise"] != 0 {
		t.Fatalf("per column = %v", per)
	}
	if n, _ := Outliers(metrics(t), 0); n != 0 {
		t.Fatalf("threshold 0 disables detection")
	}
}

func TestKeyDrivers(t *testing.T) {
	drivers, err := KeyDrivers(metrics(t), "Score", 5)
	if err != nil {
		t.Fatalf("KeyDrivers: %v", err)
	}
	if len(drivers) != 2 || drivers[0].B != "Concentration (g/L)" || drivers[1].B != "Noise" {
		t.Fatalf("drivers = %+v", drivers)
	}
	for _, d := range drivers {
		if d.B == "Score" {
			t.Fatalf("target must be excluded")
		}
	}
	top, _ := KeyDrivers(metrics(t), "Score", 1)
	if len(top) != 1 {
		t.Fatalf("n should cap results, got %d", len(top))
	}
	if !strings.Contains(FormatDrivers("Score", top), "Concentration (g/L): |r|=") {
		t.Fatalf("format = %q", FormatDrivers("Score", top))
	}
	if _, err := KeyDrivers(metrics(t), "Group", 5); !errors.Is(err, ErrNotNumeric) {
		t.Fatalf("categorical target: %v", err)
	}
	if _, err := KeyDrivers(metrics(t), "Missing", 5); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("missing target: %v", err)
	}
}

func TestCorrelationsNeedTwoColumns(t *testing.T) {
	ds, _ := dataset.FromColumns(dataset.NewNumberColumn("x", []float64{1, 2, 2}))
	if m := Correlations(ds, inference.Options{}); m != nil {
		t.Fatalf("expected nil, got %+v", m)
	}
	m := Correlations(metrics(t), inference.Options{})
	if m == nil || len(m.Columns) != 3 || m.Values[0][0] != 1 {
		t.Fatalf("matrix = %+v", m)
	}
	if m.Values[0][1] != m.Values[1][0] {
		t.Fatalf("matrix must be symmetric")
	}
}

func TestSuggestColumns(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ds, _ := dataset.FromColumns(
		dataset.NewStringColumn("Customer", []string{"a", "b", "a"}, nil),
		dataset.NewTimeColumn("Order Date", []time.Time{day, day, day.AddDate(0, 1, 0)}, nil),
		dataset.NewNumberColumn("Quantity", []float64{1, 2, 2}),
		dataset.NewNumberColumn("Sales", []float64{5, 6, 6}),
		dataset.NewStringColumn("Region", []string{"n", "s", "n"}, nil),
	)
	got := SuggestColumns(ds, inference.Options{})
	want := Suggestion{Date: "Order Date", Value: "Sales", Category: "Region"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	plain, _ := dataset.FromColumns(
		dataset.NewStringColumn("who", []string{"a", "b", "a"}, nil),
		dataset.NewNumberColumn("qty", []float64{1, 2, 2}),
	)
	got = SuggestColumns(plain, inference.Options{})
	if got != (Suggestion{Value: "qty", Category: "who"}) {
		t.Fatalf("fallback = %+v", got)
	}
	snake, _ := dataset.FromColumns(
		dataset.NewNumberColumn("unit_cost", []float64{1, 2, 2}),
		dataset.NewTimeColumn("ship_date", []time.Time{day, day, day}, nil),
		dataset.NewTimeColumn("order_date", []time.Time{day, day, day}, nil),
	)
	if got := SuggestColumns(snake, inference.Options{}); got.Date != "order_date" {
		t.Fatalf("snake-case hint = %+v", got)
	}
}

func TestComputeKPIsWithYearOverYear(t *testing.T) {
	d23 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	d24 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ds, _ := dataset.FromColumns(
		dataset.NewTimeColumn("date", []time.Time{d23, d23, d24, d24}, nil),
		dataset.NewNumberColumn("sales", []float64{40, 60, 100, 50}),
	)
	k, err := ComputeKPIs(ds, "date", "sales")
	if err != nil {
		t.Fatalf("ComputeKPIs: %v", err)
	}
	if k.Total != 250 || k.Average != 62.5 || k.Count != 4 {
		t.Fatalf("kpis = %+v", k)
	}
	if k.YoYGrowth == nil || *k.YoYGrowth != 50 {
		t.Fatalf("yoy = %v", k.YoYGrowth)
	}
	entries := k.Entries()
	if len(entries) != 4 || entries[0][1] != "$250.00" || entries[3][1] != "50.00%" {
		t.Fatalf("entries = %v", entries)
	}
	single, _ := ComputeKPIs(ds.Take([]int{0, 1}), "date", "sales")
	if single.YoYGrowth != nil {
		t.Fatalf("one year of data has no growth")
	}
}

func TestContributionAnalysis(t *testing.T) {
	ds, _ := dataset.FromColumns(
		dataset.NewStringColumn("region", []string{"n", "s", "n", "e"}, nil),
		dataset.NewNumberColumn("rev", []float64{10, 40, 10, 40}),
	)
	got, err := ContributionAnalysis(ds, "region", "rev")
	if err != nil {
		t.Fatalf("ContributionAnalysis: %v", err)
	}
	// s and e tie at 40; s appears first
	if len(got) != 3 || got[0].Category != "s" || got[1].Category != "e" || got[2].Total != 20 {
		t.Fatalf("got %+v", got)
	}
	if math.Abs(got[0].Share-0.4) > 1e-9 {
		t.Fatalf("share = %v", got[0].Share)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{1234567.891: "1,234,567.89", 999: "999.00", -1000: "-1,000.00", 0: "0.00"}
	for in, want := range tests {
		if got := FormatNumber(in, 2); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}
