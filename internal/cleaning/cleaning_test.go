package cleaning

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// orders builds the 100-row scenario: order_date (90% valid), region (5
// categories), amount (10% missing), row_id (unique).
func orders(t *testing.T) *dataset.Dataset {
	t.Helper()
	n := 100
	dates := make([]string, n)
	regions := make([]string, n)
	amounts := make([]float64, n)
	ids := make([]string, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if i%10 == 3 {
			dates[i] = "pending"
		} else {
			dates[i] = base.AddDate(0, 0, i).Format("2006-01-02")
		}
		regions[i] = []string{"north", "south", "east", "west", "central"}[i%5]
		amounts[i] = float64(50 + i%37)
		if i%10 == 7 {
			amounts[i] = math.NaN()
		}
		ids[i] = fmt.Sprintf("R%03d", i)
	}
	ds, err := dataset.FromColumns(
		dataset.NewStringColumn("Order Date", dates, nil),
		dataset.NewStringColumn("Region", regions, nil),
		dataset.NewNumberColumn("Amount", amounts),
		dataset.NewStringColumn("Row ID", ids, nil),
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return ds
}

func sortedMedian(vals []float64) float64 {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

func TestCleanEndToEnd(t *testing.T) {
	raw := orders(t)
	amountRaw, _ := raw.Column("Amount")
	wantMedian := sortedMedian(amountRaw.Valid())

	out, lg, err := Clean(raw, Options{})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, ok := out.Column("row_id"); ok {
		t.Fatalf("row_id should be dropped")
	}
	if len(lg.UselessColumnsRemoved) != 1 || lg.UselessColumnsRemoved[0] != "row_id" {
		t.Fatalf("useless_columns_removed = %v", lg.UselessColumnsRemoved)
	}
	od, ok := out.Column("order_date")
	if !ok || od.Type != dataset.Time {
		t.Fatalf("order_date should be a time column, got %+v", od)
	}
	if od.NullCount() != 0 {
		t.Fatalf("order_date still has %d nulls", od.NullCount())
	}
	amt, _ := out.Column("amount")
	if amt.NullCount() != 0 {
		t.Fatalf("amount still has %d nulls", amt.NullCount())
	}
	for i := 0; i < out.Rows(); i++ {
		if i%10 == 7 && amt.Numbers[i] != wantMedian {
			t.Fatalf("row %d amount = %v, want median %v", i, amt.Numbers[i], wantMedian)
		}
	}
	if lg.DuplicatesRemoved != 0 {
		t.Fatalf("duplicates_removed = %d, want 0", lg.DuplicatesRemoved)
	}
	if lg.MissingValuesFilled != 20 {
		t.Fatalf("missing_values_filled = %d, want 20 (10 amounts + 10 unparseable dates)", lg.MissingValuesFilled)
	}
	if out.Rows() != 100 {
		t.Fatalf("rows = %d, want 100", out.Rows())
	}
	// input untouched
	if _, ok := raw.Column("Row ID"); !ok || raw.NullCount() != 10 {
		t.Fatalf("input dataset was mutated")
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	// region has one repeated label, and only because row 1 duplicates row 0:
	// once the duplicate is gone it is unique per row.
	n := 20
	regions := make([]string, n)
	amt := make([]float64, n)
	qty := make([]float64, n)
	for i := 0; i < n; i++ {
		regions[i] = fmt.Sprintf("r%02d", i)
		amt[i] = float64(i % 4)
		qty[i] = float64(i % 5)
	}
	regions[1], amt[1], qty[1] = regions[0], amt[0], qty[0]
	dup, err := dataset.FromColumns(
		dataset.NewStringColumn("region", regions, nil),
		dataset.NewNumberColumn("amt", amt),
		dataset.NewNumberColumn("qty", qty),
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}

	tests := []struct {
		name string
		ds   *dataset.Dataset
	}{
		{"orders", orders(t)},
		{"duplicate makes column unique", dup},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			once, first, err := Clean(tc.ds, Options{})
			if err != nil {
				t.Fatalf("first Clean: %v", err)
			}
			twice, lg, err := Clean(once, Options{})
			if err != nil {
				t.Fatalf("second Clean: %v (first pass %+v)", err, first)
			}
			if lg.DuplicatesRemoved != 0 || lg.MissingValuesFilled != 0 || len(lg.UselessColumnsRemoved) != 0 || lg.ImputedDuplicatesRemoved != 0 {
				t.Fatalf("second pass changed data: %+v (first pass %+v)", lg, first)
			}
			if twice.Rows() != once.Rows() || twice.Width() != once.Width() {
				t.Fatalf("shape changed: %dx%d -> %dx%d", once.Rows(), once.Width(), twice.Rows(), twice.Width())
			}
		})
	}

	_, lg, _ := Clean(dup, Options{})
	if lg.DuplicatesRemoved != 1 || len(lg.UselessColumnsRemoved) != 1 || lg.UselessColumnsRemoved[0] != "region" {
		t.Fatalf("first pass = %+v", lg)
	}
}

func TestCleanRemovesDuplicatesBeforeImputation(t *testing.T) {
	ds, _ := dataset.FromColumns(
		dataset.NewStringColumn("city", []string{"a", "a", "b", "b", "c", "c", "a"}, nil),
		dataset.NewNumberColumn("sales", []float64{1, 1, 2, math.NaN(), 2, 5, 5}),
	)
	out, lg, err := Clean(ds, Options{})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if lg.DuplicatesRemoved != 1 {
		t.Fatalf("duplicates_removed = %d, want 1", lg.DuplicatesRemoved)
	}
	// median of {1, 2, 2, 5, 5} after dedupe is 2, so ("b", NaN) collides with ("b", 2)
	if lg.ImputedDuplicatesRemoved != 1 || out.Rows() != 5 {
		t.Fatalf("imputed duplicates = %d rows = %d", lg.ImputedDuplicatesRemoved, out.Rows())
	}
	if lg.MissingValuesFilled != 1 || lg.ImputedValuesDiscarded != 1 {
		t.Fatalf("filled = %d discarded = %d, want 1 and 1", lg.MissingValuesFilled, lg.ImputedValuesDiscarded)
	}
	if lg.Entries()["imputed_values_discarded"] != 1 {
		t.Fatalf("entries = %v", lg.Entries())
	}
}

func TestCleanModeImputationPrefersSmallestOnTie(t *testing.T) {
	ds, _ := dataset.FromColumns(
		dataset.NewStringColumn("tier", []string{"gold", "silver", "gold", "silver", ""}, []bool{false, false, false, false, true}),
		dataset.NewNumberColumn("spend", []float64{1, 1, 2, 2, 3}),
	)
	out, lg, err := Clean(ds, Options{})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	tier, _ := out.Column("tier")
	if tier.Strings[4] != "gold" || tier.NullCount() != 0 {
		t.Fatalf("tier[4] = %q", tier.Strings[4])
	}
	if lg.MissingValuesFilled != 1 {
		t.Fatalf("missing_values_filled = %d", lg.MissingValuesFilled)
	}
}

func TestCleanKeepsConstantAndDropsEmptyColumns(t *testing.T) {
	ds, _ := dataset.FromColumns(
		dataset.NewStringColumn("status", []string{"open", "open", "open"}, nil),
		dataset.NewNumberColumn("score", []float64{1, 1, 2}),
		dataset.NewNumberColumn("blank", []float64{math.NaN(), math.NaN(), math.NaN()}),
	)
	out, lg, err := Clean(ds, Options{})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, ok := out.Column("status"); !ok {
		t.Fatalf("constant column was dropped")
	}
	if _, ok := out.Column("blank"); ok {
		t.Fatalf("entirely missing column should be dropped, log=%v", lg.UselessColumnsRemoved)
	}
}

func TestCleanEmptyDataset(t *testing.T) {
	if _, _, err := Clean(dataset.New(0), Options{}); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestLogEntries(t *testing.T) {
	lg := Log{MissingValuesFilled: 3, DuplicatesRemoved: 1, UselessColumnsRemoved: []string{"id"}}
	e := lg.Entries()
	if e["missing_values_filled"] != 3 || e["duplicates_removed"] != 1 {
		t.Fatalf("entries = %v", e)
	}
	if got := e["useless_columns_removed"].([]string); len(got) != 1 || got[0] != "id" {
		t.Fatalf("useless_columns_removed = %v", got)
	}
	if len(lg.Summary()) != len(e) {
		t.Fatalf("summary lines mismatch")
	}
}
