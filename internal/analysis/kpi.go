package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// KPIs are the headline figures for a value column.
type KPIs struct {
	Total   float64
	Average float64
	Count   int
	// YoYGrowth is the percent change between the last two calendar years,
	// nil when the data spans fewer than two years or the prior year sums to zero.
	YoYGrowth *float64
}

// Entries renders the KPIs as ordered label/value pairs.
func (k KPIs) Entries() [][2]string {
	out := [][2]string{
		{"Total Value", "$" + FormatNumber(k.Total, 2)},
		{"Average Value", "$" + FormatNumber(k.Average, 2)},
		{"Total Rows", FormatNumber(float64(k.Count), 0)},
	}
	if k.YoYGrowth != nil {
		out = append(out, [2]string{"Year-over-Year Growth", fmt.Sprintf("%.2f%%", *k.YoYGrowth)})
	}
	return out
}

// ComputeKPIs sums and averages valueCol. When dateCol names a time column,
// year-over-year growth compares the final year with the one before it.
func ComputeKPIs(ds *dataset.Dataset, dateCol, valueCol string) (KPIs, error) {
	var k KPIs
	vc, ok := ds.Column(valueCol)
	if !ok {
		return k, fmt.Errorf("%w: %q", ErrUnknownColumn, valueCol)
	}
	if vc.Type != dataset.Number {
		return k, fmt.Errorf("%w: %q", ErrNotNumeric, valueCol)
	}
	vals := vc.Valid()
	k.Count = ds.Rows()
	for _, v := range vals {
		k.Total += v
	}
	if len(vals) > 0 {
		k.Average = k.Total / float64(len(vals))
	}
	dc, ok := ds.Column(dateCol)
	if !ok || dc.Type != dataset.Time {
		return k, nil
	}
	yearly := map[int]float64{}
	last := math.MinInt
	for i := 0; i < ds.Rows(); i++ {
		if dc.IsNull(i) || vc.IsNull(i) {
			continue
		}
		y := dc.Times[i].Year()
		yearly[y] += vc.Numbers[i]
		if y > last {
			last = y
		}
	}
	if len(yearly) < 2 {
		return k, nil
	}
	// missing years in between count as zero
	if prev := yearly[last-1]; prev != 0 {
		g := (yearly[last] - prev) / prev * 100
		k.YoYGrowth = &g
	}
	return k, nil
}

// Contribution is one category's share of the value total.
type Contribution struct {
	Category string
	Total    float64
	Share    float64 // fraction of the grand total, 0 when the total is 0
}

// ContributionAnalysis sums valueCol per category, largest first. Ties keep
// first-appearance order; null categories are skipped.
func ContributionAnalysis(ds *dataset.Dataset, categoryCol, valueCol string) ([]Contribution, error) {
	cc, ok := ds.Column(categoryCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, categoryCol)
	}
	vc, ok := ds.Column(valueCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, valueCol)
	}
	if vc.Type != dataset.Number {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, valueCol)
	}
	idx := map[string]int{}
	var out []Contribution
	grand := 0.0
	for i := 0; i < ds.Rows(); i++ {
		if cc.IsNull(i) {
			continue
		}
		key := cc.Display(i)
		j, seen := idx[key]
		if !seen {
			j = len(out)
			idx[key] = j
			out = append(out, Contribution{Category: key})
		}
		if !vc.IsNull(i) {
			out[j].Total += vc.Numbers[i]
			grand += vc.Numbers[i]
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Total > out[b].Total })
	if grand != 0 {
		for i := range out {
			out[i].Share = out[i].Total / grand
		}
	}
	return out, nil
}

// FormatNumber formats v with comma grouping and the given decimals.
func FormatNumber(v float64, decimals int) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + frac
}
