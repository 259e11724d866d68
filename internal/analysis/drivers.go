package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

var (
	// ErrNotNumeric is returned when a target or value column is not numeric.
	ErrNotNumeric = errors.New("column is not numeric")
	// ErrUnknownColumn is returned when a named column does not exist.
	ErrUnknownColumn = errors.New("unknown column")
)

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]; NaN where undefined
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// Correlations computes pairwise Pearson correlations over rows where both
// columns are present. It returns nil with fewer than two numeric columns.
func Correlations(ds *dataset.Dataset, opt inference.Options) *CorrMatrix {
	cols := numericColumns(ds, opt)
	if len(cols) < 2 {
		return nil
	}
	m := &CorrMatrix{Values: make([][]float64, len(cols))}
	for i, c := range cols {
		m.Columns = append(m.Columns, c.Name)
		m.Values[i] = make([]float64, len(cols))
	}
	for i := range cols {
		m.Values[i][i] = 1
		for j := i + 1; j < len(cols); j++ {
			r, ok := pairwise(cols[i], cols[j])
			if !ok {
				r = math.NaN()
			}
			m.Values[i][j], m.Values[j][i] = r, r
		}
	}
	return m
}

// Pairs lists the defined off-diagonal pairs ordered by |r| descending.
func (m *CorrMatrix) Pairs() []PairCorr {
	if m == nil {
		return nil
	}
	var pairs []PairCorr
	for i := 0; i < len(m.Columns); i++ {
		for j := i + 1; j < len(m.Columns); j++ {
			if math.IsNaN(m.Values[i][j]) {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: m.Values[i][j]})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].R) > math.Abs(pairs[j].R)
	})
	return pairs
}

func pairwise(a, b *dataset.Column) (float64, bool) {
	x := make([]float64, 0, a.Len())
	y := make([]float64, 0, a.Len())
	for i := 0; i < a.Len(); i++ {
		if a.IsNull(i) || b.IsNull(i) {
			continue
		}
		x = append(x, a.Numbers[i])
		y = append(y, b.Numbers[i])
	}
	return stats.Pearson(x, y)
}

func numericColumns(ds *dataset.Dataset, opt inference.Options) []*dataset.Column {
	if ds == nil {
		return nil
	}
	types := inference.Types(ds, opt)
	var out []*dataset.Column
	for _, c := range ds.Columns() {
		if c.Type == dataset.Number && types[c.Name] == inference.Numeric {
			out = append(out, c)
		}
	}
	return out
}

// Outliers counts rows holding at least one numeric value whose robust
// z-score exceeds threshold, plus the per-column counts.
func Outliers(ds *dataset.Dataset, threshold float64) (int, map[string]int) {
	perColumn := map[string]int{}
	if ds == nil || threshold <= 0 {
		return 0, perColumn
	}
	flagged := make([]bool, ds.Rows())
	for _, c := range numericColumns(ds, inference.Options{}) {
		median, mad := stats.MedianMAD(c.Valid())
		if mad == 0 {
			continue
		}
		for i, v := range c.Numbers {
			if c.IsNull(i) {
				continue
			}
			if math.Abs(0.6745*(v-median)/mad) > threshold {
				perColumn[c.Name]++
				flagged[i] = true
			}
		}
	}
	rows := 0
	for _, f := range flagged {
		if f {
			rows++
		}
	}
	return rows, perColumn
}

// KeyDrivers returns the n numeric columns most correlated with target by
// |r|, strongest first. The target itself is excluded.
func KeyDrivers(ds *dataset.Dataset, target string, n int) ([]PairCorr, error) {
	tc, ok := ds.Column(target)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, target)
	}
	if tc.Type != dataset.Number {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, target)
	}
	var out []PairCorr
	for _, c := range numericColumns(ds, inference.Options{}) {
		if c.Name == target {
			continue
		}
		if r, ok := pairwise(tc, c); ok {
			out = append(out, PairCorr{A: target, B: c.Name, R: r})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].R) > math.Abs(out[j].R) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Suggestion names the columns most likely to fill the dashboard's key roles.
// Empty fields mean no candidate exists.
type Suggestion struct {
	Date     string
	Value    string
	Category string
}

var (
	dateHints     = []string{"date", "orderdate", "timestamp", "datetime"}
	valueHints    = []string{"sales", "revenue", "profit", "amount", "price"}
	categoryHints = []string{"product", "category", "item", "region", "country", "city", "segment"}
)

// SuggestColumns picks a date, value and category column. Well-known names
// win in hint order; otherwise the first column of the right class is used.
func SuggestColumns(ds *dataset.Dataset, opt inference.Options) Suggestion {
	var s Suggestion
	if ds == nil {
		return s
	}
	types := inference.Types(ds, opt)
	// "Order Date", "order_date" and "OrderDate" all match the hint "orderdate"
	squash := strings.NewReplacer(" ", "", "_", "", "-", "")
	lower := map[string]string{}
	for _, n := range ds.Names() {
		key := squash.Replace(strings.ToLower(strings.TrimSpace(n)))
		if _, dup := lower[key]; !dup {
			lower[key] = n
		}
	}
	find := func(hints []string, class inference.Class) string {
		for _, h := range hints {
			if n, ok := lower[h]; ok {
				return n
			}
		}
		for _, n := range ds.Names() {
			if types[n] == class {
				return n
			}
		}
		return ""
	}
	s.Date = find(dateHints, inference.DateTime)
	s.Value = find(valueHints, inference.Numeric)
	s.Category = find(categoryHints, inference.Categorical)
	return s
}
