package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

const (
	seasonPeriod       = 12
	minDecomposeMonths = 2 * seasonPeriod
)

var (
	// ErrNotTime is returned when a date column does not hold times.
	ErrNotTime = errors.New("column is not a date column")
	// ErrTooFewPeriods is returned when a monthly series spans less than two years.
	ErrTooFewPeriods = errors.New("not enough monthly periods to decompose")
)

// Decomposition splits a monthly series into additive trend, seasonal and
// residual parts: Observed = Trend + Seasonal + Residual. Trend and Residual
// are NaN for the first and last six months, where the centered average is
// undefined.
type Decomposition struct {
	Months   []time.Time
	Observed []float64
	Trend    []float64
	Seasonal []float64
	Residual []float64
}

// Decompose sums valueCol per calendar month, from the first month with data
// to the last (empty months count as zero), and needs at least 24 months.
func Decompose(ds *dataset.Dataset, dateCol, valueCol string) (*Decomposition, error) {
	dc, ok := ds.Column(dateCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, dateCol)
	}
	if dc.Type != dataset.Time {
		return nil, fmt.Errorf("%w: %q", ErrNotTime, dateCol)
	}
	vc, ok := ds.Column(valueCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, valueCol)
	}
	if vc.Type != dataset.Number {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, valueCol)
	}

	sums := map[time.Time]float64{}
	var first, last time.Time
	for i := 0; i < ds.Rows(); i++ {
		if dc.IsNull(i) || vc.IsNull(i) {
			continue
		}
		t := dc.Times[i]
		m := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		sums[m] += vc.Numbers[i]
		if first.IsZero() || m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
	}
	if len(sums) == 0 {
		return nil, ErrTooFewPeriods
	}
	d := &Decomposition{}
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		d.Months = append(d.Months, m)
		d.Observed = append(d.Observed, sums[m])
	}
	if len(d.Months) < minDecomposeMonths {
		return nil, fmt.Errorf("%w: %d months, need %d", ErrTooFewPeriods, len(d.Months), minDecomposeMonths)
	}
	d.decompose()
	return d, nil
}

func (d *Decomposition) decompose() {
	n := len(d.Observed)
	half := seasonPeriod / 2

	// 2x12 centered moving average
	w := make([]float64, seasonPeriod+1)
	for i := range w {
		w[i] = 1.0 / seasonPeriod
	}
	w[0], w[seasonPeriod] = 0.5/seasonPeriod, 0.5/seasonPeriod
	d.Trend = make([]float64, n)
	for t := range d.Trend {
		if t < half || t >= n-half {
			d.Trend[t] = math.NaN()
			continue
		}
		d.Trend[t] = floats.Dot(w, d.Observed[t-half:t+half+1])
	}

	avgs := make([]float64, seasonPeriod)
	for p := range avgs {
		var detrended []float64
		for t := p; t < n; t += seasonPeriod {
			if !math.IsNaN(d.Trend[t]) {
				detrended = append(detrended, d.Observed[t]-d.Trend[t])
			}
		}
		avgs[p] = stat.Mean(detrended, nil)
	}
	floats.AddConst(-stat.Mean(avgs, nil), avgs)

	d.Seasonal = make([]float64, n)
	d.Residual = make([]float64, n)
	for t := 0; t < n; t++ {
		d.Seasonal[t] = avgs[t%seasonPeriod]
		d.Residual[t] = d.Observed[t] - d.Trend[t] - d.Seasonal[t]
	}
}

// SeasonalEffects returns the seasonal component of each calendar month.
func (d *Decomposition) SeasonalEffects() map[time.Month]float64 {
	out := make(map[time.Month]float64, seasonPeriod)
	for i := 0; i < seasonPeriod && i < len(d.Months); i++ {
		out[d.Months[i].Month()] = d.Seasonal[i]
	}
	return out
}

// FormatDecomposition renders the trend and seasonal pattern of valueCol.
func FormatDecomposition(valueCol string, d *Decomposition) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[SEASONALITY OF %s]\n", strings.ToUpper(safeName(valueCol))))
	n := len(d.Months)
	b.WriteString(fmt.Sprintf("- months: %d (%s to %s)\n", n, d.Months[0].Format("2006-01"), d.Months[n-1].Format("2006-01")))

	var trend []float64
	for _, v := range d.Trend {
		if !math.IsNaN(v) {
			trend = append(trend, v)
		}
	}
	if len(trend) > 0 {
		b.WriteString(fmt.Sprintf("- trend: %s → %s\n", FormatNumber(trend[0], 2), FormatNumber(trend[len(trend)-1], 2)))
	}

	effects := d.SeasonalEffects()
	hi, lo := time.January, time.January
	for m := time.January; m <= time.December; m++ {
		if effects[m] > effects[hi] {
			hi = m
		}
		if effects[m] < effects[lo] {
			lo = m
		}
	}
	b.WriteString(fmt.Sprintf("- strongest month: %s (%+.2f)\n", hi, effects[hi]))
	b.WriteString(fmt.Sprintf("- weakest month: %s (%+.2f)\n", lo, effects[lo]))

	var resid []float64
	for _, v := range d.Residual {
		if !math.IsNaN(v) {
			resid = append(resid, v)
		}
	}
	if len(resid) > 1 {
		b.WriteString(fmt.Sprintf("- residual std: %s\n", FormatNumber(stat.StdDev(resid, nil), 2)))
	}
	return b.String()
}
