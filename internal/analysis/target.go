package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/inference"
)

// Target tasks.
const (
	Regression     = "regression"
	Classification = "classification"
)

const (
	maxTargetClasses = 20
	targetBins       = 10
	highInfluenceMI  = 0.1
)

// ErrUnsuitableTarget is returned for targets that are neither numeric nor a
// categorical column with at most 20 classes.
var ErrUnsuitableTarget = errors.New("column is not a suitable target")

// FeatureScore rates how much one feature tells about the target.
type FeatureScore struct {
	Feature string `json:"feature"`
	// MutualInformation is in nats, estimated on equal-frequency bins.
	MutualInformation float64 `json:"mutual_information"`
	// Importance is the feature's share of the summed dependence scores: the
	// correlation ratio for a numeric target, the uncertainty coefficient for
	// a categorical one. Shares add up to 1 unless every score is zero.
	Importance float64 `json:"importance"`
}

// TargetReport ranks every feature against one target column.
type TargetReport struct {
	Target   string         `json:"target"`
	Task     string         `json:"task"`
	Features []FeatureScore `json:"features"` // highest mutual information first
}

// AnalyzeTarget scores every other column against target. Identifier-like
// columns are left out. Date features are measured on their timestamps and
// missing cells form a bin of their own.
func AnalyzeTarget(ds *dataset.Dataset, target string, opt inference.Options) (*TargetReport, error) {
	tc, ok := ds.Column(target)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, target)
	}
	types := inference.Types(ds, opt)
	classes := inference.Classify(ds, opt)
	rep := &TargetReport{Target: target}
	switch types[target] {
	case inference.Numeric:
		rep.Task = Regression
	case inference.Categorical:
		if tc.Distinct(false) > maxTargetClasses {
			return nil, fmt.Errorf("%w: %q has more than %d classes", ErrUnsuitableTarget, target, maxTargetClasses)
		}
		rep.Task = Classification
	default:
		return nil, fmt.Errorf("%w: %q is %s", ErrUnsuitableTarget, target, types[target])
	}

	var rows []int
	for i := 0; i < ds.Rows(); i++ {
		if !tc.IsNull(i) {
			rows = append(rows, i)
		}
	}
	y := encode(tc, rows)
	for _, c := range ds.Columns() {
		if c.Name == target || classes[c.Name] == inference.Useless {
			continue
		}
		x := encode(c, rows)
		mi := mutualInformation(x, y)
		var dep float64
		if rep.Task == Regression {
			dep = correlationRatio(x, tc, rows)
		} else if hy := entropy(y); hy > 0 {
			dep = mi / hy
		}
		rep.Features = append(rep.Features, FeatureScore{Feature: c.Name, MutualInformation: mi, Importance: dep})
	}

	var total float64
	for _, f := range rep.Features {
		total += f.Importance
	}
	if total > 0 {
		for i := range rep.Features {
			rep.Features[i].Importance /= total
		}
	}
	sort.SliceStable(rep.Features, func(i, j int) bool {
		return rep.Features[i].MutualInformation > rep.Features[j].MutualInformation
	})
	return rep, nil
}

// HighInfluence counts features whose mutual information exceeds 0.1 nats.
func (r *TargetReport) HighInfluence() int {
	n := 0
	for _, f := range r.Features {
		if f.MutualInformation > highInfluenceMI {
			n++
		}
	}
	return n
}

// AverageMI is the mean mutual information across features, or 0 with none.
func (r *TargetReport) AverageMI() float64 {
	if len(r.Features) == 0 {
		return 0
	}
	mi := make([]float64, len(r.Features))
	for i, f := range r.Features {
		mi[i] = f.MutualInformation
	}
	return stat.Mean(mi, nil)
}

// encode maps the given rows of c to small integer codes: categories by value,
// numbers and times by equal-frequency bin. Nulls share one extra code.
func encode(c *dataset.Column, rows []int) []int {
	out := make([]int, len(rows))
	if c.Type == dataset.String || c.Categorical {
		codes := map[string]int{}
		for k, i := range rows {
			key := c.Key(i)
			code, ok := codes[key]
			if !ok {
				code = len(codes)
				codes[key] = code
			}
			out[k] = code
		}
		return out
	}

	value := func(i int) float64 {
		if c.Type == dataset.Time {
			return float64(c.Times[i].Unix())
		}
		return c.Numbers[i]
	}
	var valid []float64
	for _, i := range rows {
		if !c.IsNull(i) {
			valid = append(valid, value(i))
		}
	}
	sort.Float64s(valid)
	var edges []float64
	for b := 1; b < targetBins && len(valid) > 0; b++ {
		e := stat.Quantile(float64(b)/targetBins, stat.Empirical, valid, nil)
		if len(edges) == 0 || e > edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}
	nullCode := len(edges) + 1
	for k, i := range rows {
		if c.IsNull(i) {
			out[k] = nullCode
			continue
		}
		// bin b holds values in (edges[b-1], edges[b]]
		out[k] = sort.SearchFloat64s(edges, value(i))
	}
	return out
}

// entropy is the Shannon entropy, in nats, of the code distribution.
func entropy(codes []int) float64 {
	counts := map[int]float64{}
	for _, c := range codes {
		counts[c]++
	}
	return stat.Entropy(distribution(counts, len(codes)))
}

// mutualInformation is H(X) + H(Y) - H(X,Y) over paired codes.
func mutualInformation(x, y []int) float64 {
	if len(x) == 0 {
		return 0
	}
	joint := map[[2]int]float64{}
	for i := range x {
		joint[[2]int{x[i], y[i]}]++
	}
	p := make([]float64, 0, len(joint))
	for _, n := range joint {
		p = append(p, n/float64(len(x)))
	}
	mi := entropy(x) + entropy(y) - stat.Entropy(p)
	return math.Max(mi, 0)
}

func distribution[K comparable](counts map[K]float64, n int) []float64 {
	p := make([]float64, 0, len(counts))
	for _, c := range counts {
		p = append(p, c/float64(n))
	}
	return p
}

// correlationRatio is the share of the target's variance explained by the
// groups in x (eta squared).
func correlationRatio(x []int, target *dataset.Column, rows []int) float64 {
	ys := make([]float64, len(rows))
	for k, i := range rows {
		ys[k] = target.Numbers[i]
	}
	if len(ys) < 2 {
		return 0
	}
	mean := stat.Mean(ys, nil)
	var total float64
	for _, v := range ys {
		total += (v - mean) * (v - mean)
	}
	if total == 0 {
		return 0
	}
	sums, counts := map[int]float64{}, map[int]float64{}
	for k, code := range x {
		sums[code] += ys[k]
		counts[code]++
	}
	var between float64
	for code, s := range sums {
		m := s / counts[code]
		between += counts[code] * (m - mean) * (m - mean)
	}
	return between / total
}

// FormatTarget renders the ten most informative features and a short summary.
func FormatTarget(r *TargetReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[TARGET ANALYSIS: %s]\n", strings.ToUpper(safeName(r.Target))))
	b.WriteString(fmt.Sprintf("Task: %s\n", r.Task))
	if len(r.Features) == 0 {
		b.WriteString("No features to compare.\n")
		return b.String()
	}
	top := r.Features
	if len(top) > 10 {
		top = top[:10]
	}
	for _, f := range top {
		b.WriteString(fmt.Sprintf("- %s: MI=%.4f, importance=%.3f\n", f.Feature, f.MutualInformation, f.Importance))
	}
	b.WriteString(fmt.Sprintf("Most influential: %s\n", r.Features[0].Feature))
	b.WriteString(fmt.Sprintf("High-influence features (MI > %.1f): %d\n", highInfluenceMI, r.HighInfluence()))
	b.WriteString(fmt.Sprintf("Average MI: %.4f\n", r.AverageMI()))
	return b.String()
}
