package segment

import (
	"errors"
	"math"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// ErrNoNumericColumns is returned by the k recommendations when nothing can be clustered.
var ErrNoNumericColumns = errors.New("no numeric columns to cluster")

// Score is a metric value for one cluster count.
type Score struct {
	K     int     `json:"k"`
	Value float64 `json:"value"`
}

// Recommendation lists scores per k and the suggested k.
type Recommendation struct {
	Scores []Score `json:"scores"`
	BestK  int     `json:"best_k"`
}

// Elbow computes the within-cluster sum of squares for k=1..maxK and suggests
// the k with the largest second difference.
func Elbow(ds *dataset.Dataset, maxK int, opt Options) (Recommendation, error) {
	opt = opt.withDefaults()
	X, features := matrix(ds, opt)
	if len(features) == 0 {
		return Recommendation{}, ErrNoNumericColumns
	}
	if maxK > len(X) {
		maxK = len(X)
	}
	var rec Recommendation
	for k := 1; k <= maxK; k++ {
		m, err := bestOf(X, k, opt.MaxIter, opt.Restarts, opt.Seed)
		if err != nil {
			return Recommendation{}, err
		}
		rec.Scores = append(rec.Scores, Score{K: k, Value: m.Inertia})
	}
	rec.BestK = 1
	best := math.Inf(-1)
	for i := 1; i+1 < len(rec.Scores); i++ {
		d2 := rec.Scores[i-1].Value - 2*rec.Scores[i].Value + rec.Scores[i+1].Value
		if d2 > best {
			best = d2
			rec.BestK = rec.Scores[i].K
		}
	}
	return rec, nil
}

// Silhouette computes the mean silhouette for k=2..maxK and suggests the
// k with the highest score. It needs at least 3 rows.
func Silhouette(ds *dataset.Dataset, maxK int, opt Options) (Recommendation, error) {
	opt = opt.withDefaults()
	X, features := matrix(ds, opt)
	if len(features) == 0 {
		return Recommendation{}, ErrNoNumericColumns
	}
	if maxK > len(X)-1 {
		maxK = len(X) - 1
	}
	if maxK < 2 {
		return Recommendation{}, errors.New("silhouette needs at least 3 rows")
	}
	var rec Recommendation
	best := math.Inf(-1)
	for k := 2; k <= maxK; k++ {
		m, err := bestOf(X, k, opt.MaxIter, opt.Restarts, opt.Seed)
		if err != nil {
			return Recommendation{}, err
		}
		s := meanSilhouette(X, m.Labels, k)
		rec.Scores = append(rec.Scores, Score{K: k, Value: s})
		if s > best {
			best = s
			rec.BestK = k
		}
	}
	return rec, nil
}

// meanSilhouette averages (b-a)/max(a,b) over all points; points in singleton
// clusters score 0.
func meanSilhouette(X [][]float64, labels []int, k int) float64 {
	n := len(X)
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	total := 0.0
	sums := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := range sums {
			sums[c] = 0
		}
		for j := 0; j < n; j++ {
			if i != j {
				sums[labels[j]] += stats.Distance(X[i], X[j])
			}
		}
		own := labels[i]
		if sizes[own] <= 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			b = math.Min(b, sums[c]/float64(sizes[c]))
		}
		if math.IsInf(b, 1) {
			continue
		}
		if d := math.Max(a, b); d > 0 {
			total += (b - a) / d
		}
	}
	return total / float64(n)
}
