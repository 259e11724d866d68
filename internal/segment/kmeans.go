package segment

import (
	"errors"
	"math"
	"math/rand"

	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// KMeans partitions points into K clusters.
type KMeans struct {
	K         int
	MaxIter   int
	Centroids [][]float64
	Labels    []int
	Inertia   float64 // sum of squared distances to the assigned centroid
}

// NewKMeans returns a model with k clusters and an iteration cap.
func NewKMeans(k, maxIter int) *KMeans {
	return &KMeans{K: k, MaxIter: maxIter}
}

// Fit runs Lloyd's algorithm from a k-means++ seeding drawn from rng.
func (m *KMeans) Fit(X [][]float64, rng *rand.Rand) error {
	if len(X) == 0 {
		return errors.New("input data cannot be empty")
	}
	n, p := len(X), len(X[0])
	if m.K < 1 || n < m.K {
		return errors.New("number of data points is less than K")
	}
	m.initCenters(X, rng)
	m.Labels = make([]int, n)
	for i := range m.Labels {
		m.Labels[i] = -1
	}
	for it := 0; it < m.MaxIter; it++ {
		changed := false
		for i, x := range X {
			best := m.nearest(x)
			if m.Labels[i] != best {
				m.Labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([][]float64, m.K)
		counts := make([]int, m.K)
		for k := range sums {
			sums[k] = make([]float64, p)
		}
		for i, x := range X {
			k := m.Labels[i]
			counts[k]++
			for j, v := range x {
				sums[k][j] += v
			}
		}
		for k := 0; k < m.K; k++ {
			if counts[k] == 0 {
				continue // empty cluster keeps its centroid
			}
			for j := 0; j < p; j++ {
				m.Centroids[k][j] = sums[k][j] / float64(counts[k])
			}
		}
	}
	m.Inertia = 0
	for i, x := range X {
		m.Inertia += stats.SquaredDistance(x, m.Centroids[m.Labels[i]])
	}
	return nil
}

func (m *KMeans) nearest(x []float64) int {
	best, bestD := 0, math.MaxFloat64
	for k, c := range m.Centroids {
		if d := stats.SquaredDistance(x, c); d < bestD {
			best, bestD = k, d
		}
	}
	return best
}

// initCenters picks the first center uniformly, the rest with probability
// proportional to the squared distance to the nearest chosen center.
func (m *KMeans) initCenters(X [][]float64, rng *rand.Rand) {
	n := len(X)
	m.Centroids = make([][]float64, 0, m.K)
	m.Centroids = append(m.Centroids, append([]float64(nil), X[rng.Intn(n)]...))
	distSq := make([]float64, n)
	for len(m.Centroids) < m.K {
		total := 0.0
		for i, x := range X {
			minDist := math.MaxFloat64
			for _, c := range m.Centroids {
				if d := stats.SquaredDistance(x, c); d < minDist {
					minDist = d
				}
			}
			distSq[i] = minDist
			total += minDist
		}
		pick := n - 1
		if total == 0 {
			// all remaining points coincide with a center
			pick = rng.Intn(n)
		} else {
			r := rng.Float64() * total
			cumulative := 0.0
			for i, d2 := range distSq {
				cumulative += d2
				if cumulative >= r && d2 > 0 {
					pick = i
					break
				}
			}
		}
		m.Centroids = append(m.Centroids, append([]float64(nil), X[pick]...))
	}
}

// bestOf fits restarts models drawn from one seeded source and keeps the one
// with the lowest inertia.
func bestOf(X [][]float64, k, maxIter, restarts int, seed int64) (*KMeans, error) {
	rng := rand.New(rand.NewSource(seed))
	var best *KMeans
	for r := 0; r < restarts; r++ {
		m := NewKMeans(k, maxIter)
		if err := m.Fit(X, rng); err != nil {
			return nil, err
		}
		if best == nil || m.Inertia < best.Inertia {
			best = m
		}
	}
	return best, nil
}
