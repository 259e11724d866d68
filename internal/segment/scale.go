package segment

import (
	"math"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/stats"
)

// standardize returns one row per dataset row holding the z-scores of the
// given columns (population std). Zero-variance columns and missing cells map
// to 0, the column mean.
func standardize(cols []*dataset.Column, rows int) [][]float64 {
	X := make([][]float64, rows)
	for i := range X {
		X[i] = make([]float64, len(cols))
	}
	for j, c := range cols {
		mean, std := stats.PopMeanStd(c.Valid())
		for i := 0; i < rows; i++ {
			if c.Null[i] || std == 0 || math.IsNaN(std) {
				continue
			}
			X[i][j] = (c.Numbers[i] - mean) / std
		}
	}
	return X
}
