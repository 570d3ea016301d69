package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	apperrors "patentworld/internal/errors"
)

// SparseVector maps a category (e.g. a CPC subclass) to its weight
type SparseVector map[string]float64

// ExplorationPoint is the cosine distance between two successive years of a
// portfolio
type ExplorationPoint struct {
	FromYear int     `json:"from_year"`
	Year     int     `json:"year"`
	Distance float64 `json:"distance"`
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from a
// nonzero vector and 0 from another zero vector.
func CosineDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, apperrors.ErrLengthMismatch
	}
	for i := range a {
		if !isFinite(a[i]) || !isFinite(b[i]) {
			return 0, apperrors.ErrInvalidInput
		}
	}

	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	switch {
	case na == 0 && nb == 0:
		return 0, nil
	case na == 0 || nb == 0:
		return 1, nil
	}

	cos := floats.Dot(a, b) / (na * nb)
	// rounding can push |cos| past 1
	cos = math.Max(-1, math.Min(1, cos))
	return 1 - cos, nil
}

// Dense aligns sparse vectors on the sorted union of their keys
func Dense(vectors ...SparseVector) [][]float64 {
	keySet := make(map[string]struct{})
	for _, v := range vectors {
		for k := range v {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := make([]float64, len(keys))
		for j, k := range keys {
			row[j] = v[k]
		}
		out[i] = row
	}
	return out
}

// ExplorationIndex returns the cosine distance between each year's portfolio
// and the previous available year's, in year order. Fewer than two years give
// an empty result.
func ExplorationIndex(series map[int]SparseVector) ([]ExplorationPoint, error) {
	years := make([]int, 0, len(series))
	for y := range series {
		years = append(years, y)
	}
	sort.Ints(years)

	points := make([]ExplorationPoint, 0, len(years))
	for i := 1; i < len(years); i++ {
		dense := Dense(series[years[i-1]], series[years[i]])
		d, err := CosineDistance(dense[0], dense[1])
		if err != nil {
			return nil, err
		}
		points = append(points, ExplorationPoint{FromYear: years[i-1], Year: years[i], Distance: d})
	}
	return points, nil
}
