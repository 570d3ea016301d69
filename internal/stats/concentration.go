package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"

	apperrors "patentworld/internal/errors"
)

// LorenzPoint is one vertex of a Lorenz curve
type LorenzPoint struct {
	Population float64 `json:"population"`
	Share      float64 `json:"share"`
}

// positiveTotal returns the sum and number of strictly positive finite counts
func positiveTotal(counts []float64) (float64, int) {
	total, k := 0.0, 0
	for _, c := range counts {
		if c > 0 && isFinite(c) {
			total += c
			k++
		}
	}
	return total, k
}

// HHI returns the Herfindahl-Hirschman index of counts on the 0..10000 scale
// (sum of squared percentage shares). Empty input or a zero total gives 0.
// Non-positive counts are ignored.
func HHI(counts []float64) float64 {
	total, _ := positiveTotal(counts)
	if total == 0 {
		return 0
	}

	h := 0.0
	for _, c := range counts {
		if c > 0 && isFinite(c) {
			share := 100 * c / total
			h += share * share
		}
	}
	return h
}

// NormalizedHHI rescales HHI on the share scale to [0, 1] given the number of
// positive categories n: (H - 1/n) / (1 - 1/n). A single category is fully
// concentrated (1); no categories gives 0.
func NormalizedHHI(counts []float64) float64 {
	_, n := positiveTotal(counts)
	switch n {
	case 0:
		return 0
	case 1:
		return 1
	}

	h := HHI(counts) / 10000
	inv := 1 / float64(n)
	return (h - inv) / (1 - inv)
}

// ShannonEntropy returns -sum p ln p over positive counts
func ShannonEntropy(counts []float64) float64 {
	total, _ := positiveTotal(counts)
	if total == 0 {
		return 0
	}

	h := 0.0
	for _, c := range counts {
		if c > 0 && isFinite(c) {
			p := c / total
			h -= p * math.Log(p)
		}
	}
	return h
}

// NormalizedEntropy divides ShannonEntropy by ln k, k being the number of
// positive categories. k <= 1 gives 0.
func NormalizedEntropy(counts []float64) float64 {
	_, k := positiveTotal(counts)
	if k <= 1 {
		return 0
	}
	return ShannonEntropy(counts) / math.Log(float64(k))
}

func validateNonNegative(values []float64) error {
	if len(values) == 0 {
		return apperrors.ErrEmptyInput
	}
	for _, v := range values {
		if v < 0 || !isFinite(v) {
			return apperrors.ErrInvalidInput
		}
	}
	return nil
}

// Gini returns the Gini coefficient of non-negative values using the sorted
// formula G = 2*sum(i*x_(i)) / (n*sum(x)) - (n+1)/n with 1-based ranks.
// All-zero input gives 0.
func Gini(values []float64) (float64, error) {
	if err := validateNonNegative(values); err != nil {
		return 0, err
	}

	sorted := sortedCopy(values)
	total := floats.Sum(sorted)
	if total == 0 {
		return 0, nil
	}

	n := float64(len(sorted))
	weighted := 0.0
	for i, x := range sorted {
		weighted += float64(i+1) * x
	}
	return 2*weighted/(n*total) - (n+1)/n, nil
}

// Lorenz returns `points` evenly spaced vertices of the Lorenz curve, from
// (0,0) to (1,1). Between order statistics the cumulative share is linearly
// interpolated. An all-zero input returns the line of equality.
func Lorenz(values []float64, points int) ([]LorenzPoint, error) {
	if points < 2 {
		return nil, apperrors.ErrInvalidInput
	}
	if err := validateNonNegative(values); err != nil {
		return nil, err
	}

	sorted := sortedCopy(values)
	n := len(sorted)
	total := floats.Sum(sorted)

	cum := make([]float64, n+1)
	for i, x := range sorted {
		cum[i+1] = cum[i] + x
	}

	curve := make([]LorenzPoint, points)
	for i := 0; i < points; i++ {
		p := float64(i) / float64(points-1)
		if total == 0 {
			curve[i] = LorenzPoint{Population: p, Share: p}
			continue
		}

		pos := p * float64(n)
		whole := int(math.Floor(pos))
		share := cum[whole]
		if whole < n {
			share += (pos - float64(whole)) * sorted[whole]
		}
		curve[i] = LorenzPoint{Population: p, Share: share / total}
	}

	curve[0] = LorenzPoint{Population: 0, Share: 0}
	curve[points-1] = LorenzPoint{Population: 1, Share: 1}
	return curve, nil
}

// TopShare returns the share of the total held by the k largest values
func TopShare(values []float64, k int) float64 {
	total, _ := positiveTotal(values)
	if total == 0 || k <= 0 {
		return 0
	}

	sorted := sortedCopy(finite(values))
	top := 0.0
	for i := len(sorted) - 1; i >= 0 && len(sorted)-i <= k; i-- {
		if sorted[i] > 0 {
			top += sorted[i]
		}
	}
	return top / total
}
