package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	apperrors "patentworld/internal/errors"
)

// Summary is the distribution digest published for pendency, team size and
// citation counts. Fields are NaN when N is zero.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
}

// Observation is one value tagged with its entity key and cohort label
type Observation struct {
	Key    string
	Cohort string
	Value  float64
}

// CohortScore is an Observation with its within-cohort z-score
type CohortScore struct {
	Observation
	Z          float64
	CohortN    int
	CohortMean float64
	CohortSD   float64
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// finite returns a copy of xs without NaN and Inf values
func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if isFinite(x) {
			out = append(out, x)
		}
	}
	return out
}

func sortedCopy(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	sort.Float64s(out)
	return out
}

// Mean returns the arithmetic mean of the finite values in xs
func Mean(xs []float64) (float64, error) {
	xs = finite(xs)
	if len(xs) == 0 {
		return 0, apperrors.ErrEmptyInput
	}
	return stat.Mean(xs, nil), nil
}

// StdDev returns the sample standard deviation (n-1 denominator) of the
// finite values in xs. A single observation has SD 0.
func StdDev(xs []float64) (float64, error) {
	xs = finite(xs)
	switch len(xs) {
	case 0:
		return 0, apperrors.ErrEmptyInput
	case 1:
		return 0, nil
	}
	return stat.StdDev(xs, nil), nil
}

// Median returns the 0.5 quantile
func Median(xs []float64) (float64, error) {
	return Quantile(xs, 0.5)
}

// Quantile returns the p-quantile with linear interpolation between order
// statistics (Hyndman-Fan type 7). p is clamped to [0, 1]. NaN and Inf
// values are dropped first.
func Quantile(xs []float64, p float64) (float64, error) {
	xs = finite(xs)
	if len(xs) == 0 {
		return 0, apperrors.ErrEmptyInput
	}
	return quantileSorted(sortedCopy(xs), p), nil
}

func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Summarize digests xs after dropping NaN and Inf values
func Summarize(xs []float64) Summary {
	values := finite(xs)
	if len(values) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, SD: nan, Min: nan, P25: nan, Median: nan, P75: nan, P90: nan, P99: nan, Max: nan}
	}

	sorted := sortedCopy(values)
	sd := 0.0
	if len(sorted) > 1 {
		sd = stat.StdDev(sorted, nil)
	}

	return Summary{
		N:      len(sorted),
		Mean:   stat.Mean(sorted, nil),
		SD:     sd,
		Min:    sorted[0],
		P25:    quantileSorted(sorted, 0.25),
		Median: quantileSorted(sorted, 0.5),
		P75:    quantileSorted(sorted, 0.75),
		P90:    quantileSorted(sorted, 0.90),
		P99:    quantileSorted(sorted, 0.99),
		Max:    sorted[len(sorted)-1],
	}
}

// ZScores standardizes xs with the mean and sample SD of its finite values.
// Non-finite inputs map to NaN; a zero SD or a single value gives z = 0.
func ZScores(xs []float64) []float64 {
	out := make([]float64, len(xs))
	values := finite(xs)

	mean, sd := 0.0, 0.0
	if len(values) > 0 {
		mean = stat.Mean(values, nil)
	}
	if len(values) > 1 {
		sd = stat.StdDev(values, nil)
	}

	for i, x := range xs {
		switch {
		case !isFinite(x):
			out[i] = math.NaN()
		case sd == 0:
			out[i] = 0
		default:
			out[i] = (x - mean) / sd
		}
	}
	return out
}

// CohortZScores standardizes each observation against the mean and sample SD
// of its own cohort. Output order follows the input. Cohorts of size 1 or with
// zero SD give z = 0; non-finite values get z = NaN and do not count toward
// their cohort.
func CohortZScores(obs []Observation) []CohortScore {
	type moments struct {
		values []float64
		mean   float64
		sd     float64
	}

	cohorts := make(map[string]*moments)
	for _, o := range obs {
		if !isFinite(o.Value) {
			continue
		}
		m, ok := cohorts[o.Cohort]
		if !ok {
			m = &moments{}
			cohorts[o.Cohort] = m
		}
		m.values = append(m.values, o.Value)
	}

	for _, m := range cohorts {
		m.mean = stat.Mean(m.values, nil)
		if len(m.values) > 1 {
			m.sd = stat.StdDev(m.values, nil)
		}
	}

	out := make([]CohortScore, len(obs))
	for i, o := range obs {
		score := CohortScore{Observation: o, Z: math.NaN()}
		if m, ok := cohorts[o.Cohort]; ok {
			score.CohortN = len(m.values)
			score.CohortMean = m.mean
			score.CohortSD = m.sd
			if isFinite(o.Value) {
				if m.sd == 0 {
					score.Z = 0
				} else {
					score.Z = (o.Value - m.mean) / m.sd
				}
			}
		}
		out[i] = score
	}
	return out
}

// Pearson returns the correlation of x and y
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, apperrors.ErrLengthMismatch
	}
	if len(x) < 2 {
		return 0, apperrors.ErrEmptyInput
	}
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return 0, apperrors.ErrInvalidInput
		}
	}
	return stat.Correlation(x, y, nil), nil
}
