package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "patentworld/internal/errors"
)

func TestMeanStdDev(t *testing.T) {
	xs := []float64{1, 2, 3, 4}

	mean, err := Mean(xs)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mean, 1e-12)

	sd, err := StdDev(xs)
	require.NoError(t, err)
	assert.InDelta(t, 1.2909944487358056, sd, 1e-12)

	sd, err = StdDev([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sd)

	_, err = Mean(nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
	_, err = StdDev(nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
}

func TestQuantile(t *testing.T) {
	xs := []float64{4, 1, 3, 2}

	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{"minimum", 0, 1},
		{"p25", 0.25, 1.75},
		{"median", 0.5, 2.5},
		{"p90", 0.9, 3.7},
		{"maximum", 1, 4},
		{"clamped below", -0.5, 1},
		{"clamped above", 1.5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Quantile(xs, tt.p)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	assert.Equal(t, []float64{4, 1, 3, 2}, xs, "input must not be reordered")

	_, err := Median(nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
}

func TestNonFiniteValuesDropped(t *testing.T) {
	xs := []float64{math.NaN(), 4, 1, math.Inf(1), 3, 2, math.Inf(-1)}

	mean, err := Mean(xs)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mean, 1e-12)

	sd, err := StdDev(xs)
	require.NoError(t, err)
	assert.InDelta(t, 1.2909944487358056, sd, 1e-12)

	median, err := Median(xs)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, median, 1e-12)

	p25, err := Quantile(xs, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, p25, 1e-12)

	onlyNaN := []float64{math.NaN(), math.NaN()}
	_, err = Mean(onlyNaN)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
	_, err = StdDev(onlyNaN)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
	_, err = Quantile(onlyNaN, 0.5)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, math.NaN(), 1, 3, math.Inf(1), 2})

	assert.Equal(t, 4, s.N)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.2909944487358056, s.SD, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.InDelta(t, 1.75, s.P25, 1e-12)
	assert.InDelta(t, 2.5, s.Median, 1e-12)
	assert.InDelta(t, 3.25, s.P75, 1e-12)
	assert.InDelta(t, 3.7, s.P90, 1e-12)
	assert.InDelta(t, 3.97, s.P99, 1e-12)
	assert.Equal(t, 4.0, s.Max)

	empty := Summarize([]float64{math.NaN()})
	assert.Equal(t, 0, empty.N)
	assert.True(t, math.IsNaN(empty.Mean))
	assert.True(t, math.IsNaN(empty.Median))
}

func TestZScores(t *testing.T) {
	z := ZScores([]float64{1, 2, 3, math.NaN()})
	require.Len(t, z, 4)
	assert.InDelta(t, -1, z[0], 1e-12)
	assert.InDelta(t, 0, z[1], 1e-12)
	assert.InDelta(t, 1, z[2], 1e-12)
	assert.True(t, math.IsNaN(z[3]))

	assert.Equal(t, []float64{0, 0}, ZScores([]float64{5, 5}))
	assert.Equal(t, []float64{0}, ZScores([]float64{5}))
}

func TestCohortZScores(t *testing.T) {
	obs := []Observation{
		{Key: "p1", Cohort: "A|2000", Value: 1},
		{Key: "p2", Cohort: "B|2000", Value: 10},
		{Key: "p3", Cohort: "A|2000", Value: 3},
		{Key: "p4", Cohort: "C|2000", Value: math.NaN()},
	}

	scores := CohortZScores(obs)
	require.Len(t, scores, 4)

	assert.Equal(t, "p1", scores[0].Key)
	assert.InDelta(t, -0.7071067811865475, scores[0].Z, 1e-12)
	assert.InDelta(t, 0.7071067811865475, scores[2].Z, 1e-12)
	assert.Equal(t, 2, scores[0].CohortN)
	assert.InDelta(t, 2, scores[0].CohortMean, 1e-12)

	assert.Equal(t, 0.0, scores[1].Z, "singleton cohort")
	assert.Equal(t, 1, scores[1].CohortN)

	assert.True(t, math.IsNaN(scores[3].Z))
	assert.Equal(t, 0, scores[3].CohortN)

	assert.Equal(t, 1.0, obs[0].Value, "input must not be mutated")
}

func TestPearson(t *testing.T) {
	r, err := Pearson([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.NoError(t, err)
	assert.InDelta(t, 1, r, 1e-12)

	r, err = Pearson([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.NoError(t, err)
	assert.InDelta(t, -1, r, 1e-12)

	_, err = Pearson([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, apperrors.ErrLengthMismatch)

	_, err = Pearson([]float64{1}, []float64{1})
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)

	_, err = Pearson([]float64{1, math.NaN()}, []float64{1, 2})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
