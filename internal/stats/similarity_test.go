package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "patentworld/internal/errors"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 1},
		{"parallel", []float64{1, 1}, []float64{2, 2}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, 2},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 0},
		{"one zero", []float64{0, 0}, []float64{3, 4}, 1},
		{"45 degrees", []float64{1, 0}, []float64{1, 1}, 1 - 1/math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineDistance(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	_, err := CosineDistance([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, apperrors.ErrLengthMismatch)
}

func TestDense(t *testing.T) {
	rows := Dense(SparseVector{"H01L": 2}, SparseVector{"G06F": 1, "H01L": 3})
	assert.Equal(t, [][]float64{{0, 2}, {1, 3}}, rows)
}

func TestExplorationIndex(t *testing.T) {
	series := map[int]SparseVector{
		2003: {"B": 1},
		2000: {"A": 2},
		2001: {"A": 5},
	}

	points, err := ExplorationIndex(series)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, ExplorationPoint{FromYear: 2000, Year: 2001, Distance: 0}, points[0])
	assert.Equal(t, 2001, points[1].FromYear)
	assert.Equal(t, 2003, points[1].Year)
	assert.InDelta(t, 1, points[1].Distance, 1e-12)

	single, err := ExplorationIndex(map[int]SparseVector{2000: {"A": 1}})
	require.NoError(t, err)
	assert.Empty(t, single)
}
