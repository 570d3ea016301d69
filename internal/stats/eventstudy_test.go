package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "patentworld/internal/errors"
)

func TestEventStudy(t *testing.T) {
	events := map[string]int{"a": 2000, "b": 2002}
	outcomes := []PanelObservation{
		{Entity: "a", Year: 1999, Value: 2},
		{Entity: "a", Year: 2000, Value: 4},
		{Entity: "a", Year: 2001, Value: 6},
		{Entity: "a", Year: 2005, Value: 1}, // outside the window
		{Entity: "b", Year: 2001, Value: 4},
		{Entity: "b", Year: 2002, Value: 8},
		{Entity: "b", Year: 2003, Value: math.NaN()},
		{Entity: "c", Year: 2000, Value: 100}, // no event
	}

	res, err := EventStudy(events, outcomes, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Window)
	assert.Equal(t, 2, res.Entities)
	assert.InDelta(t, 3, res.Baseline, 1e-12)
	require.Len(t, res.Periods, 5)

	byRel := make(map[int]EventPeriod)
	for _, p := range res.Periods {
		byRel[p.RelTime] = p
	}
	assert.Equal(t, -2, res.Periods[0].RelTime)
	assert.Equal(t, 2, res.Periods[4].RelTime)

	zero := byRel[0]
	assert.Equal(t, 2, zero.Count)
	assert.Equal(t, 2, zero.Entities)
	assert.InDelta(t, 6, zero.Mean, 1e-12)
	assert.InDelta(t, 3, zero.Delta, 1e-12)
	assert.InDelta(t, 2, zero.Relative, 1e-12)

	one := byRel[1]
	assert.Equal(t, 1, one.Count)
	assert.InDelta(t, 6, one.Mean, 1e-12)

	empty := byRel[-2]
	assert.Equal(t, 0, empty.Count)
	assert.True(t, math.IsNaN(empty.Mean))
	assert.True(t, math.IsNaN(empty.Delta))
}

func TestEventStudy_NoBaseline(t *testing.T) {
	res, err := EventStudy(map[string]int{"a": 2000}, []PanelObservation{
		{Entity: "a", Year: 2000, Value: 5},
		{Entity: "a", Year: 2001, Value: 7},
	}, 1)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(res.Baseline))
	for _, p := range res.Periods {
		assert.True(t, math.IsNaN(p.Relative), "t=%d", p.RelTime)
		assert.True(t, math.IsNaN(p.Delta), "t=%d", p.RelTime)
	}
}

func TestEventStudy_ZeroBaseline(t *testing.T) {
	res, err := EventStudy(map[string]int{"a": 2000}, []PanelObservation{
		{Entity: "a", Year: 1999, Value: 0},
		{Entity: "a", Year: 2000, Value: 3},
	}, 1)
	require.NoError(t, err)

	p := res.Periods[1]
	assert.Equal(t, 0, p.RelTime)
	assert.InDelta(t, 3, p.Delta, 1e-12)
	assert.True(t, math.IsNaN(p.Relative))
}

func TestEventStudy_Errors(t *testing.T) {
	obs := []PanelObservation{{Entity: "a", Year: 2000, Value: 1}}

	_, err := EventStudy(map[string]int{"a": 2000}, obs, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = EventStudy(nil, obs, 2)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)

	// outcomes exist but none belongs to an entity with an event
	_, err = EventStudy(map[string]int{"b": 2000}, obs, 2)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
}
