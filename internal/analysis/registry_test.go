package analysis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentworld/internal/analysis"
	apperrors "patentworld/internal/errors"
)

// stubAnalysis returns a fixed value or error
type stubAnalysis struct {
	analysis.BaseAnalysis
	value interface{}
	err   error
	calls int
}

func newStub(id string, deps ...string) *stubAnalysis {
	return &stubAnalysis{
		BaseAnalysis: analysis.NewBaseAnalysis(id, "Stub "+id, deps...),
		value:        map[string]string{"id": id},
	}
}

func (s *stubAnalysis) Run(ctx context.Context, env *analysis.Env) (interface{}, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.value, nil
}

func ids(as []analysis.Analysis) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.ID()
	}
	return out
}

func TestRegistry(t *testing.T) {
	registry := analysis.NewRegistry()

	assert.Equal(t, 0, registry.Count())
	assert.NotNil(t, registry.List())
	assert.Empty(t, registry.List())
}

func TestRegistryRegister(t *testing.T) {
	registry := analysis.NewRegistry()
	a, b, c := newStub("a"), newStub("b"), newStub("c")

	require.NoError(t, registry.Register(a))
	require.NoError(t, registry.Register(b))
	require.NoError(t, registry.Register(c))

	assert.Equal(t, 3, registry.Count())
	assert.True(t, registry.Has("b"))
	assert.False(t, registry.Has("z"))
	assert.Equal(t, []string{"a", "b", "c"}, registry.ListIDs())

	got, err := registry.Get("a")
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, "a.json", got.Output())
}

func TestRegistryRegisterErrors(t *testing.T) {
	registry := analysis.NewRegistry()
	require.NoError(t, registry.Register(newStub("a")))

	tests := []struct {
		name     string
		analysis analysis.Analysis
	}{
		{"nil analysis", nil},
		{"empty ID", newStub("")},
		{"duplicate", newStub("a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.analysis)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		})
	}

	_, err := registry.Get("missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestRegistryMustRegisterPanics(t *testing.T) {
	assert.Panics(t, func() {
		analysis.NewRegistry().MustRegister(newStub("a"), newStub("a"))
	})
}

func TestRegistryDependencyOrder(t *testing.T) {
	// d depends on b and c, b depends on c; registration order breaks ties
	registry := analysis.NewRegistry().MustRegister(
		newStub("d", "b", "c"),
		newStub("a"),
		newStub("b", "c"),
		newStub("c"),
	)

	ordered, err := registry.DependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(ordered))
	require.NoError(t, registry.ValidateDependencies())

	assert.Equal(t, []string{"d", "b"}, ids(registry.Dependents("c")))
}

func TestRegistryPlan(t *testing.T) {
	registry := analysis.NewRegistry().MustRegister(
		newStub("a"),
		newStub("b", "a"),
		newStub("c"),
		newStub("d", "b"),
	)

	plan, err := registry.Plan([]string{"d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, ids(plan))

	plan, err = registry.Plan([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(plan))

	_, err = registry.Plan([]string{"nope"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestRegistryPlanErrors(t *testing.T) {
	t.Run("unknown dependency", func(t *testing.T) {
		registry := analysis.NewRegistry().MustRegister(newStub("a", "ghost"))
		_, err := registry.Plan(nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.Contains(t, err.Error(), "ghost")
	})

	t.Run("cycle", func(t *testing.T) {
		registry := analysis.NewRegistry().MustRegister(
			newStub("a", "c"),
			newStub("b", "a"),
			newStub("c", "b"),
			newStub("free"),
		)
		_, err := registry.Plan(nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.Contains(t, err.Error(), "cycle")
		assert.Error(t, registry.ValidateDependencies())
	})
}

func TestDefaultRegistry(t *testing.T) {
	registry := analysis.DefaultRegistry()
	assert.Equal(t, 21, registry.Count())

	ordered, err := registry.DependencyOrder()
	require.NoError(t, err)
	require.Len(t, ordered, 21)

	position := make(map[string]int, len(ordered))
	for i, a := range ordered {
		position[a.ID()] = i
	}
	for _, a := range ordered {
		for _, dep := range a.Dependencies() {
			assert.Less(t, position[dep], position[a.ID()], "%s before %s", dep, a.ID())
		}
	}
	assert.Equal(t, "overview", ordered[0].ID())

	for _, a := range ordered {
		assert.Equal(t, a.ID()+".json", a.Output())
		assert.NotEmpty(t, a.Name())
	}
}

func TestResultAs(t *testing.T) {
	results := analysis.NewResults()
	results.Set("n", 42)

	n, ok := analysis.ResultAs[int](results, "n")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = analysis.ResultAs[string](results, "n")
	assert.False(t, ok)
	_, ok = analysis.ResultAs[int](results, "missing")
	assert.False(t, ok)
}
