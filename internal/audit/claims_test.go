package audit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentworld/internal/audit"
	apperrors "patentworld/internal/errors"
)

const validClaims = `
claims:
  - id: total
    description: Total utility patents
    output: overview.json
    pointer: /data/total_patents
    expected: 6
  - id: self-2001
    description: Self-citation rate in 2001
    output: self_citation.json
    pointer: /data/years/2001/rate
    tolerance: 0.01
    recompute:
      metric: self_citation_rate
      params:
        year: 2001
`

func TestParseClaims(t *testing.T) {
	claims, err := audit.ParseClaims([]byte(validClaims))
	require.NoError(t, err)
	require.Len(t, claims, 2)

	assert.Equal(t, "total", claims[0].ID)
	require.NotNil(t, claims[0].Expected)
	assert.Equal(t, 6.0, *claims[0].Expected)
	assert.Nil(t, claims[0].Recompute)

	c := claims[1]
	assert.Nil(t, c.Expected)
	require.NotNil(t, c.Tolerance)
	assert.Equal(t, 0.01, *c.Tolerance)
	require.NotNil(t, c.Recompute)
	assert.Equal(t, "self_citation_rate", c.Recompute.Metric)
	assert.Equal(t, "2001", c.Recompute.Params["year"])
}

func TestParseClaims_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errType apperrors.ErrorType
		contain string
	}{
		{
			name:    "malformed",
			yaml:    "claims: [",
			errType: apperrors.ErrTypeParsing,
		},
		{
			name: "unknown field",
			yaml: `
claims:
  - id: a
    description: d
    output: overview.json
    pointer: /data/total_patents
    expected: 1
    expectd: 2
`,
			errType: apperrors.ErrTypeParsing,
		},
		{
			name:    "no claims",
			yaml:    "claims: []",
			errType: apperrors.ErrTypeValidation,
			contain: "Claims",
		},
		{
			name: "neither expected nor recompute",
			yaml: `
claims:
  - id: a
    description: d
    output: overview.json
    pointer: /data/total_patents
`,
			errType: apperrors.ErrTypeValidation,
			contain: "required_without",
		},
		{
			name: "duplicate id",
			yaml: `
claims:
  - {id: a, description: d, output: overview.json, pointer: /data/x, expected: 1}
  - {id: a, description: d, output: overview.json, pointer: /data/y, expected: 1}
`,
			errType: apperrors.ErrTypeValidation,
			contain: "unique",
		},
		{
			name: "output not json",
			yaml: `
claims:
  - {id: a, description: d, output: overview.csv, pointer: /data/x, expected: 1}
`,
			errType: apperrors.ErrTypeValidation,
			contain: "endswith",
		},
		{
			name: "relative pointer",
			yaml: `
claims:
  - {id: a, description: d, output: overview.json, pointer: data/x, expected: 1}
`,
			errType: apperrors.ErrTypeValidation,
			contain: "startswith",
		},
		{
			name: "unknown metric",
			yaml: `
claims:
  - id: a
    description: d
    output: overview.json
    pointer: /data/x
    recompute: {metric: moon_phase}
`,
			errType: apperrors.ErrTypeValidation,
			contain: "moon_phase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := audit.ParseClaims([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType), "got %v", err)
			if tt.contain != "" {
				assert.Contains(t, err.Error(), tt.contain)
			}
		})
	}
}

func TestLoadClaims(t *testing.T) {
	dir := t.TempDir()

	_, err := audit.LoadClaims(filepath.Join(dir, "missing.yaml"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	path := filepath.Join(dir, "claims.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validClaims), 0644))
	claims, err := audit.LoadClaims(path)
	require.NoError(t, err)
	assert.Len(t, claims, 2)
}

func TestParams(t *testing.T) {
	p := audit.Params{"year": "2001", "section": "H", "bad": "x"}

	year, err := p.Int("year")
	require.NoError(t, err)
	assert.Equal(t, 2001, year)

	_, err = p.Int("bad")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	_, err = p.Int("missing")
	assert.Error(t, err)

	s, err := p.String("section")
	require.NoError(t, err)
	assert.Equal(t, "H", s)

	assert.True(t, p.Has("year"))
	assert.False(t, p.Has("missing"))
}

func TestMetrics(t *testing.T) {
	metrics := audit.Metrics()
	assert.Len(t, metrics, 10)
	assert.IsIncreasing(t, metrics)
	for _, m := range metrics {
		_, ok := audit.LookupRecomputer(m)
		assert.True(t, ok, m)
	}
}
