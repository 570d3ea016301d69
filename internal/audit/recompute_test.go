package audit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentworld/internal/audit"
	"patentworld/internal/config"
	apperrors "patentworld/internal/errors"
	"patentworld/internal/testutil"
)

func scope() audit.Scope {
	cfg := config.Default().Analysis
	return audit.Scope{MinYear: cfg.MinYear, MaxYear: cfg.MaxYear, WindowYears: cfg.CitationWindowYears}
}

func TestRecomputers(t *testing.T) {
	db := testutil.NewDB(t, testutil.Standard())

	tests := []struct {
		metric string
		params audit.Params
		want   float64
	}{
		{"total_patents", nil, 6},
		{"patents_in_year", audit.Params{"year": "2001"}, 2},
		{"median_grant_lag_days", nil, 548.5},
		{"median_grant_lag_days", audit.Params{"year": "2000"}, 548.5},
		{"section_share", audit.Params{"year": "2000", "section": "H"}, 0.5},
		{"section_share", audit.Params{"year": "2002", "section": "H"}, 0},
		{"female_inventor_share", audit.Params{"year": "2000"}, 1.0 / 3},
		{"gov_interest_share", audit.Params{"year": "2000"}, 0.5},
		{"gov_interest_share", audit.Params{"year": "2001"}, 0},
		{"self_citation_rate", audit.Params{"year": "2001"}, 0.5},
		{"mean_team_size", nil, 1.5},
		{"mean_team_size", audit.Params{"year": "2001"}, 2},
		{"assignee_hhi", audit.Params{"year": "2001"}, 5000},
		{"citation_gini", audit.Params{"year": "2000"}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			recompute, ok := audit.LookupRecomputer(tt.metric)
			require.True(t, ok)
			got, err := recompute(context.Background(), db, scope(), tt.params)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRecomputers_Errors(t *testing.T) {
	db := testutil.NewDB(t, testutil.Standard())
	ctx := context.Background()

	recompute, _ := audit.LookupRecomputer("patents_in_year")
	_, err := recompute(ctx, db, scope(), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	// no citations between assigned patents in 1990
	recompute, _ = audit.LookupRecomputer("self_citation_rate")
	_, err = recompute(ctx, db, scope(), audit.Params{"year": "1990"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAudit))

	recompute, _ = audit.LookupRecomputer("citation_gini")
	_, err = recompute(ctx, db, scope(), audit.Params{"year": "1990"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAudit))
}
