package engine_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentworld/internal/config"
	"patentworld/internal/engine"
	apperrors "patentworld/internal/errors"
	"patentworld/internal/testutil"
)

func TestTableSQL(t *testing.T) {
	table, ok := engine.LookupTable(engine.TableApplication)
	require.True(t, ok)

	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS application (application_id TEXT, patent_id TEXT, filing_date TEXT)",
		table.CreateSQL())
	assert.Equal(t,
		"INSERT INTO application (application_id, patent_id, filing_date) VALUES (?, ?, ?)",
		table.InsertSQL())
	assert.Equal(t,
		[]string{"CREATE INDEX IF NOT EXISTS idx_application_patent_id ON application (patent_id)"},
		table.IndexSQL())

	_, ok = engine.LookupTable("nope")
	assert.False(t, ok)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Engine
	opts := engine.OptionsFromConfig(cfg, engine.ModeRead)
	assert.Equal(t, cfg.Threads, opts.Threads)
	assert.Equal(t, cfg.CacheSizeMB, opts.CacheSizeMB)
	assert.Equal(t, engine.ModeRead, opts.Mode)
}

func TestOpen_ReadModeRequiresFile(t *testing.T) {
	_, err := engine.Open(context.Background(), filepath.Join(t.TempDir(), "absent.db"),
		engine.Options{Mode: engine.ModeRead})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestCreateSchema(t *testing.T) {
	ctx := context.Background()
	db, err := engine.Open(ctx, filepath.Join(t.TempDir(), "nested", "x.db"),
		engine.Options{Threads: 1, Mode: engine.ModeLoad})
	require.NoError(t, err)
	defer db.Close()

	assert.False(t, db.ReadOnly())
	require.NoError(t, db.CreateSchema(ctx))
	require.NoError(t, db.CreateSchema(ctx))

	for _, table := range engine.Schema {
		ok, err := db.HasTable(ctx, table.Name)
		require.NoError(t, err)
		assert.True(t, ok, table.Name)
	}
}

func TestBuildDerived(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t, testutil.Standard())
	assert.True(t, db.ReadOnly())

	counts, err := db.TableCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), counts[engine.TablePatent])
	assert.Equal(t, int64(6), counts[engine.DerivedUtilityPatent])
	assert.Equal(t, int64(6), counts[engine.DerivedPrimaryCPC])
	assert.Equal(t, int64(5), counts[engine.DerivedFirstAssignee])
	assert.Equal(t, int64(6), counts[engine.DerivedTeam])
	assert.Equal(t, int64(6), counts[engine.DerivedFirstInventor])

	var lag float64
	require.NoError(t, db.Get(ctx, "lag", &lag,
		`SELECT lag_days FROM utility_patent WHERE patent_id = 'P1'`))
	assert.InDelta(t, 731, lag, 1e-9)

	var fwd []struct {
		ID  string `db:"patent_id"`
		Fwd int    `db:"fwd"`
	}
	require.NoError(t, db.Select(ctx, "fwd", &fwd,
		`SELECT patent_id, fwd FROM forward_citation_count ORDER BY patent_id`))
	got := map[string]int{}
	for _, r := range fwd {
		got[r.ID] = r.Fwd
	}
	assert.Equal(t, map[string]int{"P1": 3, "P2": 1, "P3": 2, "P4": 1, "P5": 0, "P6": 0}, got)

	var section string
	require.NoError(t, db.Get(ctx, "section", &section,
		`SELECT section FROM primary_cpc WHERE patent_id = 'P1'`))
	assert.Equal(t, "H", section)

	var team int
	require.NoError(t, db.Get(ctx, "team", &team, `SELECT team_size FROM team WHERE patent_id = 'P4'`))
	assert.Equal(t, 3, team)
}

func TestBuildDerived_CitationWindow(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "w.db")
	db, err := engine.Open(ctx, path, engine.Options{Threads: 1, Mode: engine.ModeLoad})
	require.NoError(t, err)
	defer db.Close()

	f := testutil.Fixture{}
	f.Patent("A", "utility", "2000-01-01", 1, false).
		Patent("B", "utility", "2000-12-31", 1, false).
		Patent("C", "utility", "2001-01-02", 1, false).
		Citation("B", 0, "A").
		Citation("C", 0, "A")
	require.NoError(t, f.Load(ctx, db))
	require.NoError(t, db.BuildDerived(ctx, 1))

	var n int
	require.NoError(t, db.Get(ctx, "fwd", &n, `SELECT fwd FROM forward_citation_count WHERE patent_id = 'A'`))
	assert.Equal(t, 1, n)
}

func TestQueryErrors(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t, testutil.Standard())

	var n int
	err := db.Get(ctx, "bad", &n, `SELECT nope FROM nowhere`)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeQuery))
	assert.True(t, strings.Contains(err.Error(), "bad"))

	err = db.Get(ctx, "empty", &n, `SELECT 1 FROM patent WHERE patent_id = 'none'`)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	var rows []int
	err = db.Select(ctx, "bad_select", &rows, `SELECT x FROM y`)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeQuery))

	// read mode refuses writes
	_, err = db.ExecContext(ctx, `DELETE FROM patent`)
	assert.Error(t, err)
}
