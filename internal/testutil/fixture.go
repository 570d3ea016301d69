// Package testutil builds small PatentsView databases for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"patentworld/internal/engine"
)

// Fixture holds raw rows per table, in engine.Schema column order
type Fixture map[string][][]interface{}

// Add appends one row to table
func (f Fixture) Add(table string, row ...interface{}) Fixture {
	f[table] = append(f[table], row)
	return f
}

// Patent adds a patent row
func (f Fixture) Patent(id, kind, date string, claims int, withdrawn bool) Fixture {
	w := 0
	if withdrawn {
		w = 1
	}
	return f.Add(engine.TablePatent, id, kind, date, "Title "+id, claims, w)
}

// Application adds a filing date for a patent
func (f Fixture) Application(patentID, filingDate string) Fixture {
	return f.Add(engine.TableApplication, "app-"+patentID, patentID, filingDate)
}

// CPC adds a classification row; the subclass is split into section and class
func (f Fixture) CPC(patentID string, seq int, subclass string) Fixture {
	return f.Add(engine.TableCPC, patentID, seq, subclass[:1], subclass[:3], subclass, subclass+"1/00", "inventional")
}

// Assignee adds an assignee row. An empty org is an individual assignee.
func (f Fixture) Assignee(patentID string, seq int, id, org string, kind int) Fixture {
	var o interface{}
	if org != "" {
		o = org
	}
	return f.Add(engine.TableAssignee, patentID, seq, id, o, kind, nil)
}

// Inventor adds an inventor row
func (f Fixture) Inventor(patentID string, seq int, id, gender, locationID string) Fixture {
	var g, loc interface{}
	if gender != "" {
		g = gender
	}
	if locationID != "" {
		loc = locationID
	}
	return f.Add(engine.TableInventor, patentID, seq, id, g, loc)
}

// Citation adds a backward citation from citing to cited
func (f Fixture) Citation(citing string, seq int, cited string) Fixture {
	return f.Add(engine.TableCitation, citing, seq, cited, nil, "cited by examiner")
}

// Location adds a location row
func (f Fixture) Location(id, country string) Fixture {
	return f.Add(engine.TableLocation, id, "City "+id, nil, country, 0.0, 0.0)
}

// GovInterest adds a government-interest statement
func (f Fixture) GovInterest(patentID string) Fixture {
	return f.Add(engine.TableGovInterest, patentID, "This invention was made with government support.")
}

// WIPO adds a WIPO technology field row
func (f Fixture) WIPO(patentID string, seq int, sector, field string) Fixture {
	return f.Add(engine.TableWIPO, patentID, seq, sector, field)
}

// Standard returns the shared fixture used across package tests.
//
// Utility patents P1..P6 granted 2000-2002; D1 is a design patent and W1 is
// withdrawn, both of which every analysis ignores. Forward citations within
// five years: P1=3, P2=1, P3=2, P4=1, P5=0, P6=0. P4 (Acme) cites P1 and P2
// (both Acme), which are the only self-citations.
func Standard() Fixture {
	f := Fixture{}

	f.Patent("P1", "utility", "2000-03-01", 10, false).
		Patent("P2", "utility", "2000-06-01", 20, false).
		Patent("P3", "utility", "2001-02-01", 5, false).
		Patent("P4", "utility", "2001-08-01", 15, false).
		Patent("P5", "utility", "2002-01-15", 8, false).
		Patent("P6", "utility", "2002-07-01", 12, false).
		Patent("D1", "design", "2001-05-05", 1, false).
		Patent("W1", "utility", "2001-05-05", 3, true)

	f.Application("P1", "1998-03-01").
		Application("P2", "1999-06-01").
		Application("P3", "1999-02-01").
		Application("P4", "2000-08-01").
		Application("P5", "2000-01-15").
		Application("P6", "2001-07-01")

	f.CPC("P1", 0, "H01L").
		CPC("P1", 1, "G06F").
		CPC("P2", 0, "G06F").
		CPC("P3", 0, "H01L").
		CPC("P4", 0, "H04L").
		CPC("P5", 0, "G06F").
		CPC("P6", 0, "A61K").
		CPC("D1", 0, "B65D")

	f.Assignee("P1", 0, "a1", "Acme Corp", 2).
		Assignee("P2", 0, "a1", "Acme Corp", 2).
		Assignee("P3", 0, "a2", "Beta GmbH", 3).
		Assignee("P4", 0, "a1", "Acme Corp", 2).
		Assignee("P4", 1, "a2", "Beta GmbH", 3).
		Assignee("P5", 0, "a3", "Gamma University", 2)

	f.Inventor("P1", 0, "i1", "F", "l1").
		Inventor("P1", 1, "i2", "M", "l1").
		Inventor("P2", 0, "i3", "M", "l2").
		Inventor("P3", 0, "i1", "F", "l1").
		Inventor("P4", 0, "i4", "M", "l2").
		Inventor("P4", 1, "i5", "M", "l1").
		Inventor("P4", 2, "i6", "", "l1").
		Inventor("P5", 0, "i7", "F", "l2").
		Inventor("P6", 0, "i8", "M", "l1")

	f.Location("l1", "US").
		Location("l2", "JP")

	f.Citation("P3", 0, "P1").
		Citation("P4", 0, "P1").
		Citation("P4", 1, "P2").
		Citation("P4", 2, "P3").
		Citation("P5", 0, "P1").
		Citation("P5", 1, "P4").
		Citation("P6", 0, "P3").
		Citation("P6", 1, "X9")

	f.GovInterest("P2").
		GovInterest("P5")

	f.WIPO("P1", 0, "Electrical engineering", "Semiconductors").
		WIPO("P2", 0, "Electrical engineering", "Computer technology").
		WIPO("P3", 0, "Electrical engineering", "Semiconductors").
		WIPO("P4", 0, "Electrical engineering", "Digital communication").
		WIPO("P5", 0, "Electrical engineering", "Computer technology").
		WIPO("P6", 0, "Chemistry", "Pharmaceuticals")

	return f
}

// Load writes the fixture into db, replacing every raw table
func (f Fixture) Load(ctx context.Context, db *engine.DB) error {
	for _, table := range engine.Schema {
		if err := db.RecreateTable(ctx, table); err != nil {
			return err
		}
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		for _, row := range f[table.Name] {
			if _, err := tx.ExecContext(ctx, table.InsertSQL(), row...); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return db.CreateIndexes(ctx)
}

// NewDB loads the fixture into a temporary database, builds the derived tables
// with a five-year citation window, and returns it reopened read-only.
func NewDB(t *testing.T, f Fixture) *engine.DB {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "patentworld.db")

	db, err := engine.Open(ctx, path, engine.Options{Threads: 1, Mode: engine.ModeLoad})
	require.NoError(t, err)
	require.NoError(t, f.Load(ctx, db))
	require.NoError(t, db.BuildDerived(ctx, 5))
	require.NoError(t, db.Close())

	ro, err := engine.Open(ctx, path, engine.Options{Threads: 2, Mode: engine.ModeRead})
	require.NoError(t, err)
	t.Cleanup(func() { ro.Close() })
	return ro
}
