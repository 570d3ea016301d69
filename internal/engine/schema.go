package engine

import (
	"fmt"
	"strings"
)

// ColumnType is the SQLite storage class of a raw column
type ColumnType string

const (
	Text    ColumnType = "TEXT"
	Integer ColumnType = "INTEGER"
	Real    ColumnType = "REAL"
)

// Column is one column of a raw table
type Column struct {
	Name string
	Type ColumnType
}

// Table describes a raw PatentsView table as stored in the database
type Table struct {
	Name    string
	Columns []Column
	// Indexes lists column groups to index after loading
	Indexes [][]string
}

// CreateSQL returns the CREATE TABLE statement
func (t Table) CreateSQL() string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(defs, ", "))
}

// InsertSQL returns a positional INSERT statement over every column
func (t Table) InsertSQL() string {
	names := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(names, ", "), strings.Join(marks, ", "))
}

// IndexSQL returns one CREATE INDEX statement per index
func (t Table) IndexSQL() []string {
	out := make([]string, 0, len(t.Indexes))
	for _, cols := range t.Indexes {
		name := fmt.Sprintf("idx_%s_%s", t.Name, strings.Join(cols, "_"))
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, t.Name, strings.Join(cols, ", ")))
	}
	return out
}

// Raw table names
const (
	TablePatent      = "patent"
	TableApplication = "application"
	TableCPC         = "cpc"
	TableAssignee    = "assignee"
	TableInventor    = "inventor"
	TableCitation    = "citation"
	TableLocation    = "location"
	TableGovInterest = "gov_interest"
	TableWIPO        = "wipo"
)

// Derived table names
const (
	DerivedUtilityPatent   = "utility_patent"
	DerivedPrimaryCPC      = "primary_cpc"
	DerivedFirstAssignee   = "first_assignee"
	DerivedTeam            = "team"
	DerivedForwardCitation = "forward_citation_count"
	DerivedFirstInventor   = "first_inventor_country"
)

// Schema lists the raw tables in load order
var Schema = []Table{
	{
		Name: TablePatent,
		Columns: []Column{
			{"patent_id", Text},
			{"patent_type", Text},
			{"patent_date", Text},
			{"patent_title", Text},
			{"num_claims", Integer},
			{"withdrawn", Integer},
		},
		Indexes: [][]string{{"patent_id"}},
	},
	{
		Name: TableApplication,
		Columns: []Column{
			{"application_id", Text},
			{"patent_id", Text},
			{"filing_date", Text},
		},
		Indexes: [][]string{{"patent_id"}},
	},
	{
		Name: TableCPC,
		Columns: []Column{
			{"patent_id", Text},
			{"cpc_sequence", Integer},
			{"cpc_section", Text},
			{"cpc_class", Text},
			{"cpc_subclass", Text},
			{"cpc_group", Text},
			{"cpc_type", Text},
		},
		Indexes: [][]string{{"patent_id", "cpc_sequence"}},
	},
	{
		Name: TableAssignee,
		Columns: []Column{
			{"patent_id", Text},
			{"assignee_sequence", Integer},
			{"assignee_id", Text},
			{"organization", Text},
			{"assignee_type", Integer},
			{"location_id", Text},
		},
		Indexes: [][]string{{"patent_id", "assignee_sequence"}, {"assignee_id"}},
	},
	{
		Name: TableInventor,
		Columns: []Column{
			{"patent_id", Text},
			{"inventor_sequence", Integer},
			{"inventor_id", Text},
			{"gender_code", Text},
			{"location_id", Text},
		},
		Indexes: [][]string{{"patent_id", "inventor_sequence"}},
	},
	{
		Name: TableCitation,
		Columns: []Column{
			{"patent_id", Text},
			{"citation_sequence", Integer},
			{"citation_patent_id", Text},
			{"citation_date", Text},
			{"citation_category", Text},
		},
		Indexes: [][]string{{"patent_id"}, {"citation_patent_id"}},
	},
	{
		Name: TableLocation,
		Columns: []Column{
			{"location_id", Text},
			{"city", Text},
			{"state", Text},
			{"country", Text},
			{"latitude", Real},
			{"longitude", Real},
		},
		Indexes: [][]string{{"location_id"}},
	},
	{
		Name: TableGovInterest,
		Columns: []Column{
			{"patent_id", Text},
			{"gi_statement", Text},
		},
		Indexes: [][]string{{"patent_id"}},
	},
	{
		Name: TableWIPO,
		Columns: []Column{
			{"patent_id", Text},
			{"wipo_field_sequence", Integer},
			{"wipo_sector_title", Text},
			{"wipo_field_title", Text},
		},
		Indexes: [][]string{{"patent_id", "wipo_field_sequence"}},
	},
}

// LookupTable returns the raw table with the given name
func LookupTable(name string) (Table, bool) {
	for _, t := range Schema {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// derivedStatements rebuild the derived tables from the raw tables. The
// forward-citation window (years) is bound as the only parameter.
var derivedStatements = []struct {
	name   string
	query  string
	window bool
}{
	{name: DerivedUtilityPatent, query: `DROP TABLE IF EXISTS utility_patent`},
	{name: DerivedUtilityPatent, query: `
CREATE TABLE utility_patent AS
SELECT p.patent_id                                  AS patent_id,
       p.patent_date                                AS grant_date,
       CAST(substr(p.patent_date, 1, 4) AS INTEGER) AS grant_year,
       a.filing_date                                AS filing_date,
       CASE WHEN a.filing_date IS NOT NULL
            THEN julianday(p.patent_date) - julianday(a.filing_date) END AS lag_days,
       p.num_claims                                 AS num_claims
FROM patent p
LEFT JOIN (SELECT patent_id, MIN(filing_date) AS filing_date
           FROM application GROUP BY patent_id) a ON a.patent_id = p.patent_id
WHERE lower(p.patent_type) = 'utility'
  AND COALESCE(p.withdrawn, 0) = 0
  AND p.patent_date IS NOT NULL
GROUP BY p.patent_id`},
	{name: DerivedUtilityPatent, query: `CREATE UNIQUE INDEX idx_utility_patent_id ON utility_patent (patent_id)`},
	{name: DerivedUtilityPatent, query: `CREATE INDEX idx_utility_patent_year ON utility_patent (grant_year)`},

	{name: DerivedPrimaryCPC, query: `DROP TABLE IF EXISTS primary_cpc`},
	{name: DerivedPrimaryCPC, query: `
CREATE TABLE primary_cpc AS
SELECT c.patent_id AS patent_id,
       MIN(c.cpc_section)  AS section,
       MIN(c.cpc_class)    AS class,
       MIN(c.cpc_subclass) AS subclass
FROM cpc c
JOIN utility_patent u ON u.patent_id = c.patent_id
WHERE c.cpc_sequence = 0 AND c.cpc_section IS NOT NULL
GROUP BY c.patent_id`},
	{name: DerivedPrimaryCPC, query: `CREATE UNIQUE INDEX idx_primary_cpc_id ON primary_cpc (patent_id)`},

	{name: DerivedFirstAssignee, query: `DROP TABLE IF EXISTS first_assignee`},
	{name: DerivedFirstAssignee, query: `
CREATE TABLE first_assignee AS
SELECT a.patent_id AS patent_id,
       MIN(a.assignee_id)   AS assignee_id,
       MIN(a.organization)  AS organization,
       MIN(a.assignee_type) AS assignee_type
FROM assignee a
JOIN utility_patent u ON u.patent_id = a.patent_id
WHERE a.assignee_sequence = 0
GROUP BY a.patent_id`},
	{name: DerivedFirstAssignee, query: `CREATE UNIQUE INDEX idx_first_assignee_id ON first_assignee (patent_id)`},
	{name: DerivedFirstAssignee, query: `CREATE INDEX idx_first_assignee_assignee ON first_assignee (assignee_id)`},

	{name: DerivedTeam, query: `DROP TABLE IF EXISTS team`},
	{name: DerivedTeam, query: `
CREATE TABLE team AS
SELECT i.patent_id AS patent_id, COUNT(*) AS team_size
FROM inventor i
JOIN utility_patent u ON u.patent_id = i.patent_id
GROUP BY i.patent_id`},
	{name: DerivedTeam, query: `CREATE UNIQUE INDEX idx_team_id ON team (patent_id)`},

	{name: DerivedFirstInventor, query: `DROP TABLE IF EXISTS first_inventor_country`},
	{name: DerivedFirstInventor, query: `
CREATE TABLE first_inventor_country AS
SELECT i.patent_id AS patent_id, MIN(l.country) AS country
FROM inventor i
JOIN utility_patent u ON u.patent_id = i.patent_id
JOIN location l ON l.location_id = i.location_id
WHERE i.inventor_sequence = 0 AND l.country IS NOT NULL AND l.country <> ''
GROUP BY i.patent_id`},
	{name: DerivedFirstInventor, query: `CREATE UNIQUE INDEX idx_first_inventor_country_id ON first_inventor_country (patent_id)`},

	{name: DerivedForwardCitation, query: `DROP TABLE IF EXISTS forward_citation_count`},
	{name: DerivedForwardCitation, query: `
CREATE TABLE forward_citation_count AS
SELECT cited.patent_id AS patent_id,
       cited.grant_year AS grant_year,
       COUNT(DISTINCT citing.patent_id) AS fwd
FROM utility_patent cited
LEFT JOIN citation c ON c.citation_patent_id = cited.patent_id
LEFT JOIN utility_patent citing
       ON citing.patent_id = c.patent_id
      AND citing.grant_date >= cited.grant_date
      AND citing.grant_date <= date(cited.grant_date, '+' || ? || ' years')
GROUP BY cited.patent_id`, window: true},
	{name: DerivedForwardCitation, query: `CREATE UNIQUE INDEX idx_forward_citation_count_id ON forward_citation_count (patent_id)`},
}
