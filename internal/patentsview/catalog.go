package patentsview

import (
	"strings"

	"patentworld/internal/engine"
)

// Kind is the conversion applied to a source field
type Kind string

const (
	KindText Kind = "text"
	KindInt  Kind = "int"
	KindReal Kind = "real"
	KindDate Kind = "date"
)

// ColumnSpec maps one source TSV column onto a database column
type ColumnSpec struct {
	Source   string
	Target   string
	Kind     Kind
	Required bool
}

// TableSpec describes one PatentsView bulk file and the table it loads into
type TableSpec struct {
	// Name is the target table, one of engine.Schema
	Name string
	// Files are candidate base names, tried in order
	Files    []string
	Optional bool
	Columns  []ColumnSpec
}

// Table returns the engine table for s, with columns in catalog order.
func (s TableSpec) Table() engine.Table {
	t, _ := engine.LookupTable(s.Name)
	cols := make([]engine.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = engine.Column{Name: c.Target, Type: c.Kind.columnType()}
	}
	t.Columns = cols
	return t
}

func (k Kind) columnType() engine.ColumnType {
	switch k {
	case KindInt:
		return engine.Integer
	case KindReal:
		return engine.Real
	default:
		return engine.Text
	}
}

// Catalog is the fixed set of PatentsView tables, in load order
var Catalog = []TableSpec{
	{
		Name:  engine.TablePatent,
		Files: []string{"g_patent"},
		Columns: []ColumnSpec{
			{Source: "patent_id", Target: "patent_id", Kind: KindText, Required: true},
			{Source: "patent_type", Target: "patent_type", Kind: KindText, Required: true},
			{Source: "patent_date", Target: "patent_date", Kind: KindDate, Required: true},
			{Source: "patent_title", Target: "patent_title", Kind: KindText},
			{Source: "num_claims", Target: "num_claims", Kind: KindInt},
			{Source: "withdrawn", Target: "withdrawn", Kind: KindInt},
		},
	},
	{
		Name:  engine.TableApplication,
		Files: []string{"g_application"},
		Columns: []ColumnSpec{
			{Source: "application_id", Target: "application_id", Kind: KindText},
			{Source: "patent_id", Target: "patent_id", Kind: KindText, Required: true},
			{Source: "filing_date", Target: "filing_date", Kind: KindDate},
		},
	},
	{
		Name:  engine.TableCPC,
		Files: []string{"g_cpc_current"},
		Columns: []ColumnSpec{
			{Source: "patent_id", Target: "patent_id", Kind: KindText, Required: true},
			{Source: "cpc_sequence", Target: "cpc_sequence", Kind: KindInt, Required: true},
			{Source: "cpc_section", Target: "cpc_section", Kind: KindText},
			{Source: "cpc_class", Target: "cpc_class", Kind: KindText},
			{Source: "cpc_subclass", Target: "cpc_subclass", Kind: KindText},
			{Source: "cpc_group", Target: "cpc_group", Kind: KindText},
			{Source: "cpc_type", Target: "cpc_type", Kind: KindText},
		},
	},
	{
		Name:  engine.TableAssignee,
		Files: []string{"g_assignee_disambiguated"},
		Columns: []ColumnSpec{
			{Source: "patent_id", Target: "patent_id", Kind: KindText, Required: true},
			{Source: "assignee_sequence", Target: "assignee_sequence", Kind: KindInt, Required: true},
			{Source: "assignee_id", Target: "assignee_id", Kind: KindText},
			{Source: "disambig_assignee_organization", Target: "organization", Kind: KindText},
			{Source: "assignee_type", Target: "assignee_type", Kind: KindInt},
			{Source: "location_id", Target: "location_id", Kind: KindText},
		},
	},
	{
		Name:  engine.TableInventor,
		Files: []string{"g_inventor_disambiguated"},
		Columns: []ColumnSpec{
			{Source: "patent_id", Target: "patent_id", Kind: KindText, Required: true},
			{Source: "inventor_sequence", Target: "inventor_sequence", Kind: KindInt, Required: true},
			{Source: "inventor_id", Target: "inventor_id", Kind: KindText},
			{Source: "gender_code", Target: "gender_code", Kind: KindText},
			{Source: "location_id", Target: "location_id", Kind: KindText},
		},
	},
	{
		Name:  engine.TableCitation,
		Files: []string{"g_us_patent_citation"},
		Columns: []ColumnSpec{
			{Source: "patent_id", Target: "patent_id", Kind: KindText, Required: true},
			{Source: "citation_sequence", Target: "citation_sequence", Kind: KindInt},
			{Source: "citation_patent_id", Target: "citation_patent_id", Kind: KindText, Required: true},
			{Source: "citation_date", Target: "citation_date", Kind: KindDate},
			{Source: "citation_category", Target: "citation_category", Kind: KindText},
		},
	},
	{
		Name:     engine.TableLocation,
		Files:    []string{"g_location_disambiguated"},
		Optional: true,
		Columns: []ColumnSpec{
			{Source: "location_id", Target: "location_id", Kind: KindText, Required: true},
			{Source: "disambig_city", Target: "city", Kind: KindText},
			{Source: "disambig_state", Target: "state", Kind: KindText},
			{Source: "disambig_country", Target: "country", Kind: KindText},
			{Source: "latitude", Target: "latitude", Kind: KindReal},
			{Source: "longitude", Target: "longitude", Kind: KindReal},
		},
	},
	{
		Name:     engine.TableGovInterest,
		Files:    []string{"g_gov_interest"},
		Optional: true,
		Columns: []ColumnSpec{
			{Source: "patent_id", Target: "patent_id", Kind: KindText, Required: true},
			{Source: "gi_statement", Target: "gi_statement", Kind: KindText},
		},
	},
	{
		Name:     engine.TableWIPO,
		Files:    []string{"g_wipo_technology"},
		Optional: true,
		Columns: []ColumnSpec{
			{Source: "patent_id", Target: "patent_id", Kind: KindText, Required: true},
			{Source: "wipo_field_sequence", Target: "wipo_field_sequence", Kind: KindInt},
			{Source: "wipo_sector_title", Target: "wipo_sector_title", Kind: KindText},
			{Source: "wipo_field_title", Target: "wipo_field_title", Kind: KindText},
		},
	},
}

// LookupSpec returns the catalog entry for a table name
func LookupSpec(name string) (TableSpec, bool) {
	for _, s := range Catalog {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return TableSpec{}, false
}
