package patentsview

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentworld/internal/engine"
	apperrors "patentworld/internal/errors"
)

func openTestDB(t *testing.T) *engine.DB {
	t.Helper()
	db, err := engine.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"),
		engine.Options{Threads: 1, Mode: engine.ModeLoad})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeZip(t *testing.T, dir, name, member, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(member)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
		want interface{}
	}{
		{"text", " abc ", KindText, "abc"},
		{"empty", "", KindText, nil},
		{"null literal", "NULL", KindInt, nil},
		{"int", "42", KindInt, int64(42)},
		{"int written as float", "3.0", KindInt, int64(3)},
		{"fractional int", "3.5", KindInt, nil},
		{"bad int", "x", KindInt, nil},
		{"real", "-12.5", KindReal, -12.5},
		{"date", "2001-02-03", KindDate, "2001-02-03"},
		{"datetime truncated", "2001-02-03 00:00:00", KindDate, "2001-02-03"},
		{"zero date", "0000-00-00", KindDate, nil},
		{"month zero", "1999-00-10", KindDate, nil},
		{"day out of range", "1999-02-30", KindDate, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convert(tt.raw, tt.kind))
		})
	}
}

func TestMapColumns(t *testing.T) {
	spec, ok := LookupSpec(engine.TableApplication)
	require.True(t, ok)

	// column order and case do not matter, BOM on the first header is stripped
	positions, err := mapColumns([]string{"\ufeffFILING_DATE", "extra", "Patent_ID"}, spec)
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 2, 0}, positions)

	_, err = mapColumns([]string{"application_id", "filing_date"}, spec)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.Contains(t, err.Error(), "patent_id")
}

func TestLoad_RejectsAndCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	spec, ok := LookupSpec(engine.TablePatent)
	require.True(t, ok)
	require.NoError(t, db.RecreateTable(ctx, spec.Table()))

	data := strings.Join([]string{
		"patent_id\tpatent_type\tpatent_date\tpatent_title\twipo_kind\tnum_claims\twithdrawn",
		"1000001\tutility\t2001-01-02\tWidget\tB1\t10\t0",
		"1000002\tutility\t0000-00-00\tBad date\tB1\t3\t0",
		"\tutility\t2001-01-02\tNo id\tB1\t3\t0",
		"1000003\tdesign\t2002-05-06\tVase\tS1\t1\t0",
		"1000004\tutility\t2002-05-06\tGadget\tB2\tn/a\t",
	}, "\n") + "\n"

	loader := NewLoader(db, 2, nil, nil)
	stats, err := loader.Load(ctx, strings.NewReader(data), spec)
	require.NoError(t, err)

	assert.Equal(t, engine.TablePatent, stats.Table)
	assert.Equal(t, int64(3), stats.Rows)
	assert.Equal(t, int64(2), stats.Rejected)

	var claims []struct {
		ID     string `db:"patent_id"`
		Claims *int64 `db:"num_claims"`
	}
	require.NoError(t, db.Select(ctx, "claims", &claims,
		`SELECT patent_id, num_claims FROM patent ORDER BY patent_id`))
	require.Len(t, claims, 3)
	require.NotNil(t, claims[0].Claims)
	assert.Equal(t, int64(10), *claims[0].Claims)
	assert.Nil(t, claims[2].Claims)
}

func TestLoad_EmptyFile(t *testing.T) {
	db := openTestDB(t)
	spec, _ := LookupSpec(engine.TableGovInterest)
	require.NoError(t, db.RecreateTable(context.Background(), spec.Table()))

	_, err := NewLoader(db, 10, nil, nil).Load(context.Background(), strings.NewReader(""), spec)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	_, err := Discover(dir, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	for _, spec := range Catalog {
		if spec.Optional {
			continue
		}
		writeFile(t, dir, spec.Files[0]+".tsv", "patent_id\n")
	}
	writeZip(t, dir, "g_wipo_technology.tsv.zip", "g_wipo_technology.tsv", "patent_id\n")

	files, err := Discover(dir, nil)
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Spec.Name
	}
	assert.Contains(t, names, engine.TableWIPO)
	assert.NotContains(t, names, engine.TableGovInterest)
	assert.NotContains(t, names, engine.TableLocation)

	for _, f := range files {
		assert.Equal(t, f.Spec.Name == engine.TableWIPO, f.Zipped)
	}

	_, err = Discover(filepath.Join(dir, "missing"), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestOpenTable_Zip(t *testing.T) {
	dir := t.TempDir()
	path := writeZip(t, dir, "g_patent.tsv.zip", "g_patent.tsv", "patent_id\n1\n")

	rc, err := OpenTable(path)
	require.NoError(t, err)
	defer rc.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, rc)
	require.NoError(t, err)
	assert.Equal(t, "patent_id\n1\n", buf.String())

	empty := writeZip(t, dir, "g_other.tsv.zip", "README.txt", "hello")
	_, err = OpenTable(empty)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestLoadAll(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "g_patent.tsv",
		"patent_id\tpatent_type\tpatent_date\tnum_claims\n1\tutility\t2001-01-02\t5\n2\tutility\t2002-03-04\t7\n")
	writeFile(t, dir, "g_application.tsv",
		"application_id\tpatent_id\tfiling_date\na1\t1\t1999-01-02\n")
	writeFile(t, dir, "g_cpc_current.tsv",
		"patent_id\tcpc_sequence\tcpc_section\n1\t0\tH\n")
	writeFile(t, dir, "g_assignee_disambiguated.tsv",
		"patent_id\tassignee_sequence\tdisambig_assignee_organization\n1\t0\tAcme\n")
	writeFile(t, dir, "g_inventor_disambiguated.tsv",
		"patent_id\tinventor_sequence\tgender_code\n1\t0\tF\n1\t1\tM\n")
	writeZip(t, dir, "g_us_patent_citation.tsv.zip", "g_us_patent_citation.tsv",
		"patent_id\tcitation_sequence\tcitation_patent_id\n2\t0\t1\n")

	files, err := Discover(dir, nil)
	require.NoError(t, err)

	loader := NewLoader(db, 100, nil, nil)
	stats, err := loader.LoadAll(ctx, files)
	require.NoError(t, err)
	assert.Len(t, stats, 6)

	counts, err := db.TableCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[engine.TablePatent])
	assert.Equal(t, int64(2), counts[engine.TableInventor])
	assert.Equal(t, int64(1), counts[engine.TableCitation])
	assert.Equal(t, int64(0), counts[engine.TableGovInterest])

	// reloading replaces, never appends
	_, err = loader.LoadAll(ctx, files)
	require.NoError(t, err)
	counts, err = db.TableCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[engine.TablePatent])

	var org string
	require.NoError(t, db.Get(ctx, "org", &org, `SELECT organization FROM assignee WHERE patent_id = '1'`))
	assert.Equal(t, "Acme", org)
}
