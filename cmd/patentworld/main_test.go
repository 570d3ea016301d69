package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentworld/internal/analysis"
	"patentworld/internal/audit"
	"patentworld/internal/exporter"
	"patentworld/internal/infrastructure"
	"patentworld/internal/testutil"
	"patentworld/pkg/contracts"
)

// workspace writes a config file that keeps every path inside a temp dir
func workspace(t *testing.T) (dir, configFile string) {
	t.Helper()
	dir = t.TempDir()
	configFile = filepath.Join(dir, "patentworld.yaml")
	cfg := fmt.Sprintf(`
logging:
  level: warn
  output: file
  file_path: %[1]s/logs/patentworld.log
paths:
  data_dir: %[1]s/raw
  output_dir: %[1]s/out
  database: %[1]s/patentworld.db
  logs_dir: %[1]s/logs
  report_dir: %[1]s/audit
  claims_file: %[1]s/claims.yaml
  metrics_file: %[1]s/metrics/patentworld.prom
  trace_file: %[1]s/traces.jsonl
telemetry:
  service_name: patentworld-test
  traces_enabled: true
  metrics_enabled: true
`, filepath.ToSlash(dir))
	require.NoError(t, os.WriteFile(configFile, []byte(cfg), 0644))
	return dir, configFile
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeTSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadCommand(t *testing.T) {
	dir, configFile := workspace(t)
	raw := filepath.Join(dir, "raw")

	writeTSV(t, raw, "g_patent.tsv",
		"patent_id\tpatent_type\tpatent_date\tnum_claims\n1\tutility\t2001-01-02\t5\n2\tutility\t2002-03-04\t7\n3\tdesign\t2002-05-06\t1\n")
	writeTSV(t, raw, "g_application.tsv",
		"application_id\tpatent_id\tfiling_date\na1\t1\t1999-01-02\na2\t2\t2000-03-04\n")
	writeTSV(t, raw, "g_cpc_current.tsv",
		"patent_id\tcpc_sequence\tcpc_section\n1\t0\tH\n2\t0\tG\n")
	writeTSV(t, raw, "g_assignee_disambiguated.tsv",
		"patent_id\tassignee_sequence\tassignee_id\tdisambig_assignee_organization\n1\t0\ta1\tAcme\n")
	writeTSV(t, raw, "g_inventor_disambiguated.tsv",
		"patent_id\tinventor_sequence\tgender_code\n1\t0\tF\n1\t1\tM\n2\t0\tM\n")
	writeTSV(t, raw, "g_us_patent_citation.tsv",
		"patent_id\tcitation_sequence\tcitation_patent_id\n2\t0\t1\n")

	code, stdout, stderr := run(t, "--config", configFile, "load")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "application")
	assert.Contains(t, stdout, "Loaded 12 rows")
	assert.FileExists(t, filepath.Join(dir, "patentworld.db"))
	assert.FileExists(t, filepath.Join(dir, "metrics", "patentworld.prom"))

	metrics, err := os.ReadFile(filepath.Join(dir, "metrics", "patentworld.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "rows_loaded_total")
}

func TestLoadCommand_MissingData(t *testing.T) {
	_, configFile := workspace(t)

	code, _, stderr := run(t, "--config", configFile, "load")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "not found")
}

func TestBuildAndAudit(t *testing.T) {
	dir, configFile := workspace(t)
	db := testutil.NewDB(t, testutil.Standard())

	code, stdout, stderr := run(t, "--config", configFile, "--db", db.Path(), "build")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Wrote 21 outputs")

	out := filepath.Join(dir, "out")
	manifest, err := exporter.ReadJSON(filepath.Join(out, analysis.ManifestFile))
	require.NoError(t, err)
	m := manifest.(map[string]interface{})
	assert.Equal(t, analysis.StatusCompleted, m["status"])
	assert.Equal(t, contracts.Version, m["version"])

	claims := `
claims:
  - id: total
    description: Six utility patents were granted
    output: overview.json
    pointer: /data/total_patents
    expected: 6
    recompute: {metric: total_patents}
  - id: gini-2000
    description: Forward citations of 2000 grants have a Gini of 0.25
    output: citation_inequality.json
    pointer: /data/years/2000/gini
    expected: 0.25
    recompute: {metric: citation_gini, params: {year: "2000"}}
  - id: patents-2001
    description: Two utility patents were granted in 2001
    output: patents_per_year.json
    pointer: /data/years/2001/count
    expected: 2
    recompute: {metric: patents_in_year, params: {year: "2001"}}
  - id: lag-2000
    description: Median pendency of 2000 grants is 548.5 days
    output: grant_lag.json
    pointer: /data/years/2000/median
    expected: 548.5
    recompute: {metric: median_grant_lag_days, params: {year: "2000"}}
  - id: section-h-2000
    description: Half of 2000 grants are in section H
    output: cpc_sections.json
    pointer: /data/years/2000/shares/H
    expected: 0.5
    recompute: {metric: section_share, params: {year: "2000", section: H}}
  - id: female-2000
    description: One in three 2000 inventors with known gender is female
    output: inventor_gender.json
    pointer: /data/years/2000/female_share
    expected: 0.333333
    recompute: {metric: female_inventor_share, params: {year: "2000"}}
  - id: gov-2000
    description: Half of 2000 grants carry a government-interest statement
    output: government_interest.json
    pointer: /data/years/2000/share
    expected: 0.5
    recompute: {metric: gov_interest_share, params: {year: "2000"}}
  - id: self-2001
    description: Half of 2001 citations between assigned patents are self-citations
    output: self_citation.json
    pointer: /data/years/2001/rate
    expected: 0.5
    recompute: {metric: self_citation_rate, params: {year: "2001"}}
  - id: team
    description: Mean team size is 1.5 inventors
    output: team_size.json
    pointer: /data/overall_mean
    expected: 1.5
    recompute: {metric: mean_team_size}
  - id: hhi-2001
    description: Assignee HHI in 2001 is 5000
    output: assignee_concentration.json
    pointer: /data/years/2001/hhi
    expected: 5000
    recompute: {metric: assignee_hhi, params: {year: "2001"}}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claims.yaml"), []byte(claims), 0644))

	code, stdout, stderr = run(t, "--config", configFile, "--db", db.Path(), "audit")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "10 claims: 10 passed, 0 failed, 0 errors")
	assert.FileExists(t, filepath.Join(dir, "audit", audit.ReportJSON))
	assert.FileExists(t, filepath.Join(dir, "audit", audit.ReportCSV))
	assert.FileExists(t, filepath.Join(dir, "audit", audit.ReportXLSX))

	failing := filepath.Join(dir, "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(`
claims:
  - {id: total, description: wrong, output: overview.json, pointer: /data/total_patents, expected: 7}
  - {id: missing, description: gone, output: nope.json, pointer: /data/x, expected: 1}
`), 0644))

	code, stdout, stderr = run(t, "--config", configFile, "--db", db.Path(),
		"audit", "--claims", failing, "--report-dir", filepath.Join(dir, "audit-failing"))
	assert.Equal(t, exitClaimsFailed, code)
	assert.Contains(t, stdout, "2 claims: 0 passed, 1 failed, 1 errors")
	assert.Contains(t, stderr, "audit found failing claims")
}

func TestBuildCommand_Only(t *testing.T) {
	dir, configFile := workspace(t)
	db := testutil.NewDB(t, testutil.Standard())

	code, _, stderr := run(t, "--config", configFile, "--db", db.Path(), "build", "--only", "government_interest")
	require.Equal(t, exitOK, code, stderr)

	out := filepath.Join(dir, "out")
	assert.FileExists(t, filepath.Join(out, "government_interest.json"))
	assert.FileExists(t, filepath.Join(out, "citation_impact.json"))
	assert.NoFileExists(t, filepath.Join(out, "overview.json"))
}

func TestBuildCommand_UnknownAnalysis(t *testing.T) {
	_, configFile := workspace(t)
	db := testutil.NewDB(t, testutil.Standard())

	code, _, stderr := run(t, "--config", configFile, "--db", db.Path(), "build", "--only", "nope")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "nope")
}

func TestBuildCommand_NoDatabase(t *testing.T) {
	dir, configFile := workspace(t)

	code, _, stderr := run(t, "--config", configFile, "--db", filepath.Join(dir, "missing.db"), "build")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "missing.db")
}

func TestListCommand(t *testing.T) {
	_, configFile := workspace(t)

	code, stdout, stderr := run(t, "--config", configFile, "list")
	require.Equal(t, exitOK, code, stderr)
	for _, id := range analysis.DefaultRegistry().ListIDs() {
		assert.Contains(t, stdout, id)
	}
	assert.Contains(t, stdout, "citation_impact.json")
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := run(t, "version")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, contracts.GetVersionString())

	code, stdout, _ = run(t, "version", "--json")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, `"version": "`+contracts.Version+`"`)
	assert.Contains(t, stdout, `"output_schema": 1`)
}

func TestInvalidConfig(t *testing.T) {
	_, configFile := workspace(t)

	code, _, stderr := run(t, "--config", configFile, "--log-level", "loud", "list")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "Level")
}
