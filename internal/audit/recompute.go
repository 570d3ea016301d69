package audit

import (
	"context"
	"database/sql"
	"sort"

	"patentworld/internal/engine"
	apperrors "patentworld/internal/errors"
)

// Scope is the year range and citation window the published outputs were built with
type Scope struct {
	MinYear     int
	MaxYear     int
	WindowYears int
}

// Recomputer derives a published value directly from the raw tables
type Recomputer func(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error)

// The recomputers below read only the raw PatentsView tables. They restate
// the utility-patent filter instead of reading the derived tables built for
// the analyses.
const utilityPatents = `
WITH up AS (
    SELECT patent_id,
           MIN(patent_date) AS patent_date,
           CAST(substr(MIN(patent_date), 1, 4) AS INTEGER) AS yr
    FROM patent
    WHERE lower(patent_type) = 'utility'
      AND COALESCE(withdrawn, 0) = 0
      AND patent_date IS NOT NULL
    GROUP BY patent_id
)`

const firstAssignees = `,
fa AS (
    SELECT a.patent_id, MIN(a.assignee_id) AS aid, up.yr AS yr
    FROM assignee a
    JOIN up ON up.patent_id = a.patent_id
    WHERE a.assignee_sequence = 0 AND a.assignee_id IS NOT NULL
    GROUP BY a.patent_id
)`

var recomputers = map[string]Recomputer{
	"total_patents":         totalPatents,
	"patents_in_year":       patentsInYear,
	"median_grant_lag_days": medianGrantLag,
	"section_share":         sectionShare,
	"female_inventor_share": femaleInventorShare,
	"gov_interest_share":    govInterestShare,
	"self_citation_rate":    selfCitationRate,
	"mean_team_size":        meanTeamSize,
	"assignee_hhi":          assigneeHHI,
	"citation_gini":         citationGini,
}

// LookupRecomputer returns the recomputer registered under metric
func LookupRecomputer(metric string) (Recomputer, bool) {
	r, ok := recomputers[metric]
	return r, ok
}

// Metrics lists the registered recompute metrics, sorted
func Metrics() []string {
	out := make([]string, 0, len(recomputers))
	for m := range recomputers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// yearBounds returns [year, year] when the year parameter is set, else the scope
func yearBounds(scope Scope, p Params) (int, int, error) {
	if !p.Has("year") {
		return scope.MinYear, scope.MaxYear, nil
	}
	y, err := p.Int("year")
	return y, y, err
}

// scalar runs a single-value query; NULL means the value is undefined
func scalar(ctx context.Context, db *engine.DB, name, query string, args ...interface{}) (float64, error) {
	var v sql.NullFloat64
	if err := db.Get(ctx, name, &v, query, args...); err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, apperrors.NewAuditError("no data to recompute "+name, nil)
	}
	return v.Float64, nil
}

func totalPatents(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	return scalar(ctx, db, "total_patents", utilityPatents+`
SELECT COUNT(*) FROM up WHERE yr BETWEEN ? AND ?`, scope.MinYear, scope.MaxYear)
}

func patentsInYear(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	year, err := p.Int("year")
	if err != nil {
		return 0, err
	}
	return scalar(ctx, db, "patents_in_year", utilityPatents+`
SELECT COUNT(*) FROM up WHERE yr = ?`, year)
}

func medianGrantLag(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	from, to, err := yearBounds(scope, p)
	if err != nil {
		return 0, err
	}
	var lags []float64
	if err := db.Select(ctx, "median_grant_lag_days", &lags, utilityPatents+`,
lag AS (
    SELECT julianday(up.patent_date) - julianday(MIN(a.filing_date)) AS d
    FROM up
    JOIN application a ON a.patent_id = up.patent_id
    WHERE a.filing_date IS NOT NULL AND up.yr BETWEEN ? AND ?
    GROUP BY up.patent_id
)
SELECT d FROM lag WHERE d >= 0 ORDER BY d`, from, to); err != nil {
		return 0, err
	}

	n := len(lags)
	if n == 0 {
		return 0, apperrors.NewAuditError("no grant lags to recompute median", nil)
	}
	if n%2 == 1 {
		return lags[n/2], nil
	}
	return (lags[n/2-1] + lags[n/2]) / 2, nil
}

func sectionShare(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	year, err := p.Int("year")
	if err != nil {
		return 0, err
	}
	section, err := p.String("section")
	if err != nil {
		return 0, err
	}
	return scalar(ctx, db, "section_share", utilityPatents+`,
prim AS (
    SELECT c.patent_id, MIN(c.cpc_section) AS section
    FROM cpc c
    JOIN up ON up.patent_id = c.patent_id
    WHERE c.cpc_sequence = 0 AND c.cpc_section IS NOT NULL AND up.yr = ?
    GROUP BY c.patent_id
)
SELECT CAST(SUM(CASE WHEN section = ? THEN 1 ELSE 0 END) AS REAL) / NULLIF(COUNT(*), 0)
FROM prim`, year, section)
}

func femaleInventorShare(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	year, err := p.Int("year")
	if err != nil {
		return 0, err
	}
	return scalar(ctx, db, "female_inventor_share", utilityPatents+`
SELECT CAST(SUM(CASE WHEN upper(i.gender_code) = 'F' THEN 1 ELSE 0 END) AS REAL) /
       NULLIF(SUM(CASE WHEN upper(i.gender_code) IN ('F', 'M') THEN 1 ELSE 0 END), 0)
FROM inventor i
JOIN up ON up.patent_id = i.patent_id
WHERE up.yr = ?`, year)
}

func govInterestShare(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	year, err := p.Int("year")
	if err != nil {
		return 0, err
	}
	return scalar(ctx, db, "gov_interest_share", utilityPatents+`
SELECT CAST(COUNT(DISTINCT g.patent_id) AS REAL) / NULLIF(COUNT(DISTINCT up.patent_id), 0)
FROM up
LEFT JOIN gov_interest g ON g.patent_id = up.patent_id
WHERE up.yr = ?`, year)
}

func selfCitationRate(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	year, err := p.Int("year")
	if err != nil {
		return 0, err
	}
	return scalar(ctx, db, "self_citation_rate", utilityPatents+firstAssignees+`
SELECT CAST(SUM(CASE WHEN src.aid = dst.aid THEN 1 ELSE 0 END) AS REAL) / NULLIF(COUNT(*), 0)
FROM citation c
JOIN fa src ON src.patent_id = c.patent_id
JOIN fa dst ON dst.patent_id = c.citation_patent_id
WHERE src.yr = ?`, year)
}

func meanTeamSize(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	from, to, err := yearBounds(scope, p)
	if err != nil {
		return 0, err
	}
	return scalar(ctx, db, "mean_team_size", utilityPatents+`,
team AS (
    SELECT i.patent_id, COUNT(*) AS n
    FROM inventor i
    JOIN up ON up.patent_id = i.patent_id
    WHERE up.yr BETWEEN ? AND ?
    GROUP BY i.patent_id
)
SELECT AVG(n) FROM team`, from, to)
}

func assigneeHHI(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	year, err := p.Int("year")
	if err != nil {
		return 0, err
	}
	return scalar(ctx, db, "assignee_hhi", utilityPatents+firstAssignees+`,
counts AS (SELECT aid, COUNT(*) AS n FROM fa WHERE yr = ? GROUP BY aid),
total AS (SELECT SUM(n) AS t FROM counts)
SELECT SUM((100.0 * n / t) * (100.0 * n / t)) FROM counts, total`, year)
}

func citationGini(ctx context.Context, db *engine.DB, scope Scope, p Params) (float64, error) {
	year, err := p.Int("year")
	if err != nil {
		return 0, err
	}
	var fwd []float64
	if err := db.Select(ctx, "citation_gini", &fwd, utilityPatents+`
SELECT COUNT(DISTINCT citing.patent_id) AS fwd
FROM up cited
LEFT JOIN citation c ON c.citation_patent_id = cited.patent_id
LEFT JOIN up citing
       ON citing.patent_id = c.patent_id
      AND citing.patent_date >= cited.patent_date
      AND citing.patent_date <= date(cited.patent_date, '+' || ? || ' years')
WHERE cited.yr = ?
GROUP BY cited.patent_id`, scope.WindowYears, year); err != nil {
		return 0, err
	}
	return meanDifferenceGini(fwd)
}

// meanDifferenceGini computes the Gini coefficient as the mean absolute
// difference over all pairs divided by twice the mean. Over sorted values the
// pair sum reduces to sum((2i - n - 1) * x_i) with 1-based i.
func meanDifferenceGini(xs []float64) (float64, error) {
	n := len(xs)
	if n == 0 {
		return 0, apperrors.NewAuditError("no patents to recompute Gini", nil)
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	sum, pairs := 0.0, 0.0
	for i, x := range sorted {
		sum += x
		pairs += float64(2*(i+1)-n-1) * x
	}
	if sum == 0 {
		return 0, nil
	}
	// sum_i sum_j |x_i - x_j| = 2 * pairs; mean = sum / n
	return 2 * pairs / (2 * float64(n) * sum), nil
}
