package analysis

import (
	"context"
	"math"

	"patentworld/internal/stats"
)

// Overview is the headline counts shown on the landing page
type Overview struct {
	TotalPatents  int64 `json:"total_patents"`
	FirstYear     int   `json:"first_year"`
	LastYear      int   `json:"last_year"`
	Organizations int64 `json:"organizations"`
	Inventors     int64 `json:"inventors"`
	Countries     int64 `json:"countries"`
	Citations     int64 `json:"citations"`
}

// OverviewAnalysis computes the headline counts
type OverviewAnalysis struct{ BaseAnalysis }

func NewOverviewAnalysis() *OverviewAnalysis {
	return &OverviewAnalysis{NewBaseAnalysis("overview", "Overview")}
}

func (a *OverviewAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var out Overview
	args := env.yearArgs()

	var span struct {
		N     int64 `db:"n"`
		First *int  `db:"first_year"`
		Last  *int  `db:"last_year"`
	}
	if err := env.DB.Get(ctx, "overview_patents", &span, `
SELECT COUNT(*) AS n, MIN(u.grant_year) AS first_year, MAX(u.grant_year) AS last_year
FROM utility_patent u
WHERE `+inRange, args...); err != nil {
		return nil, err
	}
	out.TotalPatents = span.N
	if span.First != nil {
		out.FirstYear = *span.First
	}
	if span.Last != nil {
		out.LastYear = *span.Last
	}

	counts := []struct {
		name  string
		dest  *int64
		query string
	}{
		{"overview_organizations", &out.Organizations, `
SELECT COUNT(DISTINCT a.assignee_id)
FROM assignee a JOIN utility_patent u ON u.patent_id = a.patent_id
WHERE a.assignee_id IS NOT NULL AND a.organization IS NOT NULL AND ` + inRange},
		{"overview_inventors", &out.Inventors, `
SELECT COUNT(DISTINCT i.inventor_id)
FROM inventor i JOIN utility_patent u ON u.patent_id = i.patent_id
WHERE i.inventor_id IS NOT NULL AND ` + inRange},
		{"overview_countries", &out.Countries, `
SELECT COUNT(DISTINCT f.country)
FROM first_inventor_country f JOIN utility_patent u ON u.patent_id = f.patent_id
WHERE ` + inRange},
		{"overview_citations", &out.Citations, `
SELECT COUNT(*)
FROM citation c JOIN utility_patent u ON u.patent_id = c.patent_id
WHERE ` + inRange},
	}
	for _, c := range counts {
		if err := env.DB.Get(ctx, c.name, c.dest, c.query, args...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// YearCount is the number of grants in one year and the change on the prior year
type YearCount struct {
	Count  int64   `json:"count"`
	Growth float64 `json:"growth"`
}

// PatentsPerYear is the grant volume series
type PatentsPerYear struct {
	Total int64             `json:"total"`
	Years map[int]YearCount `json:"years"`
}

// PatentsPerYearAnalysis counts grants per year
type PatentsPerYearAnalysis struct{ BaseAnalysis }

func NewPatentsPerYearAnalysis() *PatentsPerYearAnalysis {
	return &PatentsPerYearAnalysis{NewBaseAnalysis("patents_per_year", "Utility patents granted per year")}
}

func (a *PatentsPerYearAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []struct {
		Year int   `db:"year"`
		N    int64 `db:"n"`
	}
	if err := env.DB.Select(ctx, "patents_per_year", &rows, `
SELECT u.grant_year AS year, COUNT(*) AS n
FROM utility_patent u
WHERE `+inRange+`
GROUP BY u.grant_year
ORDER BY u.grant_year`, env.yearArgs()...); err != nil {
		return nil, err
	}

	out := PatentsPerYear{Years: make(map[int]YearCount, len(rows))}
	for i, r := range rows {
		growth := math.NaN()
		if i > 0 && rows[i-1].Year == r.Year-1 && rows[i-1].N > 0 {
			growth = float64(r.N-rows[i-1].N) / float64(rows[i-1].N)
		}
		out.Years[r.Year] = YearCount{Count: r.N, Growth: growth}
		out.Total += r.N
	}
	return out, nil
}

// GrantLag summarizes pendency (filing to grant, in days)
type GrantLag struct {
	Overall stats.Summary         `json:"overall"`
	Years   map[int]stats.Summary `json:"years"`
}

// GrantLagAnalysis summarizes pendency per grant year
type GrantLagAnalysis struct{ BaseAnalysis }

func NewGrantLagAnalysis() *GrantLagAnalysis {
	return &GrantLagAnalysis{NewBaseAnalysis("grant_lag", "Grant lag (pendency) in days")}
}

func (a *GrantLagAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []yearValue
	if err := env.DB.Select(ctx, "grant_lag", &rows, `
SELECT u.grant_year AS year, u.lag_days AS value
FROM utility_patent u
WHERE u.lag_days IS NOT NULL AND u.lag_days >= 0 AND `+inRange+`
ORDER BY u.grant_year`, env.yearArgs()...); err != nil {
		return nil, err
	}

	byYear := make(map[int][]float64)
	all := make([]float64, 0, len(rows))
	for _, r := range rows {
		byYear[r.Year] = append(byYear[r.Year], r.Value)
		all = append(all, r.Value)
	}

	out := GrantLag{Overall: stats.Summarize(all), Years: make(map[int]stats.Summary, len(byYear))}
	for year, lags := range byYear {
		out.Years[year] = stats.Summarize(lags)
	}
	return out, nil
}
