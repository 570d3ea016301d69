package analysis

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"

	apperrors "patentworld/internal/errors"
	"patentworld/internal/stats"
)

// TeamSizeYear summarizes inventor team sizes of one grant year
type TeamSizeYear struct {
	Patents   int     `json:"patents"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	P90       float64 `json:"p90"`
	Max       float64 `json:"max"`
	SoloShare float64 `json:"solo_share"`
}

// TeamSize is the team-size series
type TeamSize struct {
	OverallMean float64              `json:"overall_mean"`
	Years       map[int]TeamSizeYear `json:"years"`
}

// TeamSizeAnalysis summarizes inventors per patent
type TeamSizeAnalysis struct{ BaseAnalysis }

func NewTeamSizeAnalysis() *TeamSizeAnalysis {
	return &TeamSizeAnalysis{NewBaseAnalysis("team_size", "Inventor team size")}
}

func (a *TeamSizeAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []yearValue
	if err := env.DB.Select(ctx, "team_size", &rows, `
SELECT u.grant_year AS year, t.team_size AS value
FROM utility_patent u
JOIN team t ON t.patent_id = u.patent_id
WHERE `+inRange, env.yearArgs()...); err != nil {
		return nil, err
	}

	byYear := make(map[int][]float64)
	all := make([]float64, 0, len(rows))
	for _, r := range rows {
		byYear[r.Year] = append(byYear[r.Year], r.Value)
		all = append(all, r.Value)
	}

	out := TeamSize{OverallMean: stats.Summarize(all).Mean, Years: make(map[int]TeamSizeYear, len(byYear))}
	for year, sizes := range byYear {
		s := stats.Summarize(sizes)
		solo := 0
		for _, v := range sizes {
			if v == 1 {
				solo++
			}
		}
		out.Years[year] = TeamSizeYear{
			Patents:   s.N,
			Mean:      s.Mean,
			Median:    s.Median,
			P90:       s.P90,
			Max:       s.Max,
			SoloShare: share(int64(solo), int64(s.N)),
		}
	}
	return out, nil
}

// GenderYear counts inventor records by gender in one grant year
type GenderYear struct {
	Female           int64   `json:"female"`
	Male             int64   `json:"male"`
	Unknown          int64   `json:"unknown"`
	FemaleShare      float64 `json:"female_share"`
	PatentsWithWoman int64   `json:"patents_with_woman"`
	PatentsKnown     int64   `json:"patents_known"`
	ShareWithWoman   float64 `json:"share_with_woman"`
}

// InventorGender is the gender series
type InventorGender struct {
	Years map[int]GenderYear `json:"years"`
}

// InventorGenderAnalysis measures the female share of inventors
type InventorGenderAnalysis struct{ BaseAnalysis }

func NewInventorGenderAnalysis() *InventorGenderAnalysis {
	return &InventorGenderAnalysis{NewBaseAnalysis("inventor_gender", "Inventor gender")}
}

func (a *InventorGenderAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []struct {
		Year    int   `db:"year"`
		Female  int64 `db:"female"`
		Male    int64 `db:"male"`
		Unknown int64 `db:"unknown"`
	}
	if err := env.DB.Select(ctx, "inventor_gender", &rows, `
SELECT u.grant_year AS year,
       SUM(CASE WHEN upper(i.gender_code) = 'F' THEN 1 ELSE 0 END) AS female,
       SUM(CASE WHEN upper(i.gender_code) = 'M' THEN 1 ELSE 0 END) AS male,
       SUM(CASE WHEN upper(COALESCE(i.gender_code, '')) NOT IN ('F', 'M') THEN 1 ELSE 0 END) AS unknown
FROM inventor i
JOIN utility_patent u ON u.patent_id = i.patent_id
WHERE `+inRange+`
GROUP BY u.grant_year`, env.yearArgs()...); err != nil {
		return nil, err
	}

	var teams []struct {
		Year      int   `db:"year"`
		WithWoman int64 `db:"with_woman"`
		Known     int64 `db:"known"`
	}
	if err := env.DB.Select(ctx, "inventor_gender_teams", &teams, `
SELECT year, SUM(has_f) AS with_woman, COUNT(*) AS known
FROM (
    SELECT u.grant_year AS year, i.patent_id,
           MAX(CASE WHEN upper(i.gender_code) = 'F' THEN 1 ELSE 0 END) AS has_f
    FROM inventor i
    JOIN utility_patent u ON u.patent_id = i.patent_id
    WHERE upper(i.gender_code) IN ('F', 'M') AND `+inRange+`
    GROUP BY u.grant_year, i.patent_id
)
GROUP BY year`, env.yearArgs()...); err != nil {
		return nil, err
	}

	out := InventorGender{Years: make(map[int]GenderYear, len(rows))}
	for _, r := range rows {
		out.Years[r.Year] = GenderYear{
			Female:         r.Female,
			Male:           r.Male,
			Unknown:        r.Unknown,
			FemaleShare:    share(r.Female, r.Female+r.Male),
			ShareWithWoman: math.NaN(),
		}
	}
	for _, t := range teams {
		g := out.Years[t.Year]
		g.PatentsWithWoman = t.WithWoman
		g.PatentsKnown = t.Known
		g.ShareWithWoman = share(t.WithWoman, t.Known)
		out.Years[t.Year] = g
	}
	return out, nil
}

// otherCountry labels countries outside the top-N
const otherCountry = "other"

// Geography is first-inventor country shares per grant year
type Geography struct {
	Countries []string          `json:"countries"`
	Years     map[int]Breakdown `json:"years"`
}

// GeographyAnalysis shares patents by first-inventor country
type GeographyAnalysis struct{ BaseAnalysis }

func NewGeographyAnalysis() *GeographyAnalysis {
	return &GeographyAnalysis{NewBaseAnalysis("geography", "Inventor geography")}
}

func (a *GeographyAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []yearCount
	if err := env.DB.Select(ctx, "geography", &rows, `
SELECT u.grant_year AS year, upper(f.country) AS label, COUNT(*) AS n
FROM first_inventor_country f
JOIN utility_patent u ON u.patent_id = f.patent_id
WHERE `+inRange+`
GROUP BY u.grant_year, upper(f.country)`, env.yearArgs()...); err != nil {
		return nil, err
	}

	totals := make(map[string]int64)
	for _, r := range rows {
		totals[r.Label] += r.N
	}
	ranked := make([]string, 0, len(totals))
	for c := range totals {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if totals[ranked[i]] != totals[ranked[j]] {
			return totals[ranked[i]] > totals[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > env.Config.TopN {
		ranked = ranked[:env.Config.TopN]
	}
	top := make(map[string]bool, len(ranked))
	for _, c := range ranked {
		top[c] = true
	}

	folded := make([]yearCount, len(rows))
	hasOther := false
	for i, r := range rows {
		folded[i] = r
		if !top[r.Label] {
			folded[i].Label = otherCountry
			hasOther = true
		}
	}
	if hasOther {
		ranked = append(ranked, otherCountry)
	}
	return Geography{Countries: ranked, Years: breakdowns(folded)}, nil
}

// Regression is one fitted specification, or the reason it could not be fitted
type Regression struct {
	Specification string           `json:"specification"`
	Estimated     bool             `json:"estimated"`
	Reason        string           `json:"reason,omitempty"`
	Result        *stats.OLSResult `json:"result"`
}

// TeamSizeRegression relates team size to citation impact
type TeamSizeRegression struct {
	Outcome string       `json:"outcome"`
	Models  []Regression `json:"models"`
}

// TeamSizeRegressionAnalysis regresses log(1 + fwd) on team size and claims
type TeamSizeRegressionAnalysis struct{ BaseAnalysis }

func NewTeamSizeRegressionAnalysis() *TeamSizeRegressionAnalysis {
	return &TeamSizeRegressionAnalysis{NewBaseAnalysis("team_size_regression", "Team size and citation impact")}
}

func (a *TeamSizeRegressionAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []struct {
		Year     int     `db:"year"`
		Section  string  `db:"section"`
		TeamSize float64 `db:"team_size"`
		Claims   float64 `db:"claims"`
		Fwd      float64 `db:"fwd"`
	}
	if err := env.DB.Select(ctx, "team_size_regression", &rows, `
SELECT u.grant_year AS year, p.section AS section, t.team_size AS team_size,
       u.num_claims AS claims, f.fwd AS fwd
FROM utility_patent u
JOIN team t ON t.patent_id = u.patent_id
JOIN primary_cpc p ON p.patent_id = u.patent_id
JOIN forward_citation_count f ON f.patent_id = u.patent_id
WHERE u.num_claims IS NOT NULL AND `+inRange, env.yearArgs()...); err != nil {
		return nil, err
	}

	y := make([]float64, len(rows))
	X := make([][]float64, len(rows))
	cohorts := make([]string, len(rows))
	clusters := make([]string, len(rows))
	for i, r := range rows {
		y[i] = math.Log1p(r.Fwd)
		X[i] = []float64{r.TeamSize, r.Claims}
		cohorts[i] = cohortLabel(r.Section, r.Year)
		clusters[i] = strconv.Itoa(r.Year)
	}
	names := []string{"team_size", "num_claims"}

	specs := []struct {
		name string
		opts stats.OLSOptions
	}{
		{"pooled, clustered by grant year", stats.OLSOptions{Names: names, Intercept: true, Cluster: clusters}},
		{"section x year fixed effects, clustered by grant year", stats.OLSOptions{Names: names, Absorb: cohorts, Cluster: clusters}},
	}

	out := TeamSizeRegression{Outcome: "log(1 + forward citations)", Models: make([]Regression, 0, len(specs))}
	for _, spec := range specs {
		model := Regression{Specification: spec.name}
		res, err := stats.OLS(y, X, spec.opts)
		switch {
		case err == nil:
			model.Estimated = true
			model.Result = &res
		case isDataLimited(err):
			model.Reason = err.Error()
		default:
			return nil, apperrors.NewNumericError("team size regression", err)
		}
		out.Models = append(out.Models, model)
	}
	return out, nil
}

// isDataLimited reports numeric errors caused by too little or degenerate data
func isDataLimited(err error) bool {
	return errors.Is(err, apperrors.ErrEmptyInput) ||
		errors.Is(err, apperrors.ErrSingular) ||
		errors.Is(err, apperrors.ErrInsufficientClusters) ||
		errors.Is(err, apperrors.ErrInvalidInput)
}
