package analysis

import (
	"context"
	"math"
	"sort"

	"github.com/jmoiron/sqlx"

	"patentworld/internal/stats"
)

// CitationYear holds mean backward and forward citations of one grant cohort
type CitationYear struct {
	Patents         int64   `json:"patents"`
	BackwardMean    float64 `json:"backward_mean"`
	ForwardMean     float64 `json:"forward_mean"`
	ForwardComplete bool    `json:"forward_complete"`
}

// Citations is the citation-intensity series
type Citations struct {
	Window int                  `json:"window_years"`
	Years  map[int]CitationYear `json:"years"`
}

// CitationsAnalysis averages backward and forward citations per grant year
type CitationsAnalysis struct{ BaseAnalysis }

func NewCitationsAnalysis() *CitationsAnalysis {
	return &CitationsAnalysis{NewBaseAnalysis("citations", "Backward and forward citations")}
}

func (a *CitationsAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []struct {
		Year     int     `db:"year"`
		Patents  int64   `db:"patents"`
		Backward float64 `db:"backward"`
		Forward  float64 `db:"forward"`
	}
	if err := env.DB.Select(ctx, "citations", &rows, `
SELECT u.grant_year AS year,
       COUNT(*) AS patents,
       AVG(COALESCE(b.n, 0)) AS backward,
       AVG(COALESCE(f.fwd, 0)) AS forward
FROM utility_patent u
LEFT JOIN (SELECT patent_id, COUNT(*) AS n FROM citation GROUP BY patent_id) b
       ON b.patent_id = u.patent_id
LEFT JOIN forward_citation_count f ON f.patent_id = u.patent_id
WHERE `+inRange+`
GROUP BY u.grant_year
ORDER BY u.grant_year`, env.yearArgs()...); err != nil {
		return nil, err
	}

	var lastYear *int
	if err := env.DB.Get(ctx, "citations_last_year", &lastYear,
		`SELECT MAX(grant_year) FROM utility_patent`); err != nil {
		return nil, err
	}

	window := env.Config.CitationWindowYears
	out := Citations{Window: window, Years: make(map[int]CitationYear, len(rows))}
	for _, r := range rows {
		out.Years[r.Year] = CitationYear{
			Patents:         r.Patents,
			BackwardMean:    r.Backward,
			ForwardMean:     r.Forward,
			ForwardComplete: lastYear != nil && r.Year+window <= *lastYear,
		}
	}
	return out, nil
}

// impactRow is one patent with its cohort and forward citations
type impactRow struct {
	PatentID string  `db:"patent_id"`
	Year     int     `db:"year"`
	Section  string  `db:"section"`
	Fwd      float64 `db:"fwd"`
}

// cohortScores returns forward-citation z-scores within (section, year) cohorts
func cohortScores(ctx context.Context, env *Env, name string) ([]impactRow, []stats.CohortScore, error) {
	var rows []impactRow
	if err := env.DB.Select(ctx, name, &rows, `
SELECT u.patent_id AS patent_id, u.grant_year AS year, p.section AS section, f.fwd AS fwd
FROM utility_patent u
JOIN primary_cpc p ON p.patent_id = u.patent_id
JOIN forward_citation_count f ON f.patent_id = u.patent_id
WHERE `+inRange+`
ORDER BY u.patent_id`, env.yearArgs()...); err != nil {
		return nil, nil, err
	}

	obs := make([]stats.Observation, len(rows))
	for i, r := range rows {
		obs[i] = stats.Observation{Key: r.PatentID, Cohort: cohortLabel(r.Section, r.Year), Value: r.Fwd}
	}
	return rows, stats.CohortZScores(obs), nil
}

// SectionImpact summarizes cohort-normalized impact of one section
type SectionImpact struct {
	Patents int     `json:"patents"`
	MeanFwd float64 `json:"mean_fwd"`
	MeanZ   float64 `json:"mean_z"`
}

// ImpactPatent is one highly cited patent
type ImpactPatent struct {
	PatentID string  `json:"patent_id"`
	Section  string  `json:"section"`
	Year     int     `json:"year"`
	Fwd      float64 `json:"fwd"`
	Z        float64 `json:"z"`
}

// CitationImpact is the cohort-normalized citation impact
type CitationImpact struct {
	Sections map[string]SectionImpact `json:"sections"`
	Top      []ImpactPatent           `json:"top"`
	// Scores maps patent ID to z for dependent analyses
	Scores map[string]float64 `json:"-"`
}

// CitationImpactAnalysis standardizes forward citations within cohorts
type CitationImpactAnalysis struct{ BaseAnalysis }

func NewCitationImpactAnalysis() *CitationImpactAnalysis {
	return &CitationImpactAnalysis{NewBaseAnalysis("citation_impact", "Cohort-normalized citation impact")}
}

func (a *CitationImpactAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	rows, scores, err := cohortScores(ctx, env, "citation_impact")
	if err != nil {
		return nil, err
	}

	type acc struct {
		n       int
		fwd, z  float64
		finiteZ int
	}
	bySection := make(map[string]*acc)
	out := CitationImpact{
		Sections: make(map[string]SectionImpact),
		Scores:   make(map[string]float64, len(rows)),
	}
	ranked := make([]ImpactPatent, 0, len(rows))

	for i, r := range rows {
		z := scores[i].Z
		out.Scores[r.PatentID] = z
		s, ok := bySection[r.Section]
		if !ok {
			s = &acc{}
			bySection[r.Section] = s
		}
		s.n++
		s.fwd += r.Fwd
		if !math.IsNaN(z) {
			s.z += z
			s.finiteZ++
			ranked = append(ranked, ImpactPatent{PatentID: r.PatentID, Section: r.Section, Year: r.Year, Fwd: r.Fwd, Z: z})
		}
	}

	for section, s := range bySection {
		meanZ := math.NaN()
		if s.finiteZ > 0 {
			meanZ = s.z / float64(s.finiteZ)
		}
		out.Sections[section] = SectionImpact{Patents: s.n, MeanFwd: s.fwd / float64(s.n), MeanZ: meanZ}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Z != ranked[j].Z {
			return ranked[i].Z > ranked[j].Z
		}
		if ranked[i].Fwd != ranked[j].Fwd {
			return ranked[i].Fwd > ranked[j].Fwd
		}
		return ranked[i].PatentID < ranked[j].PatentID
	})
	if len(ranked) > env.Config.TopN {
		ranked = ranked[:env.Config.TopN]
	}
	out.Top = ranked
	return out, nil
}

// InequalityYear is the distribution of forward citations in one cohort
type InequalityYear struct {
	Patents int                 `json:"patents"`
	Gini    float64             `json:"gini"`
	Top1    float64             `json:"top1_share"`
	Lorenz  []stats.LorenzPoint `json:"lorenz"`
}

// CitationInequality is the citation-inequality series
type CitationInequality struct {
	Years map[int]InequalityYear `json:"years"`
}

// CitationInequalityAnalysis computes Gini and Lorenz curves of forward citations
type CitationInequalityAnalysis struct{ BaseAnalysis }

func NewCitationInequalityAnalysis() *CitationInequalityAnalysis {
	return &CitationInequalityAnalysis{NewBaseAnalysis("citation_inequality", "Citation inequality")}
}

func (a *CitationInequalityAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []yearValue
	if err := env.DB.Select(ctx, "citation_inequality", &rows, `
SELECT u.grant_year AS year, f.fwd AS value
FROM utility_patent u
JOIN forward_citation_count f ON f.patent_id = u.patent_id
WHERE `+inRange, env.yearArgs()...); err != nil {
		return nil, err
	}

	byYear := make(map[int][]float64)
	for _, r := range rows {
		byYear[r.Year] = append(byYear[r.Year], r.Value)
	}

	out := CitationInequality{Years: make(map[int]InequalityYear, len(byYear))}
	for year, fwd := range byYear {
		gini, err := stats.Gini(fwd)
		if err != nil {
			return nil, err
		}
		curve, err := stats.Lorenz(fwd, env.Config.LorenzPoints)
		if err != nil {
			return nil, err
		}
		top := int(math.Ceil(float64(len(fwd)) / 100))
		out.Years[year] = InequalityYear{
			Patents: len(fwd),
			Gini:    gini,
			Top1:    stats.TopShare(fwd, top),
			Lorenz:  curve,
		}
	}
	return out, nil
}

// SelfCitationRate is self-citations over citations between assigned patents
type SelfCitationRate struct {
	Citations int64   `json:"citations"`
	Self      int64   `json:"self"`
	Rate      float64 `json:"rate"`
}

// OrgSelfCitation is the self-citation rate of one organization
type OrgSelfCitation struct {
	AssigneeID   string `json:"assignee_id"`
	Organization string `json:"organization"`
	SelfCitationRate
}

// SelfCitation is the self-citation series
type SelfCitation struct {
	Years         map[int]SelfCitationRate `json:"years"`
	Organizations []OrgSelfCitation        `json:"organizations"`
}

// SelfCitationAnalysis measures citations between patents of the same first assignee
type SelfCitationAnalysis struct{ BaseAnalysis }

func NewSelfCitationAnalysis() *SelfCitationAnalysis {
	return &SelfCitationAnalysis{NewBaseAnalysis("self_citation", "Self-citation")}
}

// selfCitationPairs joins citing and cited first assignees; both must be known
const selfCitationPairs = `
FROM citation c
JOIN utility_patent u ON u.patent_id = c.patent_id
JOIN first_assignee ca ON ca.patent_id = c.patent_id
JOIN first_assignee da ON da.patent_id = c.citation_patent_id
WHERE ca.assignee_id IS NOT NULL AND da.assignee_id IS NOT NULL AND `

func (a *SelfCitationAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var years []struct {
		Year      int   `db:"year"`
		Citations int64 `db:"citations"`
		Self      int64 `db:"self"`
	}
	if err := env.DB.Select(ctx, "self_citation", &years, `
SELECT u.grant_year AS year, COUNT(*) AS citations,
       SUM(CASE WHEN ca.assignee_id = da.assignee_id THEN 1 ELSE 0 END) AS self
`+selfCitationPairs+inRange+`
GROUP BY u.grant_year`, env.yearArgs()...); err != nil {
		return nil, err
	}

	out := SelfCitation{Years: make(map[int]SelfCitationRate, len(years))}
	for _, y := range years {
		out.Years[y.Year] = SelfCitationRate{Citations: y.Citations, Self: y.Self, Rate: share(y.Self, y.Citations)}
	}

	top, err := topOrganizations(ctx, env, env.Config.TopN)
	if err != nil {
		return nil, err
	}
	out.Organizations = make([]OrgSelfCitation, 0, len(top))
	if len(top) == 0 {
		return out, nil
	}

	ids := make([]string, len(top))
	for i, t := range top {
		ids[i] = t.AssigneeID
	}
	query, args, err := sqlx.In(`
SELECT ca.assignee_id AS assignee_id, COUNT(*) AS citations,
       SUM(CASE WHEN ca.assignee_id = da.assignee_id THEN 1 ELSE 0 END) AS self
`+selfCitationPairs+inRange+` AND ca.assignee_id IN (?)
GROUP BY ca.assignee_id`, env.Config.MinYear, env.Config.MaxYear, ids)
	if err != nil {
		return nil, err
	}
	var orgs []struct {
		AssigneeID string `db:"assignee_id"`
		Citations  int64  `db:"citations"`
		Self       int64  `db:"self"`
	}
	if err := env.DB.Select(ctx, "self_citation_orgs", &orgs, env.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	byID := make(map[string]SelfCitationRate, len(orgs))
	for _, o := range orgs {
		byID[o.AssigneeID] = SelfCitationRate{Citations: o.Citations, Self: o.Self, Rate: share(o.Self, o.Citations)}
	}

	for _, t := range top {
		rate, ok := byID[t.AssigneeID]
		if !ok {
			rate = SelfCitationRate{Rate: math.NaN()}
		}
		out.Organizations = append(out.Organizations, OrgSelfCitation{
			AssigneeID:       t.AssigneeID,
			Organization:     t.Organization,
			SelfCitationRate: rate,
		})
	}
	return out, nil
}

// GovInterestYear is the share of grants carrying a government-interest statement
type GovInterestYear struct {
	Patents     int64   `json:"patents"`
	GovInterest int64   `json:"gov_interest"`
	Share       float64 `json:"share"`
}

// ImpactGroup is the mean citation impact of a group of patents
type ImpactGroup struct {
	Patents int     `json:"patents"`
	MeanFwd float64 `json:"mean_fwd"`
	MeanZ   float64 `json:"mean_z"`
}

// GovernmentInterest is the government-interest series and impact comparison
type GovernmentInterest struct {
	Years       map[int]GovInterestYear `json:"years"`
	GovInterest ImpactGroup             `json:"gov_interest"`
	Other       ImpactGroup             `json:"other"`
}

// GovernmentInterestAnalysis measures federally funded patents and their impact
type GovernmentInterestAnalysis struct{ BaseAnalysis }

func NewGovernmentInterestAnalysis() *GovernmentInterestAnalysis {
	return &GovernmentInterestAnalysis{NewBaseAnalysis("government_interest", "Government interest", "citation_impact")}
}

func (a *GovernmentInterestAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []struct {
		PatentID string  `db:"patent_id"`
		Year     int     `db:"year"`
		Fwd      float64 `db:"fwd"`
		GI       bool    `db:"gi"`
	}
	if err := env.DB.Select(ctx, "government_interest", &rows, `
SELECT u.patent_id AS patent_id, u.grant_year AS year, COALESCE(f.fwd, 0) AS fwd,
       EXISTS (SELECT 1 FROM gov_interest g WHERE g.patent_id = u.patent_id) AS gi
FROM utility_patent u
LEFT JOIN forward_citation_count f ON f.patent_id = u.patent_id
WHERE `+inRange, env.yearArgs()...); err != nil {
		return nil, err
	}

	var scores map[string]float64
	if impact, ok := ResultAs[CitationImpact](env.Results, "citation_impact"); ok {
		scores = impact.Scores
	} else {
		cohortRows, cs, err := cohortScores(ctx, env, "government_interest_impact")
		if err != nil {
			return nil, err
		}
		scores = make(map[string]float64, len(cohortRows))
		for i, r := range cohortRows {
			scores[r.PatentID] = cs[i].Z
		}
	}

	type acc struct {
		n, zn  int
		fwd, z float64
	}
	var gi, other acc
	out := GovernmentInterest{Years: make(map[int]GovInterestYear)}
	for _, r := range rows {
		y := out.Years[r.Year]
		y.Patents++
		g := &other
		if r.GI {
			y.GovInterest++
			g = &gi
		}
		out.Years[r.Year] = y

		g.n++
		g.fwd += r.Fwd
		if z, ok := scores[r.PatentID]; ok && !math.IsNaN(z) {
			g.z += z
			g.zn++
		}
	}
	for year, y := range out.Years {
		y.Share = share(y.GovInterest, y.Patents)
		out.Years[year] = y
	}

	group := func(a acc) ImpactGroup {
		g := ImpactGroup{Patents: a.n, MeanFwd: math.NaN(), MeanZ: math.NaN()}
		if a.n > 0 {
			g.MeanFwd = a.fwd / float64(a.n)
		}
		if a.zn > 0 {
			g.MeanZ = a.z / float64(a.zn)
		}
		return g
	}
	out.GovInterest = group(gi)
	out.Other = group(other)
	return out, nil
}
