package analysis

import (
	"context"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	apperrors "patentworld/internal/errors"
	"patentworld/internal/stats"
)

// AssigneeRank is one organization in a top-N list
type AssigneeRank struct {
	Rank         int     `json:"rank"`
	AssigneeID   string  `json:"assignee_id"`
	Organization string  `json:"organization"`
	Patents      int64   `json:"patents"`
	Share        float64 `json:"share"`
}

type assigneeCount struct {
	Bucket       int    `db:"bucket"`
	AssigneeID   string `db:"assignee_id"`
	Organization string `db:"organization"`
	N            int64  `db:"n"`
}

// rankAssignees orders by count descending then name, and keeps the first n
func rankAssignees(rows []assigneeCount, n int, total int64) []AssigneeRank {
	sorted := make([]assigneeCount, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].N != sorted[j].N {
			return sorted[i].N > sorted[j].N
		}
		if sorted[i].Organization != sorted[j].Organization {
			return sorted[i].Organization < sorted[j].Organization
		}
		return sorted[i].AssigneeID < sorted[j].AssigneeID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]AssigneeRank, len(sorted))
	for i, r := range sorted {
		out[i] = AssigneeRank{
			Rank:         i + 1,
			AssigneeID:   r.AssigneeID,
			Organization: r.Organization,
			Patents:      r.N,
			Share:        share(r.N, total),
		}
	}
	return out
}

// topOrganizations returns the n organizations with the most first-assigned
// utility patents in the configured years
func topOrganizations(ctx context.Context, env *Env, n int) ([]AssigneeRank, error) {
	var rows []assigneeCount
	if err := env.DB.Select(ctx, "top_organizations", &rows, `
SELECT 0 AS bucket, fa.assignee_id AS assignee_id, MIN(fa.organization) AS organization, COUNT(*) AS n
FROM first_assignee fa
JOIN utility_patent u ON u.patent_id = fa.patent_id
WHERE fa.assignee_id IS NOT NULL AND fa.organization IS NOT NULL AND `+inRange+`
GROUP BY fa.assignee_id`, env.yearArgs()...); err != nil {
		return nil, err
	}

	var total int64
	if err := env.DB.Get(ctx, "top_organizations_total", &total,
		`SELECT COUNT(*) FROM utility_patent u WHERE `+inRange, env.yearArgs()...); err != nil {
		return nil, err
	}
	return rankAssignees(rows, n, total), nil
}

// TopAssignees lists the leading organizations overall and per decade
type TopAssignees struct {
	Overall []AssigneeRank         `json:"overall"`
	Decades map[int][]AssigneeRank `json:"decades"`
}

// TopAssigneesAnalysis ranks organizations by first-assigned patents
type TopAssigneesAnalysis struct{ BaseAnalysis }

func NewTopAssigneesAnalysis() *TopAssigneesAnalysis {
	return &TopAssigneesAnalysis{NewBaseAnalysis("top_assignees", "Top assignee organizations")}
}

func (a *TopAssigneesAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	overall, err := topOrganizations(ctx, env, env.Config.TopN)
	if err != nil {
		return nil, err
	}

	var rows []assigneeCount
	if err := env.DB.Select(ctx, "top_assignees_decade", &rows, `
SELECT (u.grant_year / 10) * 10 AS bucket, fa.assignee_id AS assignee_id,
       MIN(fa.organization) AS organization, COUNT(*) AS n
FROM first_assignee fa
JOIN utility_patent u ON u.patent_id = fa.patent_id
WHERE fa.assignee_id IS NOT NULL AND fa.organization IS NOT NULL AND `+inRange+`
GROUP BY bucket, fa.assignee_id`, env.yearArgs()...); err != nil {
		return nil, err
	}

	var totals []struct {
		Bucket int   `db:"bucket"`
		N      int64 `db:"n"`
	}
	if err := env.DB.Select(ctx, "top_assignees_decade_total", &totals, `
SELECT (u.grant_year / 10) * 10 AS bucket, COUNT(*) AS n
FROM utility_patent u
WHERE `+inRange+`
GROUP BY bucket`, env.yearArgs()...); err != nil {
		return nil, err
	}

	byDecade := make(map[int][]assigneeCount)
	for _, r := range rows {
		byDecade[r.Bucket] = append(byDecade[r.Bucket], r)
	}

	out := TopAssignees{Overall: overall, Decades: make(map[int][]AssigneeRank)}
	for _, t := range totals {
		out.Decades[t.Bucket] = rankAssignees(byDecade[t.Bucket], env.Config.TopN, t.N)
	}
	return out, nil
}

// AssigneeConcentrationYear is market concentration among organizations
type AssigneeConcentrationYear struct {
	Assignees    int     `json:"assignees"`
	Patents      int64   `json:"patents"`
	HHI          float64 `json:"hhi"`
	Top10Share   float64 `json:"top10_share"`
	LargestShare float64 `json:"largest_share"`
}

// AssigneeConcentration is organization concentration per grant year
type AssigneeConcentration struct {
	Years map[int]AssigneeConcentrationYear `json:"years"`
}

// AssigneeConcentrationAnalysis computes organization HHI per year
type AssigneeConcentrationAnalysis struct{ BaseAnalysis }

func NewAssigneeConcentrationAnalysis() *AssigneeConcentrationAnalysis {
	return &AssigneeConcentrationAnalysis{NewBaseAnalysis("assignee_concentration", "Assignee concentration")}
}

func (a *AssigneeConcentrationAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []yearCount
	if err := env.DB.Select(ctx, "assignee_concentration", &rows, `
SELECT u.grant_year AS year, fa.assignee_id AS label, COUNT(*) AS n
FROM first_assignee fa
JOIN utility_patent u ON u.patent_id = fa.patent_id
WHERE fa.assignee_id IS NOT NULL AND `+inRange+`
GROUP BY u.grant_year, fa.assignee_id`, env.yearArgs()...); err != nil {
		return nil, err
	}

	out := AssigneeConcentration{Years: make(map[int]AssigneeConcentrationYear)}
	for year, b := range breakdowns(rows) {
		counts := countValues(b.Counts)
		out.Years[year] = AssigneeConcentrationYear{
			Assignees:    len(counts),
			Patents:      b.Total,
			HHI:          stats.HHI(counts),
			Top10Share:   stats.TopShare(counts, 10),
			LargestShare: stats.TopShare(counts, 1),
		}
	}
	return out, nil
}

// assigneeTypeLabel maps PatentsView assignee_type codes to categories.
// Codes 11-19 mark part interests and share the category of code mod 10.
func assigneeTypeLabel(code *int64) string {
	if code == nil {
		return "unassigned"
	}
	switch *code % 10 {
	case 1:
		return "unassigned"
	case 2:
		return "us_company"
	case 3:
		return "foreign_company"
	case 4:
		return "us_individual"
	case 5:
		return "foreign_individual"
	case 6:
		return "us_government"
	case 7:
		return "foreign_government"
	case 8, 9:
		return "us_local_government"
	default:
		return "other"
	}
}

// AssigneeTypes is the ownership mix per grant year
type AssigneeTypes struct {
	Categories []string          `json:"categories"`
	Years      map[int]Breakdown `json:"years"`
}

// AssigneeTypesAnalysis shares patents by first-assignee category
type AssigneeTypesAnalysis struct{ BaseAnalysis }

func NewAssigneeTypesAnalysis() *AssigneeTypesAnalysis {
	return &AssigneeTypesAnalysis{NewBaseAnalysis("assignee_types", "Assignee types")}
}

func (a *AssigneeTypesAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []struct {
		Year int    `db:"year"`
		Code *int64 `db:"code"`
		N    int64  `db:"n"`
	}
	if err := env.DB.Select(ctx, "assignee_types", &rows, `
SELECT u.grant_year AS year, fa.assignee_type AS code, COUNT(*) AS n
FROM utility_patent u
LEFT JOIN first_assignee fa ON fa.patent_id = u.patent_id
WHERE `+inRange+`
GROUP BY u.grant_year, fa.assignee_type`, env.yearArgs()...); err != nil {
		return nil, err
	}

	counts := make([]yearCount, len(rows))
	for i, r := range rows {
		counts[i] = yearCount{Year: r.Year, Label: assigneeTypeLabel(r.Code), N: r.N}
	}
	return AssigneeTypes{Categories: labels(counts), Years: breakdowns(counts)}, nil
}

// orgYearSubclass is a scanned (assignee, year, subclass, n) row
type orgYearSubclass struct {
	AssigneeID string `db:"assignee_id"`
	Year       int    `db:"year"`
	Section    string `db:"section"`
	Subclass   string `db:"subclass"`
	N          int64  `db:"n"`
}

func orgPortfolios(ctx context.Context, env *Env, name string, orgs []AssigneeRank) ([]orgYearSubclass, error) {
	if len(orgs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(orgs))
	for i, o := range orgs {
		ids[i] = o.AssigneeID
	}

	query, args, err := sqlx.In(`
SELECT fa.assignee_id AS assignee_id, u.grant_year AS year,
       p.section AS section, COALESCE(p.subclass, p.section) AS subclass, COUNT(*) AS n
FROM first_assignee fa
JOIN utility_patent u ON u.patent_id = fa.patent_id
JOIN primary_cpc p ON p.patent_id = fa.patent_id
WHERE fa.assignee_id IN (?) AND `+inRange+`
GROUP BY fa.assignee_id, u.grant_year, p.section, subclass
ORDER BY fa.assignee_id, u.grant_year`, ids, env.Config.MinYear, env.Config.MaxYear)
	if err != nil {
		return nil, apperrors.NewQueryError(name, err)
	}

	var rows []orgYearSubclass
	if err := env.DB.Select(ctx, name, &rows, env.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// OrgYear is one organization's portfolio in one year
type OrgYear struct {
	Patents           int64   `json:"patents"`
	Subclasses        int     `json:"subclasses"`
	NormalizedEntropy float64 `json:"normalized_entropy"`
	HHI               float64 `json:"hhi"`
}

// OrgDiversificationEntry is the portfolio history of one organization
type OrgDiversificationEntry struct {
	AssigneeID   string                   `json:"assignee_id"`
	Organization string                   `json:"organization"`
	Patents      int64                    `json:"patents"`
	Years        map[int]OrgYear          `json:"years"`
	Exploration  []stats.ExplorationPoint `json:"exploration"`
}

// OrgDiversification covers the top-N organizations
type OrgDiversification struct {
	Organizations []OrgDiversificationEntry `json:"organizations"`
}

// OrgDiversificationAnalysis measures portfolio breadth and drift
type OrgDiversificationAnalysis struct{ BaseAnalysis }

func NewOrgDiversificationAnalysis() *OrgDiversificationAnalysis {
	return &OrgDiversificationAnalysis{NewBaseAnalysis("org_diversification", "Organization diversification")}
}

func (a *OrgDiversificationAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	orgs, err := topOrganizations(ctx, env, env.Config.TopN)
	if err != nil {
		return nil, err
	}
	rows, err := orgPortfolios(ctx, env, "org_diversification", orgs)
	if err != nil {
		return nil, err
	}

	vectors := make(map[string]map[int]stats.SparseVector)
	for _, r := range rows {
		if vectors[r.AssigneeID] == nil {
			vectors[r.AssigneeID] = make(map[int]stats.SparseVector)
		}
		if vectors[r.AssigneeID][r.Year] == nil {
			vectors[r.AssigneeID][r.Year] = stats.SparseVector{}
		}
		vectors[r.AssigneeID][r.Year][r.Subclass] += float64(r.N)
	}

	out := OrgDiversification{Organizations: make([]OrgDiversificationEntry, 0, len(orgs))}
	for _, org := range orgs {
		entry := OrgDiversificationEntry{
			AssigneeID:   org.AssigneeID,
			Organization: org.Organization,
			Patents:      org.Patents,
			Years:        make(map[int]OrgYear),
		}

		series := vectors[org.AssigneeID]
		for year, vec := range series {
			counts := make([]float64, 0, len(vec))
			var total int64
			for _, c := range vec {
				counts = append(counts, c)
				total += int64(c)
			}
			entry.Years[year] = OrgYear{
				Patents:           total,
				Subclasses:        len(vec),
				NormalizedEntropy: stats.NormalizedEntropy(counts),
				HHI:               stats.HHI(counts),
			}
		}

		if len(series) > 0 {
			points, err := stats.ExplorationIndex(series)
			if err != nil {
				return nil, apperrors.NewNumericError("exploration index", err).
					WithContext("assignee_id", org.AssigneeID)
			}
			entry.Exploration = points
		}
		out.Organizations = append(out.Organizations, entry)
	}
	return out, nil
}

// SectionEntry is one organization entering a CPC section it never patented in
type SectionEntry struct {
	AssigneeID   string `json:"assignee_id"`
	Organization string `json:"organization"`
	Section      string `json:"section"`
	Year         int    `json:"year"`
}

// SectionEntryEventStudy is the patenting profile around section entries
type SectionEntryEventStudy struct {
	Window  int                    `json:"window"`
	Events  []SectionEntry         `json:"events"`
	Profile stats.EventStudyResult `json:"profile"`
}

// SectionEntryEventStudyAnalysis runs an event study around section entries
type SectionEntryEventStudyAnalysis struct{ BaseAnalysis }

func NewSectionEntryEventStudyAnalysis() *SectionEntryEventStudyAnalysis {
	return &SectionEntryEventStudyAnalysis{NewBaseAnalysis("section_entry_event_study", "Section entry event study")}
}

func (a *SectionEntryEventStudyAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	window := env.Config.EventWindow
	orgs, err := topOrganizations(ctx, env, env.Config.TopN)
	if err != nil {
		return nil, err
	}
	rows, err := orgPortfolios(ctx, env, "section_entry_event_study", orgs)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(orgs))
	for _, o := range orgs {
		names[o.AssigneeID] = o.Organization
	}

	firstYear := make(map[string]int)
	firstInSection := make(map[string]map[string]int)
	yearly := make(map[string]map[int]float64)
	for _, r := range rows {
		if y, ok := firstYear[r.AssigneeID]; !ok || r.Year < y {
			firstYear[r.AssigneeID] = r.Year
		}
		if firstInSection[r.AssigneeID] == nil {
			firstInSection[r.AssigneeID] = make(map[string]int)
		}
		if y, ok := firstInSection[r.AssigneeID][r.Section]; !ok || r.Year < y {
			firstInSection[r.AssigneeID][r.Section] = r.Year
		}
		if yearly[r.AssigneeID] == nil {
			yearly[r.AssigneeID] = make(map[int]float64)
		}
		yearly[r.AssigneeID][r.Year] += float64(r.N)
	}

	// Entries in an organization's first active year are its starting portfolio
	events := make(map[string]int)
	out := SectionEntryEventStudy{Window: window, Events: []SectionEntry{}}
	for _, org := range orgs {
		for section, year := range firstInSection[org.AssigneeID] {
			if year == firstYear[org.AssigneeID] {
				continue
			}
			events[org.AssigneeID+"|"+section] = year
			out.Events = append(out.Events, SectionEntry{
				AssigneeID:   org.AssigneeID,
				Organization: names[org.AssigneeID],
				Section:      section,
				Year:         year,
			})
		}
	}
	sort.Slice(out.Events, func(i, j int) bool {
		ei, ej := out.Events[i], out.Events[j]
		if ei.Year != ej.Year {
			return ei.Year < ej.Year
		}
		if ei.AssigneeID != ej.AssigneeID {
			return ei.AssigneeID < ej.AssigneeID
		}
		return ei.Section < ej.Section
	})

	// Each event gets the organization's full yearly series; inactive years count as zero
	var outcomes []stats.PanelObservation
	for _, e := range out.Events {
		key := e.AssigneeID + "|" + e.Section
		for y := e.Year - window; y <= e.Year+window; y++ {
			if y < env.Config.MinYear || y > env.Config.MaxYear {
				continue
			}
			outcomes = append(outcomes, stats.PanelObservation{
				Entity: key,
				Year:   y,
				Value:  yearly[e.AssigneeID][y],
			})
		}
	}

	profile, err := stats.EventStudy(events, outcomes, window)
	switch {
	case errors.Is(err, apperrors.ErrEmptyInput):
		profile = stats.EventStudyResult{Window: window, Periods: []stats.EventPeriod{}}
	case err != nil:
		return nil, apperrors.NewNumericError("event study", err)
	}
	out.Profile = profile
	return out, nil
}
