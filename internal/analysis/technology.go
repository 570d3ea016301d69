package analysis

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"patentworld/internal/stats"
)

const sectionCountsQuery = `
SELECT u.grant_year AS year, p.section AS label, COUNT(*) AS n
FROM utility_patent u
JOIN primary_cpc p ON p.patent_id = u.patent_id
WHERE ` + inRange + `
GROUP BY u.grant_year, p.section
ORDER BY u.grant_year, p.section`

// CPCSections is the primary-section mix per grant year
type CPCSections struct {
	Sections []string          `json:"sections"`
	Years    map[int]Breakdown `json:"years"`
}

// CPCSectionsAnalysis counts primary CPC sections per year
type CPCSectionsAnalysis struct{ BaseAnalysis }

func NewCPCSectionsAnalysis() *CPCSectionsAnalysis {
	return &CPCSectionsAnalysis{NewBaseAnalysis("cpc_sections", "Primary CPC sections")}
}

func (a *CPCSectionsAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []yearCount
	if err := env.DB.Select(ctx, "cpc_sections", &rows, sectionCountsQuery, env.yearArgs()...); err != nil {
		return nil, err
	}
	return CPCSections{Sections: labels(rows), Years: breakdowns(rows)}, nil
}

// Concentration describes how evenly counts spread over categories
type Concentration struct {
	Categories        int     `json:"categories"`
	HHI               float64 `json:"hhi"`
	NormalizedHHI     float64 `json:"normalized_hhi"`
	Entropy           float64 `json:"entropy"`
	NormalizedEntropy float64 `json:"normalized_entropy"`
}

func concentrationOf(counts []float64) Concentration {
	k := 0
	for _, c := range counts {
		if c > 0 {
			k++
		}
	}
	return Concentration{
		Categories:        k,
		HHI:               stats.HHI(counts),
		NormalizedHHI:     stats.NormalizedHHI(counts),
		Entropy:           stats.ShannonEntropy(counts),
		NormalizedEntropy: stats.NormalizedEntropy(counts),
	}
}

// CPCConcentration is technological concentration per grant year
type CPCConcentration struct {
	Years map[int]Concentration `json:"years"`
}

// CPCConcentrationAnalysis computes HHI and entropy of section shares
type CPCConcentrationAnalysis struct{ BaseAnalysis }

func NewCPCConcentrationAnalysis() *CPCConcentrationAnalysis {
	return &CPCConcentrationAnalysis{NewBaseAnalysis("cpc_concentration", "Technology concentration")}
}

func (a *CPCConcentrationAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []yearCount
	if err := env.DB.Select(ctx, "cpc_concentration", &rows, sectionCountsQuery, env.yearArgs()...); err != nil {
		return nil, err
	}

	out := CPCConcentration{Years: make(map[int]Concentration)}
	for year, b := range breakdowns(rows) {
		out.Years[year] = concentrationOf(countValues(b.Counts))
	}
	return out, nil
}

// WIPOYear is the WIPO sector and field mix of one grant year
type WIPOYear struct {
	Total   int64            `json:"total"`
	Sectors map[string]int64 `json:"sectors"`
	Fields  map[string]int64 `json:"fields"`
}

// WIPOFields is the WIPO technology mix per grant year
type WIPOFields struct {
	Sectors []string         `json:"sectors"`
	Fields  []string         `json:"fields"`
	Years   map[int]WIPOYear `json:"years"`
}

// WIPOFieldsAnalysis counts primary WIPO fields per year
type WIPOFieldsAnalysis struct{ BaseAnalysis }

func NewWIPOFieldsAnalysis() *WIPOFieldsAnalysis {
	return &WIPOFieldsAnalysis{NewBaseAnalysis("wipo_fields", "WIPO technology fields")}
}

func (a *WIPOFieldsAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	var rows []struct {
		Year   int    `db:"year"`
		Sector string `db:"sector"`
		Field  string `db:"field"`
		N      int64  `db:"n"`
	}
	if err := env.DB.Select(ctx, "wipo_fields", &rows, `
SELECT u.grant_year AS year,
       COALESCE(w.wipo_sector_title, 'Unknown') AS sector,
       COALESCE(w.wipo_field_title, 'Unknown')  AS field,
       COUNT(DISTINCT u.patent_id) AS n
FROM utility_patent u
JOIN wipo w ON w.patent_id = u.patent_id
WHERE COALESCE(w.wipo_field_sequence, 0) = 0 AND `+inRange+`
GROUP BY u.grant_year, sector, field
ORDER BY u.grant_year, sector, field`, env.yearArgs()...); err != nil {
		return nil, err
	}

	out := WIPOFields{Years: make(map[int]WIPOYear)}
	sectors := map[string]struct{}{}
	fields := map[string]struct{}{}
	for _, r := range rows {
		y, ok := out.Years[r.Year]
		if !ok {
			y = WIPOYear{Sectors: map[string]int64{}, Fields: map[string]int64{}}
		}
		y.Total += r.N
		y.Sectors[r.Sector] += r.N
		y.Fields[r.Field] += r.N
		out.Years[r.Year] = y
		sectors[r.Sector] = struct{}{}
		fields[r.Field] = struct{}{}
	}
	for s := range sectors {
		out.Sectors = append(out.Sectors, s)
	}
	for f := range fields {
		out.Fields = append(out.Fields, f)
	}
	sort.Strings(out.Sectors)
	sort.Strings(out.Fields)
	return out, nil
}

// SCurve is the logistic fit of one section's cumulative grants
type SCurve struct {
	Years      []int              `json:"years"`
	Cumulative []float64          `json:"cumulative"`
	Fit        *stats.LogisticFit `json:"fit"`
	Inflection float64            `json:"inflection_year"`
	Saturation float64            `json:"saturation_share"`
	Error      string             `json:"error,omitempty"`
}

// TechnologySCurves holds one S-curve per primary section
type TechnologySCurves struct {
	Sections map[string]SCurve `json:"sections"`
}

// TechnologySCurvesAnalysis fits logistic curves to cumulative section counts
type TechnologySCurvesAnalysis struct{ BaseAnalysis }

func NewTechnologySCurvesAnalysis() *TechnologySCurvesAnalysis {
	return &TechnologySCurvesAnalysis{NewBaseAnalysis("technology_scurves", "Technology S-curves", "cpc_sections")}
}

func (a *TechnologySCurvesAnalysis) Run(ctx context.Context, env *Env) (interface{}, error) {
	sections, ok := ResultAs[CPCSections](env.Results, "cpc_sections")
	if !ok {
		var rows []yearCount
		if err := env.DB.Select(ctx, "technology_scurves", &rows, sectionCountsQuery, env.yearArgs()...); err != nil {
			return nil, err
		}
		sections = CPCSections{Sections: labels(rows), Years: breakdowns(rows)}
	}

	years := sortedYears(sections.Years)
	out := TechnologySCurves{Sections: make(map[string]SCurve, len(sections.Sections))}

	for _, section := range sections.Sections {
		curve := SCurve{
			Years:      make([]int, 0, len(years)),
			Cumulative: make([]float64, 0, len(years)),
			Inflection: math.NaN(),
			Saturation: math.NaN(),
		}
		ts := make([]float64, 0, len(years))
		cum := 0.0
		for _, y := range years {
			cum += float64(sections.Years[y].Counts[section])
			curve.Years = append(curve.Years, y)
			curve.Cumulative = append(curve.Cumulative, cum)
			ts = append(ts, float64(y))
		}

		fit, err := stats.FitLogistic(ts, curve.Cumulative)
		if err != nil {
			curve.Error = err.Error()
			env.Logger.DebugContext(ctx, "S-curve not fitted",
				slog.String("section", section),
				slog.String("error", err.Error()))
		} else {
			curve.Fit = &fit
			curve.Inflection = fit.InflectionYear()
			curve.Saturation = fit.SaturationShare(ts[len(ts)-1])
		}
		out.Sections[section] = curve
	}
	return out, nil
}
