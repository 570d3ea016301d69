package analysis

import (
	"math"
	"sort"
	"strconv"
)

// inRange restricts the utility_patent alias u to the configured years
const inRange = `u.grant_year BETWEEN ? AND ?`

// yearCount is a scanned (year, label, count) row
type yearCount struct {
	Year  int    `db:"year"`
	Label string `db:"label"`
	N     int64  `db:"n"`
}

// yearValue is a scanned (year, value) row
type yearValue struct {
	Year  int     `db:"year"`
	Value float64 `db:"value"`
}

// share returns n/total, NaN when total is zero
func share(n, total int64) float64 {
	if total == 0 {
		return math.NaN()
	}
	return float64(n) / float64(total)
}

// Breakdown is a per-year count and share by category
type Breakdown struct {
	Total  int64              `json:"total"`
	Counts map[string]int64   `json:"counts"`
	Shares map[string]float64 `json:"shares"`
}

// breakdowns folds (year, label, n) rows into per-year breakdowns
func breakdowns(rows []yearCount) map[int]Breakdown {
	out := make(map[int]Breakdown)
	for _, r := range rows {
		b, ok := out[r.Year]
		if !ok {
			b = Breakdown{Counts: map[string]int64{}, Shares: map[string]float64{}}
		}
		b.Counts[r.Label] += r.N
		b.Total += r.N
		out[r.Year] = b
	}
	for _, b := range out {
		for label, n := range b.Counts {
			b.Shares[label] = share(n, b.Total)
		}
	}
	return out
}

// labels returns the distinct labels of rows, sorted
func labels(rows []yearCount) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.Label] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// sortedYears returns the keys of a year-keyed map in ascending order
func sortedYears[V any](m map[int]V) []int {
	years := make([]int, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// countValues returns the counts of a label map as floats, in label order
func countValues(counts map[string]int64) []float64 {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = float64(counts[k])
	}
	return out
}

// cohortLabel identifies a (section, grant year) cohort
func cohortLabel(section string, year int) string {
	return section + "|" + strconv.Itoa(year)
}
