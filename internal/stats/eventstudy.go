package stats

import (
	"math"

	apperrors "patentworld/internal/errors"
)

// PanelObservation is one entity-year outcome
type PanelObservation struct {
	Entity string
	Year   int
	Value  float64
}

// EventPeriod aggregates outcomes at one period relative to the event year.
// Relative is Mean divided by the t = -1 mean and Delta is Mean minus it; both
// are NaN when the baseline is missing (and Relative when it is zero).
type EventPeriod struct {
	RelTime  int     `json:"rel_time"`
	Count    int     `json:"count"`
	Entities int     `json:"entities"`
	Mean     float64 `json:"mean"`
	SD       float64 `json:"sd"`
	Relative float64 `json:"relative"`
	Delta    float64 `json:"delta"`
}

// EventStudyResult is the relative-time profile around the events
type EventStudyResult struct {
	Window   int           `json:"window"`
	Entities int           `json:"entities"`
	Baseline float64       `json:"baseline"`
	Periods  []EventPeriod `json:"periods"`
}

// EventStudy places every outcome of an entity with an event year on the
// relative time axis t = year - event year, keeps |t| <= window, and returns
// the per-period mean, SD and count, normalized to t = -1. Entities without an
// event and non-finite outcomes are ignored. Every period in the window is
// reported, empty ones with Count 0 and NaN statistics.
func EventStudy(events map[string]int, outcomes []PanelObservation, window int) (EventStudyResult, error) {
	if window < 1 {
		return EventStudyResult{}, apperrors.ErrInvalidInput
	}
	if len(events) == 0 || len(outcomes) == 0 {
		return EventStudyResult{}, apperrors.ErrEmptyInput
	}

	values := make(map[int][]float64)
	entitiesAt := make(map[int]map[string]struct{})
	seen := make(map[string]struct{})

	for _, o := range outcomes {
		eventYear, ok := events[o.Entity]
		if !ok || !isFinite(o.Value) {
			continue
		}
		rel := o.Year - eventYear
		if rel < -window || rel > window {
			continue
		}
		values[rel] = append(values[rel], o.Value)
		if entitiesAt[rel] == nil {
			entitiesAt[rel] = make(map[string]struct{})
		}
		entitiesAt[rel][o.Entity] = struct{}{}
		seen[o.Entity] = struct{}{}
	}

	if len(seen) == 0 {
		return EventStudyResult{}, apperrors.ErrEmptyInput
	}

	baseline := math.NaN()
	if base, ok := values[-1]; ok {
		baseline, _ = Mean(base)
	}

	rels := make([]int, 0, 2*window+1)
	for rel := -window; rel <= window; rel++ {
		rels = append(rels, rel)
	}

	result := EventStudyResult{
		Window:   window,
		Entities: len(seen),
		Baseline: baseline,
		Periods:  make([]EventPeriod, 0, len(rels)),
	}

	for _, rel := range rels {
		vs := values[rel]
		period := EventPeriod{
			RelTime:  rel,
			Count:    len(vs),
			Entities: len(entitiesAt[rel]),
			Mean:     math.NaN(),
			SD:       math.NaN(),
			Relative: math.NaN(),
			Delta:    math.NaN(),
		}
		if len(vs) > 0 {
			period.Mean, _ = Mean(vs)
			period.SD, _ = StdDev(vs)
			if isFinite(baseline) {
				period.Delta = period.Mean - baseline
				if baseline != 0 {
					period.Relative = period.Mean / baseline
				}
			}
		}
		result.Periods = append(result.Periods, period)
	}

	return result, nil
}
