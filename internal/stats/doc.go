// Package stats implements the numeric recipes behind the published PatentWorld
// figures.
//
// Every recipe is a pure function over slices or small value types. Inputs are
// never mutated and no state is shared between calls, so recipes are safe to
// call from concurrent audit workers.
//
// # Recipes
//
//   - descriptive.go: mean, sample SD, type-7 quantiles, Summary, z-scores,
//     cohort z-scores, Pearson correlation
//   - concentration.go: HHI (0..10000), normalized HHI, Shannon entropy
//     (natural log), normalized entropy, Gini, Lorenz curve
//   - ols.go: least squares via QR with within-group demeaning for absorbed
//     fixed effects and CR1 cluster-robust standard errors
//   - logistic.go: three-parameter logistic S-curve by Nelder-Mead NLS
//   - similarity.go: cosine distance and year-over-year exploration index
//   - eventstudy.go: relative-time panel means around an event year
//
// Failures are reported with the sentinel errors of internal/errors
// (ErrEmptyInput, ErrLengthMismatch, ErrSingular, ...) so callers can test them
// with errors.Is.
package stats
