package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	apperrors "patentworld/internal/errors"
)

// LogisticFit is a fitted S-curve y = K / (1 + exp(-R (t - T0)))
type LogisticFit struct {
	K         float64 `json:"k"`
	R         float64 `json:"r"`
	T0        float64 `json:"t0"`
	SSE       float64 `json:"sse"`
	R2        float64 `json:"r2"`
	N         int     `json:"n"`
	Converged bool    `json:"converged"`
	Status    string  `json:"status"`
}

// Predict evaluates the fitted curve at t
func (f LogisticFit) Predict(t float64) float64 {
	return logistic(f.K, f.R, f.T0, t)
}

// InflectionYear is the time of fastest growth, T0
func (f LogisticFit) InflectionYear() float64 {
	return f.T0
}

// SaturationShare is y(t)/K, the fraction of the ceiling reached at t
func (f LogisticFit) SaturationShare(t float64) float64 {
	if f.K == 0 {
		return math.NaN()
	}
	return f.Predict(t) / f.K
}

func logistic(k, r, t0, t float64) float64 {
	return k / (1 + math.Exp(-r*(t-t0)))
}

// convergedStatuses are the optimizer outcomes accepted as a converged fit
var convergedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.FunctionConvergence: true,
	optimize.MethodConverge:      true,
	optimize.FunctionThreshold:   true,
	optimize.StepConvergence:     true,
}

// FitLogistic fits a three-parameter logistic curve to (t, y) by nonlinear
// least squares with Nelder-Mead. y is scaled by its maximum and K and R are
// optimized on the log scale so both stay positive. A fit that stops on an
// evaluation or iteration limit is returned with Converged false.
func FitLogistic(t, y []float64) (LogisticFit, error) {
	if len(t) != len(y) {
		return LogisticFit{}, apperrors.ErrLengthMismatch
	}
	if len(t) < 3 {
		return LogisticFit{}, fmt.Errorf("logistic fit needs at least 3 points: %w", apperrors.ErrEmptyInput)
	}

	yMax := 0.0
	for i := range t {
		if !isFinite(t[i]) || !isFinite(y[i]) || y[i] < 0 {
			return LogisticFit{}, apperrors.ErrInvalidInput
		}
		yMax = math.Max(yMax, y[i])
	}
	if yMax == 0 {
		return LogisticFit{}, fmt.Errorf("all-zero series: %w", apperrors.ErrInvalidInput)
	}

	// STEP 1: scale the series and centre time
	tMean := stat.Mean(t, nil)
	tc := make([]float64, len(t))
	ys := make([]float64, len(y))
	for i := range t {
		tc[i] = t[i] - tMean
		ys[i] = y[i] / yMax
	}

	// STEP 2: data-driven starting values
	k0, r0, t00 := logisticStart(tc, ys)

	sse := func(x []float64) float64 {
		k, r, t0 := math.Exp(x[0]), math.Exp(x[1]), x[2]
		total := 0.0
		for i := range tc {
			d := ys[i] - logistic(k, r, t0, tc[i])
			total += d * d
		}
		if !isFinite(total) {
			return math.MaxFloat64
		}
		return total
	}

	// STEP 3: minimize the scaled SSE
	problem := optimize.Problem{Func: sse}
	settings := &optimize.Settings{
		FuncEvaluations: 20000,
		MajorIterations: 5000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-12,
			Iterations: 200,
		},
	}
	result, err := optimize.Minimize(problem, []float64{math.Log(k0), math.Log(r0), t00}, settings, &optimize.NelderMead{})
	if err != nil && result == nil {
		return LogisticFit{}, fmt.Errorf("%v: %w", err, apperrors.ErrNoConvergence)
	}

	k := math.Exp(result.X[0]) * yMax
	r := math.Exp(result.X[1])
	t0 := result.X[2] + tMean
	if !isFinite(k) || !isFinite(r) || !isFinite(t0) {
		return LogisticFit{}, apperrors.ErrNoConvergence
	}

	// STEP 4: fit statistics on the original scale
	fit := LogisticFit{
		K:         k,
		R:         r,
		T0:        t0,
		N:         len(t),
		Converged: err == nil && convergedStatuses[result.Status],
		Status:    result.Status.String(),
	}

	yBar := stat.Mean(y, nil)
	sst := 0.0
	for i := range t {
		d := y[i] - fit.Predict(t[i])
		fit.SSE += d * d
		sst += (y[i] - yBar) * (y[i] - yBar)
	}
	fit.R2 = math.NaN()
	if sst > 0 {
		fit.R2 = 1 - fit.SSE/sst
	}

	return fit, nil
}

// logisticStart guesses (K, r, t0) for scaled, centred data. K starts above the
// observed maximum; r and t0 come from a linear fit of the logit transform.
func logisticStart(tc, ys []float64) (k0, r0, t00 float64) {
	k0 = 1.5

	var lt, lz []float64
	for i := range tc {
		if ys[i] > 0 && ys[i] < k0 {
			lt = append(lt, tc[i])
			lz = append(lz, math.Log(ys[i]/(k0-ys[i])))
		}
	}

	if len(lt) >= 2 {
		alpha, beta := stat.LinearRegression(lt, lz, nil, false)
		if beta > 0 && isFinite(alpha) && isFinite(beta) {
			return k0, beta, -alpha / beta
		}
	}

	sorted := sortedCopy(tc)
	return k0, 0.5, quantileSorted(sorted, 0.5)
}
