package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "patentworld/internal/errors"
)

// rankTolerance is the relative size below which a diagonal element of R is
// treated as zero.
const rankTolerance = 1e-10

// OLSOptions controls fixed effects, intercept and variance estimation
type OLSOptions struct {
	// Names labels the columns of X; missing names become x1, x2, ...
	Names []string
	// Intercept adds a constant column. Ignored when Absorb is set.
	Intercept bool
	// Absorb holds one fixed-effect group label per row. y and X are demeaned
	// within groups before fitting.
	Absorb []string
	// Cluster holds one cluster label per row. When set, standard errors are
	// CR1 cluster-robust.
	Cluster []string
}

// OLSResult holds coefficient estimates and fit statistics
type OLSResult struct {
	Names    []string  `json:"names"`
	Coef     []float64 `json:"coef"`
	SE       []float64 `json:"se"`
	T        []float64 `json:"t"`
	N        int       `json:"n"`
	K        int       `json:"k"`
	Groups   int       `json:"absorbed_groups,omitempty"`
	Clusters int       `json:"clusters,omitempty"`
	// R2 is the within R² when fixed effects are absorbed
	R2      float64 `json:"r2"`
	SEType  string  `json:"se_type"`
	ResidSD float64 `json:"resid_sd"`
}

// Coefficient returns the estimate and SE of the named regressor
func (r OLSResult) Coefficient(name string) (coef, se float64, ok bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Coef[i], r.SE[i], true
		}
	}
	return 0, 0, false
}

// OLS regresses y on the rows of X by least squares through a QR factorization.
func OLS(y []float64, X [][]float64, opts OLSOptions) (OLSResult, error) {
	n := len(y)
	if n == 0 {
		return OLSResult{}, apperrors.ErrEmptyInput
	}
	if len(X) != n {
		return OLSResult{}, apperrors.ErrLengthMismatch
	}
	if opts.Absorb != nil && len(opts.Absorb) != n {
		return OLSResult{}, fmt.Errorf("absorb labels: %w", apperrors.ErrLengthMismatch)
	}
	if opts.Cluster != nil && len(opts.Cluster) != n {
		return OLSResult{}, fmt.Errorf("cluster labels: %w", apperrors.ErrLengthMismatch)
	}

	p := len(X[0])
	for _, row := range X {
		if len(row) != p {
			return OLSResult{}, apperrors.ErrLengthMismatch
		}
		for _, v := range row {
			if !isFinite(v) {
				return OLSResult{}, apperrors.ErrInvalidInput
			}
		}
	}
	for _, v := range y {
		if !isFinite(v) {
			return OLSResult{}, apperrors.ErrInvalidInput
		}
	}

	names := make([]string, 0, p+1)
	intercept := opts.Intercept && opts.Absorb == nil
	if intercept {
		names = append(names, "(intercept)")
	}
	for j := 0; j < p; j++ {
		if j < len(opts.Names) && opts.Names[j] != "" {
			names = append(names, opts.Names[j])
		} else {
			names = append(names, fmt.Sprintf("x%d", j+1))
		}
	}
	k := len(names)
	if k == 0 {
		return OLSResult{}, fmt.Errorf("no regressors: %w", apperrors.ErrEmptyInput)
	}

	// STEP 1: assemble the design, demeaning within absorbed groups
	yv := make([]float64, n)
	copy(yv, y)
	design := make([]float64, 0, n*k)
	for _, row := range X {
		if intercept {
			design = append(design, 1)
		}
		design = append(design, row...)
	}

	groups := 0
	if opts.Absorb != nil {
		groups = demeanWithin(opts.Absorb, yv, design, k)
	}

	dof := n - k - groups
	if opts.Absorb == nil {
		dof = n - k
	}
	if dof <= 0 {
		return OLSResult{}, fmt.Errorf("%d observations for %d parameters: %w", n, k+groups, apperrors.ErrSingular)
	}

	xm := mat.NewDense(n, k, design)
	ym := mat.NewDense(n, 1, yv)

	// STEP 2: QR factorization with a rank check on R
	var qr mat.QR
	qr.Factorize(xm)

	var r mat.Dense
	qr.RTo(&r)
	maxDiag := 0.0
	for j := 0; j < k; j++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(j, j)))
	}
	for j := 0; j < k; j++ {
		if maxDiag == 0 || math.Abs(r.At(j, j)) <= rankTolerance*maxDiag {
			return OLSResult{}, apperrors.ErrSingular
		}
	}

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, ym); err != nil {
		return OLSResult{}, fmt.Errorf("%v: %w", err, apperrors.ErrSingular)
	}

	// STEP 3: residuals and fit
	var fitted mat.Dense
	fitted.Mul(xm, &beta)
	resid := make([]float64, n)
	ssr := 0.0
	for i := 0; i < n; i++ {
		resid[i] = yv[i] - fitted.At(i, 0)
		ssr += resid[i] * resid[i]
	}

	yBar := 0.0
	if opts.Absorb == nil {
		for _, v := range yv {
			yBar += v
		}
		yBar /= float64(n)
	}
	sst := 0.0
	for _, v := range yv {
		d := v - yBar
		sst += d * d
	}
	r2 := math.NaN()
	if sst > 0 {
		r2 = 1 - ssr/sst
	}

	// STEP 4: (X'X)^-1
	var xtx, bread mat.Dense
	xtx.Mul(xm.T(), xm)
	if err := bread.Inverse(&xtx); err != nil {
		return OLSResult{}, fmt.Errorf("%v: %w", err, apperrors.ErrSingular)
	}

	// STEP 5: variance estimate
	result := OLSResult{
		Names:   names,
		Coef:    make([]float64, k),
		SE:      make([]float64, k),
		T:       make([]float64, k),
		N:       n,
		K:       k,
		Groups:  groups,
		R2:      r2,
		ResidSD: math.Sqrt(ssr / float64(dof)),
	}

	var vcov *mat.Dense
	if opts.Cluster != nil {
		v, g, err := clusterVCov(xm, &bread, resid, opts.Cluster, n, k)
		if err != nil {
			return OLSResult{}, err
		}
		vcov = v
		result.Clusters = g
		result.SEType = "cluster_cr1"
	} else {
		sigma2 := ssr / float64(dof)
		var v mat.Dense
		v.Scale(sigma2, &bread)
		vcov = &v
		result.SEType = "classical"
	}

	for j := 0; j < k; j++ {
		result.Coef[j] = beta.At(j, 0)
		result.SE[j] = math.Sqrt(math.Max(vcov.At(j, j), 0))
		if result.SE[j] > 0 {
			result.T[j] = result.Coef[j] / result.SE[j]
		} else {
			result.T[j] = math.NaN()
		}
	}

	return result, nil
}

// demeanWithin subtracts group means from y and every column of the row-major
// design in place and returns the number of groups.
func demeanWithin(labels []string, y, design []float64, k int) int {
	index := make(map[string]int)
	for _, l := range labels {
		if _, ok := index[l]; !ok {
			index[l] = len(index)
		}
	}
	g := len(index)

	counts := make([]float64, g)
	ySum := make([]float64, g)
	xSum := make([]float64, g*k)
	for i, l := range labels {
		gi := index[l]
		counts[gi]++
		ySum[gi] += y[i]
		for j := 0; j < k; j++ {
			xSum[gi*k+j] += design[i*k+j]
		}
	}

	for i, l := range labels {
		gi := index[l]
		y[i] -= ySum[gi] / counts[gi]
		for j := 0; j < k; j++ {
			design[i*k+j] -= xSum[gi*k+j] / counts[gi]
		}
	}
	return g
}

// clusterVCov returns the CR1 sandwich
// (X'X)^-1 (sum_g X_g' u_g u_g' X_g) (X'X)^-1 * G/(G-1) * (N-1)/(N-K).
func clusterVCov(xm, bread *mat.Dense, resid []float64, labels []string, n, k int) (*mat.Dense, int, error) {
	scores := make(map[string][]float64)
	order := make([]string, 0)
	for i, l := range labels {
		s, ok := scores[l]
		if !ok {
			s = make([]float64, k)
			scores[l] = s
			order = append(order, l)
		}
		for j := 0; j < k; j++ {
			s[j] += xm.At(i, j) * resid[i]
		}
	}

	g := len(order)
	if g < 2 {
		return nil, g, apperrors.ErrInsufficientClusters
	}

	meat := mat.NewDense(k, k, nil)
	for _, l := range order {
		s := mat.NewVecDense(k, scores[l])
		var outer mat.Dense
		outer.Outer(1, s, s)
		meat.Add(meat, &outer)
	}

	var tmp, v mat.Dense
	tmp.Mul(bread, meat)
	v.Mul(&tmp, bread)

	correction := float64(g) / float64(g-1) * float64(n-1) / float64(n-k)
	v.Scale(correction, &v)
	return &v, g, nil
}
