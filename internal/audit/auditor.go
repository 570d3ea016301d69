package audit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-openapi/jsonpointer"
	"golang.org/x/sync/errgroup"

	"patentworld/internal/config"
	"patentworld/internal/engine"
	apperrors "patentworld/internal/errors"
	"patentworld/internal/exporter"
	"patentworld/internal/infrastructure"
)

// Claim result statuses
const (
	StatusPass  = "pass"
	StatusFail  = "fail"
	StatusError = "error"
)

// ClaimResult is the outcome of checking one claim
type ClaimResult struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Output      string   `json:"output"`
	Pointer     string   `json:"pointer"`
	Metric      string   `json:"metric,omitempty"`
	Published   *float64 `json:"published"`
	Expected    *float64 `json:"expected"`
	Recomputed  *float64 `json:"recomputed"`
	Tolerance   float64  `json:"tolerance"`
	RelTol      float64  `json:"relative_tolerance"`
	// ExpectedOK and ConsistentOK are nil when the check was not requested
	ExpectedOK   *bool  `json:"expected_ok"`
	ConsistentOK *bool  `json:"consistent_ok"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// Auditor checks claims against the published outputs and the raw tables
type Auditor struct {
	db        *engine.DB
	outputDir string
	cfg       config.AuditConfig
	scope     Scope
	metrics   *infrastructure.BatchMetrics
	logger    *slog.Logger

	mu   sync.Mutex
	docs map[string]*document
}

// document is a lazily read output file shared by concurrent checks
type document struct {
	once sync.Once
	doc  interface{}
	err  error
}

// NewAuditor creates an auditor reading outputs from outputDir. db should be
// opened read-only.
func NewAuditor(db *engine.DB, outputDir string, cfg config.AuditConfig, analysis config.AnalysisConfig,
	metrics *infrastructure.BatchMetrics, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		db:        db,
		outputDir: outputDir,
		cfg:       cfg,
		scope: Scope{
			MinYear:     analysis.MinYear,
			MaxYear:     analysis.MaxYear,
			WindowYears: analysis.CitationWindowYears,
		},
		metrics: metrics,
		logger:  infrastructure.WithComponent(logger, "audit"),
		docs:    make(map[string]*document),
	}
}

// Run checks every claim, at most cfg.Concurrency at a time. Claim-level
// problems become status error; only cancellation aborts the run. The report
// carries the run ID from ctx.
func (a *Auditor) Run(ctx context.Context, claims []Claim) (*Report, error) {
	start := time.Now()
	results := make([]ClaimResult, len(claims))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.cfg.Concurrency))

	for i := range claims {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.check(gctx, claims[i])
			a.metrics.RecordAuditCheck(gctx, results[i].Status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.NewAuditError("audit interrupted", err)
	}

	report := NewReport(infrastructure.GetRunID(ctx), results)
	report.Database = a.db.Path()
	report.OutputDir = a.outputDir
	report.Duration = time.Since(start).String()

	a.logger.InfoContext(ctx, "Audit completed",
		infrastructure.Count("claims", int64(report.Total)),
		infrastructure.Count("passed", int64(report.Passed)),
		infrastructure.Count("failed", int64(report.Failed)),
		infrastructure.Count("errors", int64(report.Errors)),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

func (a *Auditor) check(ctx context.Context, c Claim) ClaimResult {
	start := time.Now()
	res := ClaimResult{
		ID:          c.ID,
		Description: c.Description,
		Output:      c.Output,
		Pointer:     c.Pointer,
		Expected:    c.Expected,
		Tolerance:   a.cfg.Tolerance,
		RelTol:      a.cfg.RelativeTolerance,
	}
	if c.Tolerance != nil {
		res.Tolerance = *c.Tolerance
	}
	if c.RelativeTolerance != nil {
		res.RelTol = *c.RelativeTolerance
	}
	if c.Recompute != nil {
		res.Metric = c.Recompute.Metric
	}

	fail := func(err error) ClaimResult {
		res.Status = StatusError
		res.Error = err.Error()
		a.logger.WarnContext(ctx, "Claim could not be checked",
			slog.String("claim", c.ID),
			slog.String("error", err.Error()))
		res.DurationMS = time.Since(start).Milliseconds()
		return res
	}

	published, err := a.published(c.Output, c.Pointer)
	if err != nil {
		return fail(err)
	}
	res.Published = &published

	ok := true
	if c.Expected != nil {
		match := Within(published, *c.Expected, res.Tolerance, res.RelTol)
		res.ExpectedOK = &match
		ok = ok && match
	}

	if c.Recompute != nil {
		recompute, found := LookupRecomputer(c.Recompute.Metric)
		if !found {
			return fail(apperrors.NewNotFoundError("recompute metric " + c.Recompute.Metric))
		}
		value, err := recompute(ctx, a.db, a.scope, Params(c.Recompute.Params))
		if err != nil {
			return fail(fmt.Errorf("recompute %s: %w", c.Recompute.Metric, err))
		}
		res.Recomputed = &value
		match := Within(published, value, res.Tolerance, res.RelTol)
		res.ConsistentOK = &match
		ok = ok && match
	}

	res.Status = StatusPass
	if !ok {
		res.Status = StatusFail
		a.logger.WarnContext(ctx, "Claim failed",
			slog.String("claim", c.ID),
			slog.Float64("published", published))
	}
	res.DurationMS = time.Since(start).Milliseconds()
	return res
}

// published resolves pointer in the output file as a number
func (a *Auditor) published(output, pointer string) (float64, error) {
	doc, err := a.document(output)
	if err != nil {
		return 0, err
	}

	p, err := jsonpointer.New(pointer)
	if err != nil {
		return 0, apperrors.NewAppValidationError("invalid pointer " + pointer)
	}
	v, _, err := p.Get(doc)
	if err != nil {
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("%s in %s", pointer, output))
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case nil:
		return 0, apperrors.NewAuditError(fmt.Sprintf("%s in %s is null", pointer, output), nil)
	default:
		return 0, apperrors.NewAuditError(fmt.Sprintf("%s in %s is %T, not a number", pointer, output, v), nil)
	}
}

// document reads each output file once, however many claims point into it
func (a *Auditor) document(output string) (interface{}, error) {
	a.mu.Lock()
	d, ok := a.docs[output]
	if !ok {
		d = &document{}
		a.docs[output] = d
	}
	a.mu.Unlock()

	d.once.Do(func() {
		d.doc, d.err = exporter.ReadJSON(filepath.Join(a.outputDir, filepath.FromSlash(output)))
	})
	return d.doc, d.err
}

// Within reports whether got matches want within the absolute tolerance or
// the relative tolerance, whichever is looser
func Within(got, want, tol, relTol float64) bool {
	if math.IsNaN(got) || math.IsNaN(want) {
		return false
	}
	diff := math.Abs(got - want)
	if diff <= tol {
		return true
	}
	return diff <= relTol*math.Max(math.Abs(got), math.Abs(want))
}
