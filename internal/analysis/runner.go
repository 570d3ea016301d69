package analysis

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"patentworld/internal/exporter"
	"patentworld/internal/infrastructure"
)

// Runner executes analyses in dependency order and writes their outputs
type Runner struct {
	registry *Registry
	writer   *exporter.JSONWriter
	tracer   trace.Tracer
	metrics  *infrastructure.BatchMetrics
	version  string
	now      func() time.Time
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithTracer sets the tracer used for per-analysis spans
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = t }
}

// WithMetrics sets the batch metrics instruments
func WithMetrics(m *infrastructure.BatchMetrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithVersion records the build version in the manifest
func WithVersion(v string) RunnerOption {
	return func(r *Runner) { r.version = v }
}

// NewRunner creates a runner over registry writing through writer
func NewRunner(registry *Registry, writer *exporter.JSONWriter, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		writer:   writer,
		tracer:   tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the selected analyses (all when ids is empty) plus their
// dependencies. It stops at the first failure; outputs already written stay in
// place. The manifest is written in every case once planning succeeded.
func (r *Runner) Run(ctx context.Context, env *Env, ids []string) (*Manifest, error) {
	logger := infrastructure.WithComponent(env.Logger, "runner")

	plan, err := r.registry.Plan(ids)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "build",
		trace.WithAttributes(
			attribute.String("run.id", env.RunID),
			attribute.Int("analyses", len(plan)),
		))
	defer span.End()

	manifest := NewManifest(env.RunID, plan)
	manifest.Version = r.version
	manifest.MinYear = env.Config.MinYear
	manifest.MaxYear = env.Config.MaxYear
	if env.DB != nil {
		manifest.Database = env.DB.Path()
	}

	logger.InfoContext(ctx, "Build started",
		slog.Int("analyses", len(plan)),
		slog.Int("min_year", env.Config.MinYear),
		slog.Int("max_year", env.Config.MaxYear))

	var runErr error
	for _, a := range plan {
		if err := ctx.Err(); err != nil {
			manifest.Abort(err)
			runErr = err
			break
		}
		if err := r.runOne(ctx, env, manifest, a, logger); err != nil {
			runErr = err
			break
		}
	}

	manifest.Finish()
	if _, err := manifest.Save(r.writer); err != nil {
		logger.ErrorContext(ctx, "Failed to write manifest", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return manifest, runErr
	}

	logger.InfoContext(ctx, "Build completed",
		slog.Int("completed", manifest.Completed()),
		slog.String("duration", manifest.Duration))
	return manifest, nil
}

func (r *Runner) runOne(ctx context.Context, env *Env, manifest *Manifest, a Analysis, logger *slog.Logger) error {
	ctx, span := r.tracer.Start(ctx, "analysis."+a.ID(),
		trace.WithAttributes(
			attribute.String("analysis.id", a.ID()),
			attribute.String("analysis.output", a.Output()),
		))
	defer span.End()

	logger = logger.With("analysis", a.ID())
	start := time.Now()
	manifest.RecordStart(a.ID())

	fail := func(err error) error {
		duration := time.Since(start)
		manifest.RecordFailure(a.ID(), err)
		r.metrics.RecordAnalysis(ctx, a.ID(), duration, StatusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "Analysis failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", duration))
		return err
	}

	data, err := a.Run(ctx, env)
	if err != nil {
		return fail(err)
	}
	env.Results.Set(a.ID(), data)

	res, err := r.writer.Write(a.Output(), exporter.Envelope{
		Analysis:      a.ID(),
		Title:         a.Name(),
		RunID:         env.RunID,
		GeneratedAt:   r.now().UTC(),
		SchemaVersion: exporter.SchemaVersion,
		Data:          data,
	})
	if err != nil {
		return fail(err)
	}

	duration := time.Since(start)
	manifest.RecordCompletion(a.ID(), res)
	r.metrics.RecordAnalysis(ctx, a.ID(), duration, StatusCompleted)
	span.SetAttributes(attribute.Int64("output.size", res.Size))

	logger.InfoContext(ctx, "Analysis completed",
		slog.String("output", a.Output()),
		infrastructure.Bytes("size", res.Size),
		slog.Duration("duration", duration))
	return nil
}
