package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// BatchMetrics holds the instruments recorded by the load, build and audit jobs
type BatchMetrics struct {
	RowsLoaded       metric.Int64Counter
	RowsRejected     metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	AnalysisRuns     metric.Int64Counter
	AuditChecks      metric.Int64Counter
}

// NewBatchMetrics creates the batch instruments on meter. The exporter adds the
// _total and _seconds suffixes.
func NewBatchMetrics(meter metric.Meter) (*BatchMetrics, error) {
	rowsLoaded, err := meter.Int64Counter(
		"rows_loaded",
		metric.WithDescription("Rows inserted into the database per raw table"),
	)
	if err != nil {
		return nil, err
	}

	rowsRejected, err := meter.Int64Counter(
		"rows_rejected",
		metric.WithDescription("Rows rejected during load per raw table"),
	)
	if err != nil {
		return nil, err
	}

	analysisDuration, err := meter.Float64Histogram(
		"analysis_duration",
		metric.WithDescription("Wall time of one analysis run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600),
	)
	if err != nil {
		return nil, err
	}

	analysisRuns, err := meter.Int64Counter(
		"analysis_runs",
		metric.WithDescription("Analysis runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	auditChecks, err := meter.Int64Counter(
		"audit_checks",
		metric.WithDescription("Audit claim checks by status"),
	)
	if err != nil {
		return nil, err
	}

	return &BatchMetrics{
		RowsLoaded:       rowsLoaded,
		RowsRejected:     rowsRejected,
		AnalysisDuration: analysisDuration,
		AnalysisRuns:     analysisRuns,
		AuditChecks:      auditChecks,
	}, nil
}

// NoopBatchMetrics returns instruments that record nothing
func NoopBatchMetrics() *BatchMetrics {
	m, _ := NewBatchMetrics(metricnoop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

// RecordLoad records the outcome of loading one raw table
func (m *BatchMetrics) RecordLoad(ctx context.Context, table string, loaded, rejected int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("table", table))
	m.RowsLoaded.Add(ctx, loaded, attrs)
	m.RowsRejected.Add(ctx, rejected, attrs)
}

// RecordAnalysis records the duration and outcome of one analysis
func (m *BatchMetrics) RecordAnalysis(ctx context.Context, analysisID string, duration time.Duration, status string) {
	if m == nil {
		return
	}
	m.AnalysisDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("analysis", analysisID)))
	m.AnalysisRuns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("analysis", analysisID), attribute.String("status", status)))
}

// RecordAuditCheck counts one evaluated claim
func (m *BatchMetrics) RecordAuditCheck(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.AuditChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
