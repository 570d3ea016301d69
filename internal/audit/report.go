package audit

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "patentworld/internal/errors"
	"patentworld/internal/exporter"
)

// Report file names inside the report directory
const (
	ReportJSON = "audit_report.json"
	ReportCSV  = "audit_report.csv"
	ReportXLSX = "audit_report.xlsx"
)

// Report summarizes one audit run
type Report struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Database    string        `json:"database"`
	OutputDir   string        `json:"output_dir"`
	Duration    string        `json:"duration"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Errors      int           `json:"errors"`
	Results     []ClaimResult `json:"results"`
}

// NewReport tallies results
func NewReport(runID string, results []ClaimResult) *Report {
	r := &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Total:       len(results),
		Results:     results,
	}
	for _, res := range results {
		switch res.Status {
		case StatusPass:
			r.Passed++
		case StatusFail:
			r.Failed++
		default:
			r.Errors++
		}
	}
	return r
}

// OK reports whether every claim passed
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Errors == 0
}

var reportHeaders = []string{
	"id", "status", "output", "pointer", "metric",
	"published", "expected", "recomputed", "expected_ok", "consistent_ok",
	"tolerance", "relative_tolerance", "error", "description",
}

func (res ClaimResult) row() []string {
	return []string{
		res.ID, res.Status, res.Output, res.Pointer, res.Metric,
		formatFloat(res.Published), formatFloat(res.Expected), formatFloat(res.Recomputed),
		formatBool(res.ExpectedOK), formatBool(res.ConsistentOK),
		strconv.FormatFloat(res.Tolerance, 'g', -1, 64),
		strconv.FormatFloat(res.RelTol, 'g', -1, 64),
		res.Error, res.Description,
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

// WriteReport writes the report as JSON, CSV and an Excel workbook into dir
// and returns the written paths
func WriteReport(dir string, r *Report, decimals int) ([]string, error) {
	res, err := exporter.NewJSONWriter(dir, decimals, nil).WithIndent().Write(ReportJSON, r)
	if err != nil {
		return nil, err
	}
	paths := []string{filepath.Join(dir, res.Path)}

	records := make([][]string, 0, len(r.Results))
	for _, c := range r.Results {
		records = append(records, c.row())
	}
	csvPath, err := exporter.NewCSVWriter(dir).WriteSimpleCSV(ReportCSV, reportHeaders, records)
	if err != nil {
		return nil, err
	}
	paths = append(paths, csvPath)

	xlsxPath := filepath.Join(dir, ReportXLSX)
	if err := writeWorkbook(xlsxPath, r); err != nil {
		return nil, err
	}
	return append(paths, xlsxPath), nil
}

func writeWorkbook(path string, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary, claims = "Summary", "Claims"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return apperrors.NewStorageError("failed to create workbook", err)
	}

	rows := [][]interface{}{
		{"Run ID", r.RunID},
		{"Generated at", r.GeneratedAt.Format(time.RFC3339)},
		{"Database", r.Database},
		{"Output directory", r.OutputDir},
		{"Duration", r.Duration},
		{"Total", r.Total},
		{"Passed", r.Passed},
		{"Failed", r.Failed},
		{"Errors", r.Errors},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return apperrors.NewStorageError("failed to write summary sheet", err)
		}
	}

	if _, err := f.NewSheet(claims); err != nil {
		return apperrors.NewStorageError("failed to create claims sheet", err)
	}
	header := make([]interface{}, len(reportHeaders))
	for i, h := range reportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(claims, "A1", &header); err != nil {
		return apperrors.NewStorageError("failed to write claims header", err)
	}
	for i, res := range r.Results {
		row := make([]interface{}, 0, len(reportHeaders))
		for _, v := range res.row() {
			row = append(row, v)
		}
		// numbers go in as numbers so the sheet can be sorted and charted
		for col, v := range map[int]*float64{5: res.Published, 6: res.Expected, 7: res.Recomputed} {
			if v != nil {
				row[col] = *v
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(claims, cell, &row); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to write claim %s", res.ID), err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.NewStorageError("failed to save workbook", err).WithContext("path", path)
	}
	return nil
}
