package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"patentworld/internal/analysis"
	"patentworld/internal/audit"
	"patentworld/internal/engine"
	apperrors "patentworld/internal/errors"
	"patentworld/internal/exporter"
	"patentworld/internal/infrastructure"
	"patentworld/internal/patentsview"
	"patentworld/pkg/contracts"
)

func (c *cli) loadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the PatentsView TSV files into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, span := c.telemetry.Tracer.Start(cmd.Context(), "load",
				trace.WithAttributes(attribute.String("data_dir", c.paths.DataDir)))
			defer span.End()
			start := time.Now()

			files, err := patentsview.Discover(c.paths.DataDir, c.logger)
			if err != nil {
				infrastructure.RecordError(ctx, err)
				return err
			}

			db, err := c.openDB(ctx, engine.ModeLoad)
			if err != nil {
				return err
			}
			defer db.Close()

			loaded, err := patentsview.NewLoader(db, c.cfg.Engine.BatchSize, c.metrics, c.logger).LoadAll(ctx, files)
			if err != nil {
				infrastructure.RecordError(ctx, err)
				return err
			}
			if err := db.BuildDerived(ctx, c.cfg.Analysis.CitationWindowYears); err != nil {
				infrastructure.RecordError(ctx, err)
				return err
			}

			rows := make([][]string, 0, len(loaded))
			var total int64
			for _, s := range loaded {
				rows = append(rows, []string{
					s.Table,
					humanize.Comma(s.Rows),
					humanize.Comma(s.Rejected),
					s.Duration.Round(time.Millisecond).String(),
				})
				total += s.Rows
			}
			c.printTable([]string{"table", "rows", "rejected", "duration"}, rows)
			fmt.Fprintf(c.stdout, "Loaded %s rows into %s in %s\n",
				humanize.Comma(total), c.paths.Database, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func (c *cli) buildCommand() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the analyses and write the JSON outputs and manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := c.openDB(ctx, engine.ModeRead)
			if err != nil {
				return err
			}
			defer db.Close()

			ok, err := db.HasTable(ctx, engine.DerivedUtilityPatent)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.NewNotFoundError("derived tables in " + db.Path()).
					WithContext("hint", "run `patentworld load` first")
			}

			env := analysis.NewEnv(db, c.cfg.Analysis, c.logger, infrastructure.GetRunID(ctx))
			writer := exporter.NewJSONWriter(c.paths.OutputDir, c.cfg.Analysis.Decimals, c.logger)
			runner := analysis.NewRunner(analysis.DefaultRegistry(), writer,
				analysis.WithTracer(c.telemetry.Tracer),
				analysis.WithMetrics(c.metrics),
				analysis.WithVersion(contracts.Version))

			manifest, err := runner.Run(ctx, env, only)
			if manifest != nil {
				rows := make([][]string, 0, len(manifest.Entries))
				for _, e := range manifest.Entries {
					size := ""
					if e.Size > 0 {
						size = humanize.Bytes(uint64(e.Size))
					}
					rows = append(rows, []string{e.ID, e.Status, e.Output, size,
						(time.Duration(e.DurationMS) * time.Millisecond).String()})
				}
				c.printTable([]string{"analysis", "status", "output", "size", "duration"}, rows)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Wrote %d outputs and %s to %s\n",
				manifest.Completed(), analysis.ManifestFile, c.paths.OutputDir)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "comma-separated analysis IDs to build (dependencies are included)")
	return cmd
}

func (c *cli) auditCommand() *cobra.Command {
	var claimsFile, reportDir string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check published numbers against claims and independent recomputation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, span := c.telemetry.Tracer.Start(cmd.Context(), "audit")
			defer span.End()

			if claimsFile == "" {
				claimsFile = c.paths.ClaimsFile
			}
			if reportDir == "" {
				reportDir = c.paths.ReportDir
			}

			claims, err := audit.LoadClaims(claimsFile)
			if err != nil {
				return err
			}

			db, err := c.openDB(ctx, engine.ModeRead)
			if err != nil {
				return err
			}
			defer db.Close()

			auditor := audit.NewAuditor(db, c.paths.OutputDir, c.cfg.Audit, c.cfg.Analysis, c.metrics, c.logger)
			report, err := auditor.Run(ctx, claims)
			if err != nil {
				infrastructure.RecordError(ctx, err)
				return err
			}

			written, err := audit.WriteReport(reportDir, report, c.cfg.Analysis.Decimals)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(report.Results))
			for _, r := range report.Results {
				rows = append(rows, []string{r.ID, r.Status, formatValue(r.Published),
					formatValue(r.Expected), formatValue(r.Recomputed), r.Error})
			}
			c.printTable([]string{"claim", "status", "published", "expected", "recomputed", "error"}, rows)
			fmt.Fprintf(c.stdout, "%d claims: %d passed, %d failed, %d errors\n",
				report.Total, report.Passed, report.Failed, report.Errors)
			for _, p := range written {
				fmt.Fprintln(c.stdout, "Report:", p)
			}

			span.SetAttributes(
				attribute.Int("claims", report.Total),
				attribute.Int("failed", report.Failed),
				attribute.Int("errors", report.Errors))

			if !report.OK() {
				return fmt.Errorf("%w: %d failed, %d errors", errClaimsFailed, report.Failed, report.Errors)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&claimsFile, "claims", "", "claims YAML file (default from config)")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "directory for the audit report (default from config)")
	return cmd
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered analyses in build order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ordered, err := analysis.DefaultRegistry().DependencyOrder()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(ordered))
			for _, a := range ordered {
				rows = append(rows, []string{a.ID(), a.Name(),
					filepath.ToSlash(a.Output()), strings.Join(a.Dependencies(), ", ")})
			}
			c.printTable([]string{"id", "name", "output", "depends on"}, rows)
			c.logger.DebugContext(cmd.Context(), "Listed analyses", slog.Int("count", len(ordered)))
			return nil
		},
	}
}

func (c *cli) versionCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// version needs no config, logging or telemetry
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !asJSON {
				fmt.Fprintln(c.stdout, contracts.GetFullVersionString())
				return nil
			}
			data, err := json.MarshalIndent(contracts.GetVersionInfo(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// printTable renders rows with a header. Styling is dropped when stdout is
// not a terminal.
func (c *cli) printTable(headers []string, rows [][]string) {
	r := lipgloss.NewRenderer(c.stdout)
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Faint(true)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	fmt.Fprintln(c.stdout, t.Render())
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return humanize.FtoaWithDigits(*v, 6)
}
