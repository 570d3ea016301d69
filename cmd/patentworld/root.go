package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"patentworld/internal/config"
	"patentworld/internal/engine"
	"patentworld/internal/infrastructure"
	"patentworld/pkg/contracts"
)

// cli holds the flags and the per-run state shared by every subcommand
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	logLevel   string
	dataDir    string
	outDir     string
	dbPath     string

	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	telemetry *infrastructure.Telemetry
	metrics   *infrastructure.BatchMetrics
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "patentworld",
		Short: "Build and audit statistics on US utility patents",
		Long: `patentworld loads the PatentsView granted-patent bulk tables into an
embedded SQL database, computes the published statistics as JSON files, and
audits published numbers against independent recomputations.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default patentworld.yaml or configs/patentworld.yaml)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&c.dataDir, "data-dir", "", "directory holding the PatentsView TSV files")
	flags.StringVar(&c.outDir, "out-dir", "", "directory the JSON outputs are written to")
	flags.StringVar(&c.dbPath, "db", "", "database file")

	root.AddCommand(
		c.loadCommand(),
		c.buildCommand(),
		c.auditCommand(),
		c.listCommand(),
		c.versionCommand(),
	)
	return root
}

// setup loads configuration, applies flag overrides, and starts logging and
// telemetry. Every subcommand runs after it.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}

	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.dataDir != "" {
		cfg.Paths.DataDir = c.dataDir
	}
	if c.outDir != "" {
		cfg.Paths.OutputDir = c.outDir
	}
	if c.dbPath != "" {
		cfg.Paths.Database = c.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	paths, err := cfg.ResolvePaths("")
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	cfg.Logging.FilePath = paths.LogFile

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return err
	}

	ctx := infrastructure.EnsureRunID(cmd.Context())
	cmd.SetContext(ctx)

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, paths, contracts.Version, logger)
	if err != nil {
		return err
	}
	metrics, err := infrastructure.NewBatchMetrics(telemetry.Meter)
	if err != nil {
		telemetry.Shutdown(ctx)
		return err
	}

	c.cfg, c.paths, c.logger = cfg, paths, logger
	c.telemetry, c.metrics = telemetry, metrics

	logger.InfoContext(ctx, "Starting command",
		slog.String("command", cmd.Name()),
		slog.String("version", contracts.Version))
	paths.LogPathResolution(logger)
	return nil
}

// close flushes telemetry and the log file
func (c *cli) close() error {
	var errs []error
	if c.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		errs = append(errs, c.telemetry.Shutdown(ctx))
	}
	errs = append(errs, infrastructure.CloseLogFile())
	return errors.Join(errs...)
}

// openDB opens the configured database in the given mode
func (c *cli) openDB(ctx context.Context, mode engine.Mode) (*engine.DB, error) {
	return engine.Open(ctx, c.paths.Database, engine.OptionsFromConfig(c.cfg.Engine, mode))
}
