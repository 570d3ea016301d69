package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute file system locations for a run
type Paths struct {
	BaseDir     string
	DataDir     string
	OutputDir   string
	Database    string
	LogsDir     string
	LogFile     string
	ReportDir   string
	ClaimsFile  string
	MetricsFile string
	TraceFile   string
}

// ResolvePaths makes every configured path absolute. Relative paths are taken
// relative to baseDir; an empty baseDir means the current working directory.
func (c *Config) ResolvePaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	return &Paths{
		BaseDir:     baseDir,
		DataDir:     abs(c.Paths.DataDir),
		OutputDir:   abs(c.Paths.OutputDir),
		Database:    abs(c.Paths.Database),
		LogsDir:     abs(c.Paths.LogsDir),
		LogFile:     abs(c.Logging.FilePath),
		ReportDir:   abs(c.Paths.ReportDir),
		ClaimsFile:  abs(c.Paths.ClaimsFile),
		MetricsFile: abs(c.Paths.MetricsFile),
		TraceFile:   abs(c.Paths.TraceFile),
	}, nil
}

// EnsureDirectories creates every directory a run may write into
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.OutputDir,
		p.LogsDir,
		p.ReportDir,
		filepath.Dir(p.Database),
	}
	if p.MetricsFile != "" {
		dirs = append(dirs, filepath.Dir(p.MetricsFile))
	}
	if p.TraceFile != "" {
		dirs = append(dirs, filepath.Dir(p.TraceFile))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// OutputPath returns the absolute path of an analysis output
func (p *Paths) OutputPath(rel string) string {
	return filepath.Join(p.OutputDir, filepath.FromSlash(rel))
}

// ReportPath returns the path for an audit report file
func (p *Paths) ReportPath(filename string) string {
	return filepath.Join(p.ReportDir, filename)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("output", p.OutputDir),
			slog.String("logs", p.LogsDir),
			slog.String("reports", p.ReportDir),
		),
		slog.Group("files",
			slog.String("database", p.Database),
			slog.Bool("database_exists", FileExists(p.Database)),
			slog.String("claims", p.ClaimsFile),
			slog.String("metrics", p.MetricsFile),
			slog.String("trace", p.TraceFile),
		))
}

// FileExists reports whether path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
