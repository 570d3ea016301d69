package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "patentworld/internal/errors"
)

// EnvPrefix namespaces every environment override, e.g. PW_ENGINE_THREADS.
const EnvPrefix = "PW"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Engine    EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Audit     AuditConfig     `yaml:"audit" envconfig:"AUDIT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration. Relative paths are
// resolved against the working directory by ResolvePaths.
type PathsConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	Database    string `yaml:"database" envconfig:"DATABASE" validate:"required"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
	ReportDir   string `yaml:"report_dir" envconfig:"REPORT_DIR" validate:"required"`
	ClaimsFile  string `yaml:"claims_file" envconfig:"CLAIMS_FILE"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	TraceFile   string `yaml:"trace_file" envconfig:"TRACE_FILE"`
}

// EngineConfig tunes the embedded SQL engine
type EngineConfig struct {
	Threads     int `yaml:"threads" envconfig:"THREADS" validate:"min=1,max=256"`
	CacheSizeMB int `yaml:"cache_size_mb" envconfig:"CACHE_SIZE_MB" validate:"min=1,max=65536"`
	BatchSize   int `yaml:"batch_size" envconfig:"BATCH_SIZE" validate:"min=1,max=1000000"`
}

// AnalysisConfig scopes and shapes the published statistics
type AnalysisConfig struct {
	MinYear             int `yaml:"min_year" envconfig:"MIN_YEAR" validate:"min=1790,ltefield=MaxYear"`
	MaxYear             int `yaml:"max_year" envconfig:"MAX_YEAR" validate:"max=2100"`
	TopN                int `yaml:"top_n" envconfig:"TOP_N" validate:"min=1,max=1000"`
	Decimals            int `yaml:"decimals" envconfig:"DECIMALS" validate:"min=0,max=12"`
	CitationWindowYears int `yaml:"citation_window_years" envconfig:"CITATION_WINDOW_YEARS" validate:"min=1,max=20"`
	EventWindow         int `yaml:"event_window" envconfig:"EVENT_WINDOW" validate:"min=1,max=20"`
	LorenzPoints        int `yaml:"lorenz_points" envconfig:"LORENZ_POINTS" validate:"min=2,max=1001"`
}

// AuditConfig controls claim checking
type AuditConfig struct {
	Concurrency       int     `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1,max=64"`
	Tolerance         float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"min=0"`
	RelativeTolerance float64 `yaml:"relative_tolerance" envconfig:"RELATIVE_TOLERANCE" validate:"min=0,max=1"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TracesEnabled  bool   `yaml:"traces_enabled" envconfig:"TRACES_ENABLED"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Default returns a complete configuration with every field set
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/patentworld.log",
		},
		Paths: PathsConfig{
			DataDir:     "data/raw",
			OutputDir:   "public/data",
			Database:    "data/patentworld.db",
			LogsDir:     "logs",
			ReportDir:   "audit",
			ClaimsFile:  "claims.yaml",
			MetricsFile: "data/patentworld.prom",
			TraceFile:   "",
		},
		Engine: EngineConfig{
			Threads:     4,
			CacheSizeMB: 512,
			BatchSize:   50000,
		},
		Analysis: AnalysisConfig{
			MinYear:             1976,
			MaxYear:             2025,
			TopN:                50,
			Decimals:            6,
			CitationWindowYears: 5,
			EventWindow:         5,
			LorenzPoints:        11,
		},
		Audit: AuditConfig{
			Concurrency:       4,
			Tolerance:         1e-6,
			RelativeTolerance: 0.001,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "patentworld",
			Environment:    "local",
			TracesEnabled:  false,
			MetricsEnabled: true,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file (explicit
// path, or the first well-known file found), then PW_* environment variables.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	} else if !FileExists(configFile) {
		return nil, apperrors.NewConfigError(fmt.Sprintf("config file %s does not exist", configFile), nil)
	}

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).
				WithContext("file", configFile)
		}
	}

	// Fields without a matching variable keep their file or default value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// getConfigFilePath returns the first existing well-known config file, or ""
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	for _, candidate := range []string{"patentworld.yaml", "configs/patentworld.yaml"} {
		if FileExists(candidate) {
			return candidate
		}
	}
	return ""
}

var validate = validator.New()

// Validate checks struct tags and returns a CONFIG error listing every violation
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewConfigError("config validation failed", err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s=%s, got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return apperrors.NewConfigError("config validation failed: "+strings.Join(fields, "; "), err).
		WithContext("fields", fields)
}
