// Package config provides centralized configuration management for PatentWorld.
// It handles loading configuration from multiple sources, validation, and path
// resolution for the batch jobs.
//
// # Configuration Sources
//
// Configuration is assembled in the following order, later sources winning:
//
//	1. Default() values
//	2. YAML file (--config, PW_CONFIG_FILE, patentworld.yaml, configs/patentworld.yaml)
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern PW_<SECTION>_<FIELD>:
//
//	PW_ENGINE_THREADS=8
//	PW_ANALYSIS_MIN_YEAR=1980
//	PW_PATHS_OUTPUT_DIR=/srv/patentworld/public/data
//	PW_LOGGING_LEVEL=debug
//
// # Path Management
//
// ResolvePaths turns the configured (possibly relative) paths into a Paths
// value with absolute locations:
//
//	paths, err := cfg.ResolvePaths("")
//	out := paths.OutputPath("chapter1/patents_per_year.json")
//
// # Validation
//
// Validate checks ranges with go-playground/validator struct tags, for example
// Analysis.MinYear <= Analysis.MaxYear and Engine.Threads in 1..256. Any
// violation is returned as a CONFIG AppError.
package config
