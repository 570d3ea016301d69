package analysis

import (
	"context"
	"log/slog"
	"sync"

	"patentworld/internal/config"
	"patentworld/internal/engine"
)

// Analysis is one published statistic family. Run queries the database and
// returns the value written under the envelope's data key.
type Analysis interface {
	// ID is the unique identifier, also used in manifest entries and metrics
	ID() string
	// Name is the human-readable title
	Name() string
	// Output is the JSON path relative to the output directory
	Output() string
	// Dependencies lists analyses whose results Run reads from Env.Results
	Dependencies() []string
	Run(ctx context.Context, env *Env) (interface{}, error)
}

// Env carries everything an analysis run needs
type Env struct {
	DB      *engine.DB
	Config  config.AnalysisConfig
	Logger  *slog.Logger
	RunID   string
	Results *Results
}

// NewEnv creates an environment with an empty result store
func NewEnv(db *engine.DB, cfg config.AnalysisConfig, logger *slog.Logger, runID string) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{DB: db, Config: cfg, Logger: logger, RunID: runID, Results: NewResults()}
}

// yearArgs binds the configured grant-year range
func (e *Env) yearArgs() []interface{} {
	return []interface{}{e.Config.MinYear, e.Config.MaxYear}
}

// Results holds the in-run results of completed analyses
type Results struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewResults creates an empty result store
func NewResults() *Results {
	return &Results{values: make(map[string]interface{})}
}

// Set stores the result of an analysis
func (r *Results) Set(id string, v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[id] = v
}

// Get returns the stored result of an analysis
func (r *Results) Get(id string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[id]
	return v, ok
}

// ResultAs returns the stored result of id if it has type T
func ResultAs[T any](r *Results, id string) (T, bool) {
	var zero T
	v, ok := r.Get(id)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// BaseAnalysis provides the descriptive half of Analysis
type BaseAnalysis struct {
	id           string
	name         string
	output       string
	dependencies []string
}

// NewBaseAnalysis creates a base whose output is "<id>.json"
func NewBaseAnalysis(id, name string, dependencies ...string) BaseAnalysis {
	return BaseAnalysis{id: id, name: name, output: id + ".json", dependencies: dependencies}
}

func (b BaseAnalysis) ID() string   { return b.id }
func (b BaseAnalysis) Name() string { return b.name }
func (b BaseAnalysis) Output() string {
	return b.output
}

// Dependencies returns a copy of the dependency list
func (b BaseAnalysis) Dependencies() []string {
	deps := make([]string, len(b.dependencies))
	copy(deps, b.dependencies)
	return deps
}
