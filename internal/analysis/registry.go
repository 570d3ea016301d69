package analysis

import (
	"fmt"
	"sync"

	apperrors "patentworld/internal/errors"
)

// Registry manages registered analyses
type Registry struct {
	mu       sync.RWMutex
	analyses map[string]Analysis
	order    []string // registration order
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		analyses: make(map[string]Analysis),
		order:    make([]string, 0),
	}
}

// Register adds an analysis to the registry
func (r *Registry) Register(a Analysis) error {
	if a == nil {
		return apperrors.NewAppValidationError("cannot register nil analysis")
	}

	id := a.ID()
	if id == "" {
		return apperrors.NewAppValidationError("analysis ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.analyses[id]; exists {
		return apperrors.NewAppValidationError(fmt.Sprintf("analysis %s already registered", id))
	}

	r.analyses[id] = a
	r.order = append(r.order, id)
	return nil
}

// MustRegister registers every analysis and panics on error
func (r *Registry) MustRegister(analyses ...Analysis) *Registry {
	for _, a := range analyses {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Get retrieves an analysis by ID
func (r *Registry) Get(id string) (Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.analyses[id]
	if !exists {
		return nil, apperrors.NewNotFoundError("analysis " + id)
	}
	return a, nil
}

// Has checks if an analysis is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.analyses[id]
	return exists
}

// List returns all registered analyses in registration order
func (r *Registry) List() []Analysis {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Analysis, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.analyses[id])
	}
	return out
}

// ListIDs returns all registered IDs in registration order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of registered analyses
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.analyses)
}

// DependencyOrder returns every analysis ordered so that dependencies come
// first, with registration order as tie-break.
func (r *Registry) DependencyOrder() ([]Analysis, error) {
	return r.Plan(nil)
}

// Plan returns the analyses selected by ids plus their transitive
// dependencies, in dependency order. Empty ids selects everything.
func (r *Registry) Plan(ids []string) ([]Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selected, err := r.closure(ids)
	if err != nil {
		return nil, err
	}

	// Build dependency graph over the selection
	graph := make(map[string][]string)
	inDegree := make(map[string]int)
	for id := range selected {
		graph[id] = []string{}
		inDegree[id] = 0
	}
	for id := range selected {
		for _, dep := range r.analyses[id].Dependencies() {
			graph[dep] = append(graph[dep], id)
			inDegree[id]++
		}
	}

	// Kahn's algorithm, releasing ready analyses in registration order
	queue := make([]string, 0)
	for _, id := range r.order {
		if _, ok := selected[id]; ok && inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]Analysis, 0, len(selected))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, r.analyses[current])

		ready := make(map[string]bool)
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready[dependent] = true
			}
		}
		for _, id := range r.order {
			if ready[id] {
				queue = append(queue, id)
			}
		}
	}

	if len(ordered) != len(selected) {
		return nil, apperrors.NewAppValidationError("dependency cycle detected among analyses")
	}
	return ordered, nil
}

// closure expands ids with transitive dependencies, checking every ID exists
func (r *Registry) closure(ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		ids = r.order
	}

	selected := make(map[string]struct{})
	var visit func(id, from string) error
	visit = func(id, from string) error {
		if _, done := selected[id]; done {
			return nil
		}
		a, ok := r.analyses[id]
		if !ok {
			if from != "" {
				return apperrors.NewAppValidationError(
					fmt.Sprintf("analysis %s depends on unknown analysis %s", from, id))
			}
			return apperrors.NewNotFoundError("analysis " + id)
		}
		selected[id] = struct{}{}
		for _, dep := range a.Dependencies() {
			if err := visit(dep, id); err != nil {
				return err
			}
		}
		return nil
	}

	for _, id := range ids {
		if err := visit(id, ""); err != nil {
			return nil, err
		}
	}
	return selected, nil
}

// ValidateDependencies checks that every dependency exists and there is no cycle
func (r *Registry) ValidateDependencies() error {
	_, err := r.DependencyOrder()
	return err
}

// Dependents returns the analyses that depend directly on id
func (r *Registry) Dependents(id string) []Analysis {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Analysis, 0)
	for _, other := range r.order {
		for _, dep := range r.analyses[other].Dependencies() {
			if dep == id {
				out = append(out, r.analyses[other])
				break
			}
		}
	}
	return out
}
