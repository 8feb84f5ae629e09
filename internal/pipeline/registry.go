package pipeline

import (
	"fmt"
	"sync"
)

// Registry maps strategy names to constructed pipeline instances. It is
// populated once at startup, before any consumer runs, and is read-only
// in steady state.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]Pipeline
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]Pipeline)}
}

// Register adds a pipeline under its strategy name. Registering a name
// twice is rejected rather than silently overwritten.
func (r *Registry) Register(p Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.pipelines[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateStrategy, name)
	}
	r.pipelines[name] = p
	return nil
}

// Get returns the pipeline registered under the strategy name.
func (r *Registry) Get(strategy string) (Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pipelines[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, strategy)
	}
	return p, nil
}

// ResolveAll resolves every strategy name or fails without returning any
// pipeline, so a request naming an unknown strategy fails wholly before
// any file is processed.
func (r *Registry) ResolveAll(strategies []string) ([]Pipeline, error) {
	out := make([]Pipeline, 0, len(strategies))
	for _, name := range strategies {
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Names returns the registered strategy names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	return names
}
