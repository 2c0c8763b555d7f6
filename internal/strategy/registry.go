package strategy

import (
	"fmt"
	"sort"

	"github.com/newthinker/tradesim/internal/core"
)

// Registry maps strategy names to instances. It is built once and passed to
// whatever needs to resolve a strategy; there is no package-level registry.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds a registry, failing on duplicate names.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		if _, ok := r.strategies[s.Name()]; ok {
			return nil, fmt.Errorf("duplicate strategy name %q", s.Name())
		}
		r.strategies[s.Name()] = s
	}
	return r, nil
}

// Get retrieves a strategy by name
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound,
			fmt.Errorf("strategy %q not registered, available: %v", name, r.Names()))
	}
	return s, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configure initializes each named strategy with its config. Unknown names
// are an error; strategies without a config keep their defaults.
func (r *Registry) Configure(configs map[string]Config) error {
	for name, cfg := range configs {
		s, err := r.Get(name)
		if err != nil {
			return err
		}
		if err := s.Init(cfg); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("strategy %s: %w", name, err))
		}
	}
	return nil
}
