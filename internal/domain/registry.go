package domain

import (
	"errors"
	"fmt"
	"sync"
)

// RequirementRegistry maps logical route keys to their price specs. It is
// populated once at startup and validated against the route table before the
// server starts serving, so a lookup miss at request time never happens in a
// correctly configured process.
type RequirementRegistry struct {
	mu    sync.RWMutex
	specs map[string]EndpointPriceSpec
}

// NewRequirementRegistry creates an empty registry.
func NewRequirementRegistry() *RequirementRegistry {
	return &RequirementRegistry{
		mu:    sync.RWMutex{},
		specs: make(map[string]EndpointPriceSpec),
	}
}

// Register adds a price spec for a route key.
func (r *RequirementRegistry) Register(spec EndpointPriceSpec) error {
	if spec.RouteKey == "" {
		return errors.New("route key cannot be empty")
	}

	if spec.BaseUSDPrice.IsNegative() {
		return fmt.Errorf("base USD price for %s cannot be negative", spec.RouteKey)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.specs[spec.RouteKey] = spec
	return nil
}

// Lookup retrieves the price spec for a route key.
func (r *RequirementRegistry) Lookup(routeKey string) (EndpointPriceSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, exists := r.specs[routeKey]
	if !exists {
		return EndpointPriceSpec{}, fmt.Errorf("%w: %s", ErrRouteNotFound, routeKey)
	}

	return spec, nil
}

// Specs returns a copy of every registered spec, for the discovery document.
func (r *RequirementRegistry) Specs() []EndpointPriceSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EndpointPriceSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	return out
}

// Validate checks that every exposed route key has a registry entry,
// including free ones. A miss is a configuration error and fatal at startup.
func (r *RequirementRegistry) Validate(routeKeys []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, key := range routeKeys {
		if _, exists := r.specs[key]; !exists {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("routes exposed without a registry entry: %v", missing)
	}

	return nil
}
