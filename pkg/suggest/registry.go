package suggest

import (
	"fmt"
	"sync"
)

// Registry is the set of providers resolved at startup. A capability either is or
// isn't registered; nothing downstream branches on the concrete type.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	names     map[Source]struct{}
}

// NewRegistry returns a registry holding ps.
func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{names: make(map[Source]struct{})}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds p. Registering two providers under the same name is an error.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("register: nil provider")
	}
	if !p.Name().Valid() {
		return fmt.Errorf("register: unknown source %q", p.Name())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.names[p.Name()]; dup {
		return fmt.Errorf("register: provider %q already registered", p.Name())
	}
	r.names[p.Name()] = struct{}{}
	r.providers = append(r.providers, p)
	return nil
}

// Tier returns the providers registered for t in registration order.
func (r *Registry) Tier(t Tier) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, p := range r.providers {
		if p.Tier() == t {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name Source) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Names lists registered provider names in registration order.
func (r *Registry) Names() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.Name())
	}
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
