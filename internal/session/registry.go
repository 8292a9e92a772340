package session

import (
	"sort"
	"sync"
)

// DefaultTenant is the registry key used when the engine runs single-tenant.
// Sessions always live in the keyed registry so the code path is identical
// whether one tenant or many are registered.
const DefaultTenant = "default"

// Registry holds one Manager per tenant.
type Registry struct {
	mu         sync.Mutex
	managers   map[string]*Manager
	newManager func(tenant string) *Manager
}

// NewRegistry creates a registry. newManager is called lazily the first
// time a tenant is requested.
func NewRegistry(newManager func(tenant string) *Manager) *Registry {
	return &Registry{
		managers:   make(map[string]*Manager),
		newManager: newManager,
	}
}

// Get returns the Manager for a tenant, creating it on first use.
func (r *Registry) Get(tenant string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[tenant]; ok {
		return m
	}

	m := r.newManager(tenant)
	r.managers[tenant] = m

	return m
}

// Tenants returns the registered tenant keys in sorted order.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.managers))
	for k := range r.managers {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
