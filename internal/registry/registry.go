// Package registry maps (host, port, role) names to live component
// handles, so peers and node wrappers can look each other up by URI.
package registry

import (
	"fmt"
	"sync"

	"github.com/knotex/knotex/pkg/types"
)

// Roles a node registers under its address.
const (
	RoleNode       = "node"
	RoleLogic      = "logic"
	RoleListener   = "listener"
	RoleClients    = "clients"
	RoleConnectors = "connectors"
)

// Name is the registry key: a node address plus the role of the
// component being named.
type Name struct {
	Host string
	Port int
	Role string
}

// Via builds the name of a role under a node address.
func Via(addr types.NetAddr, role string) Name {
	return Name{Host: addr.Host, Port: addr.Port, Role: role}
}

func (n Name) String() string {
	return fmt.Sprintf("%s:%d/%s", n.Host, n.Port, n.Role)
}

// Registry is a concurrent name table. Entries are written only at
// component birth and death.
type Registry struct {
	mu      sync.RWMutex
	entries map[Name]any
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Name]any)}
}

// Register binds a name to a handle. Registering an already-bound name
// fails; the caller decides whether that means "already running".
func (r *Registry) Register(name Name, handle any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("registry: %s already registered", name)
	}
	r.entries[name] = handle
	return nil
}

// Lookup resolves a name to its handle.
func (r *Registry) Lookup(name Name) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[name]
	return h, ok
}

// Unregister removes a name. Removing an absent name is a no-op so that
// teardown paths can run unconditionally.
func (r *Registry) Unregister(name Name) {
	r.mu.Lock()
	delete(r.entries, name)
	r.mu.Unlock()
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
