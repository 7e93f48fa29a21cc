package git

import (
	"fmt"
	"path/filepath"
	"sync"
)

// OpenFunc opens a Client for a repository path.
type OpenFunc func(path string) (Client, error)

// Registry hands out one Client per repository path. Clients are created
// on first use and kept for the life of the registry.
type Registry struct {
	mu      sync.Mutex
	open    OpenFunc
	clients map[string]Client
}

// NewRegistry returns a Registry that opens repositories with Open.
func NewRegistry() *Registry {
	return NewRegistryWith(func(path string) (Client, error) {
		return Open(path)
	})
}

// NewRegistryWith returns a Registry that opens repositories with open.
func NewRegistryWith(open OpenFunc) *Registry {
	return &Registry{open: open, clients: make(map[string]Client)}
}

func registryKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Get returns the Client for path, opening it if needed.
func (r *Registry) Get(path string) (Client, error) {
	if path == "" {
		return nil, fmt.Errorf("repository path is required")
	}
	key := registryKey(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	c, err := r.open(key)
	if err != nil {
		return nil, err
	}
	r.clients[key] = c
	return c, nil
}

// Register binds a Client to path, replacing any existing one.
func (r *Registry) Register(path string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[registryKey(path)] = c
}

// Len returns the number of open clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
