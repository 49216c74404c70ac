package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/membench/membench/internal/llm"
)

// Factory builds an adapter instance from provider-specific parameters.
type Factory func(params map[string]any) (Adapter, error)

// Registry maps provider names to adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a provider name, replacing any existing one.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates the named adapter with the given parameters.
func (r *Registry) Create(name string, params map[string]any) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", name, r.Names())
	}
	return factory(params)
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in adapters. The
// embedder backs the embedding adapter; pass nil to register only adapters
// that need no model access.
func DefaultRegistry(embedder llm.Embedder) *Registry {
	r := NewRegistry()
	r.Register("naive", NewNaiveAdapter)
	if embedder != nil {
		r.Register("embedding", func(params map[string]any) (Adapter, error) {
			return NewEmbeddingAdapter(embedder, params)
		})
	}
	return r
}
