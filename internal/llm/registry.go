package llm

import "sync"

// Credentials holds the bearer credentials for the three backend families.
// Each is independently optional; an empty value degrades that family to
// "unavailable" and the dispatcher falls back to simulation.
type Credentials struct {
	Anthropic string
	OpenAI    string
	XAI       string
}

// Registry holds the currently constructed provider set. Credentials can be
// swapped at runtime: rather than treating "restart" as a special case, the
// registry is rebuilt wholesale from the current credential set via Replace.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderID]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[ProviderID]Provider)}
}

// Replace swaps the full provider set atomically.
func (r *Registry) Replace(providers []Provider) {
	next := make(map[ProviderID]Provider, len(providers))
	for _, p := range providers {
		next[p.Name()] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = next
}

// Register adds or replaces a single provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Provider returns the provider for id, if one was constructed. A missing
// provider means the family's credential is absent - that is an expected
// "unavailable" condition, not an error.
func (r *Registry) Provider(id ProviderID) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Available returns the ids of all constructed providers.
func (r *Registry) Available() []ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}
