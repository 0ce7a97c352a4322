package provider

import "fmt"

// Registry holds all configured providers and allows lookup by provider
// name. It performs no auth logic itself.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers the given providers by name.
// Provider names must be unique; a later duplicate replaces an earlier one.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider)
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by name or an error if not registered.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", name)
	}
	return p, nil
}

// WebLogin returns the named provider if it supports browser logins.
func (r *Registry) WebLogin(name string) (WebLoginProvider, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	web, ok := p.(WebLoginProvider)
	if !ok {
		return nil, fmt.Errorf("oauth provider %s has no web login", name)
	}
	return web, nil
}
