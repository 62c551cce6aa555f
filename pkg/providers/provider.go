// Package providers maps normalized funnel events onto the outbound requests
// of each downstream integration.
package providers

import (
	"context"
	"errors"
	"sort"

	"github.com/leadpop/funnelrelay/pkg/core"
)

// Provider is a downstream integration that receives funnel events.
type Provider interface {
	Key() core.ProviderKey
	// Configured reports whether every required credential is present.
	Configured() bool
	// Deliver sends the event through sender. A nil outcome is paired with the
	// reason the provider skipped the event.
	Deliver(ctx context.Context, event core.NormalizedEvent, sender Sender) (*core.Outcome, core.SkipReason)
}

// Registry holds the providers an event is fanned out to.
type Registry struct {
	providers map[core.ProviderKey]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[core.ProviderKey]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) error {
	if r == nil {
		return errors.New("registry is nil")
	}
	if provider == nil {
		return errors.New("provider is nil")
	}
	key := provider.Key()
	if key == "" {
		return errors.New("provider key is required")
	}
	if _, exists := r.providers[key]; exists {
		return errors.New("provider already registered")
	}
	r.providers[key] = provider
	return nil
}

// Provider returns a provider by key.
func (r *Registry) Provider(key core.ProviderKey) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	provider, ok := r.providers[key]
	return provider, ok
}

// Providers returns all registered providers in key order.
func (r *Registry) Providers() []Provider {
	if r == nil {
		return nil
	}
	out := make([]Provider, 0, len(r.providers))
	for _, provider := range r.providers {
		out = append(out, provider)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}

// DefaultRegistry registers the three built-in providers. Providers whose
// credentials are missing are still registered and report not configured.
func DefaultRegistry(cfg core.ProvidersConfig) *Registry {
	registry := NewRegistry()
	_ = registry.Register(NewAdConversion(cfg.ActiveAdConversion()))
	_ = registry.Register(NewWebAnalytics(cfg.ActiveWebAnalytics()))
	_ = registry.Register(NewCrmContact(cfg.ActiveCrmContact()))
	return registry
}

func transportFailure(err error) *core.Outcome {
	return core.Failed(err.Error())
}
