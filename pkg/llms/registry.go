package llms

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Factory builds a Provider from resolved settings.
type Factory func(cfg ProviderConfig) (Provider, error)

// ProviderConfig carries the resolved settings a factory needs.
type ProviderConfig struct {
	Name        string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Registry maps provider names to factories. The zero value is not
// usable; create one with NewRegistry, which pre-registers the built-in
// providers.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in providers
// ("openai", "anthropic") registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("openai", func(cfg ProviderConfig) (Provider, error) {
		var opts []OpenAIOption
		if cfg.BaseURL != "" {
			opts = append(opts, WithOpenAIBaseURL(cfg.BaseURL))
		}
		if cfg.Temperature > 0 {
			opts = append(opts, WithOpenAITemperature(cfg.Temperature))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, WithOpenAIMaxTokens(cfg.MaxTokens))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithOpenAITimeout(cfg.Timeout))
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, opts...), nil
	})
	r.Register("anthropic", func(cfg ProviderConfig) (Provider, error) {
		var opts []AnthropicOption
		if cfg.BaseURL != "" {
			opts = append(opts, WithAnthropicBaseURL(cfg.BaseURL))
		}
		if cfg.Temperature > 0 {
			opts = append(opts, WithAnthropicTemperature(cfg.Temperature))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, WithAnthropicMaxTokens(cfg.MaxTokens))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithAnthropicTimeout(cfg.Timeout))
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, opts...), nil
	})
	return r
}

// Register installs a factory under the given name, replacing any
// existing registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
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

// Create builds a provider by name.
func (r *Registry) Create(cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q (known: %v)", cfg.Name, r.Names())
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm provider %q requires a model", cfg.Name)
	}
	return factory(cfg)
}

var defaultRegistry = NewRegistry()

// NewProvider builds a provider from the default registry.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	return defaultRegistry.Create(cfg)
}
