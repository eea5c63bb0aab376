package llm

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/logging"
)

// ProviderError is a failure reported by an LLM provider. Code is the HTTP
// status when the provider answered at all.
type ProviderError struct {
	Provider string
	Message  string
	Code     int
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Temporary reports whether retrying later may succeed: throttling or a
// server-side failure.
func (e *ProviderError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Registry maps model names to provider clients. A name resolves to the
// provider registered under it, then to the provider it aliases, then to
// the fallback provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Client
	aliases   map[string]string
	fallback  string
	log       *logging.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		providers: map[string]Client{},
		aliases:   map[string]string{},
		log:       log.Sub("llm"),
	}
}

// Register adds or replaces the provider called name.
func (r *Registry) Register(name string, c Client) {
	r.mu.Lock()
	r.providers[name] = c
	r.mu.Unlock()
	r.log.Debug().Str("provider", name).Msg("provider registered")
}

// Alias routes model to provider. Later aliases for the same model win.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback names the provider used for models nothing else matches.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the client serving model.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range [...]string{model, r.aliases[model], r.fallback} {
		if c, ok := r.providers[name]; ok && name != "" {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// ResolveWithKey resolves model and binds apiKey to keyed providers. With
// an empty apiKey the provider's configured key is used; ErrMissingAPIKey
// is returned when there is none.
func (r *Registry) ResolveWithKey(model, apiKey string) (Client, error) {
	c, err := r.Resolve(model)
	if err != nil {
		return nil, err
	}
	kc, keyed := c.(KeyedClient)
	switch {
	case !keyed:
		return c, nil
	case apiKey != "":
		return kc.WithAPIKey(apiKey), nil
	case kc.HasAPIKey():
		return c, nil
	default:
		return nil, ErrMissingAPIKey
	}
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.providers))
}

// NewRegistryFromConfig registers groq, which every selectable model
// aliases to, plus ollama when it is the configured provider. Ollama then
// takes over the aliases and the fallback.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	primary := cfg.Provider
	if primary == "" {
		primary = "groq"
	}

	groqURL := ""
	if primary == "groq" {
		groqURL = cfg.BaseURL
	}
	reg.Register("groq", NewGroqClient(groqURL, cfg.APIKey, timeout))
	if primary == "ollama" {
		reg.Register("ollama", NewOllamaAPIClient(cfg.BaseURL, cfg.OllamaModel, timeout))
	} else {
		primary = "groq"
	}

	for _, m := range domain.Models {
		reg.Alias(string(m), primary)
	}
	reg.SetFallback(primary)
	return reg
}
