package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/heravelli/tollgate/internal/nlp"
	"github.com/heravelli/tollgate/internal/nlp/anyllm"
	"github.com/heravelli/tollgate/internal/nlp/gateway"
	"github.com/heravelli/tollgate/internal/nlp/openai"
)

// ErrProviderNotRegistered is returned by CreateNLP when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// NLPFactory builds an nlp.Provider from its configuration block.
type NLPFactory func(NLPConfig) (nlp.Provider, error)

// Registry maps NLP provider names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	nlp map[string]NLPFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nlp: make(map[string]NLPFactory),
	}
}

// RegisterNLP registers an NLP provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterNLP(name string, factory NLPFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nlp[name] = factory
}

// CreateNLP instantiates an NLP provider using the factory registered under
// cfg.Provider. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateNLP(cfg NLPConfig) (nlp.Provider, error) {
	r.mu.RLock()
	factory, ok := r.nlp[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: nlp/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

// DefaultRegistry returns a [Registry] with the built-in NLP backends
// registered: "gateway", "openai", and the any-llm-go provider names listed
// in [ValidNLPProviders].
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterNLP("gateway", func(cfg NLPConfig) (nlp.Provider, error) {
		var opts []gateway.Option
		if cfg.APIKey != "" {
			opts = append(opts, gateway.WithAPIKey(cfg.APIKey))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, gateway.WithMaxTokens(cfg.MaxTokens))
		}
		return gateway.New(cfg.BaseURL, cfg.Model, opts...)
	})

	r.RegisterNLP("openai", func(cfg NLPConfig) (nlp.Provider, error) {
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, openai.WithMaxTokens(cfg.MaxTokens))
		}
		return openai.New(cfg.APIKey, cfg.Model, opts...)
	})

	for _, name := range []string{"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		r.RegisterNLP(name, func(cfg NLPConfig) (nlp.Provider, error) {
			var opts []anyllmlib.Option
			if cfg.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
			}
			if cfg.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
			}
			return anyllm.New(name, cfg.Model, opts...)
		})
	}

	return r
}
