package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/scrypster/recall/internal/config"
)

// ErrNoProvider is returned when a request needs an LLM but none is
// configured. Callers degrade to deterministic fallbacks.
var ErrNoProvider = fmt.Errorf("no LLM provider configured")

// NormalizeModel maps loose model names from clients onto concrete
// provider model IDs. Unknown names pass through unchanged.
func NormalizeModel(model string) string {
	lower := strings.ToLower(strings.TrimSpace(model))

	if lower == "fallback" {
		return "fallback"
	}
	if strings.Contains(lower, "claude-sonnet-4") {
		return "claude-sonnet-4-5-20250929"
	}
	if strings.Contains(lower, "claude") {
		switch {
		case strings.Contains(lower, "opus"):
			return "claude-3-opus-20240229"
		case strings.Contains(lower, "sonnet"):
			return "claude-3-sonnet-20240229"
		case strings.Contains(lower, "haiku"):
			return "claude-3-haiku-20240307"
		default:
			// Bare "claude" gets the fastest model.
			return "claude-3-haiku-20240307"
		}
	}
	return model
}

// Router resolves a model name to a provider client. Clients are created
// lazily and cached so each provider keeps one circuit breaker.
type Router struct {
	cfg   config.LLMConfig
	mu    sync.Mutex
	cache map[string]TextGenerator
}

// NewRouter creates a router over the configured providers.
func NewRouter(cfg config.LLMConfig) *Router {
	return &Router{cfg: cfg, cache: make(map[string]TextGenerator)}
}

// Available reports whether any provider can serve completions.
func (r *Router) Available() bool {
	return r.cfg.OpenAIAPIKey != "" || r.cfg.AnthropicAPIKey != "" || r.cfg.Provider == "ollama"
}

// ForModel returns the client for a normalized model name. An empty or
// "fallback" model resolves to the default provider; ErrNoProvider means
// the caller should use its deterministic fallback instead.
func (r *Router) ForModel(model string) (TextGenerator, error) {
	model = NormalizeModel(model)
	if model == "" || model == "fallback" {
		return r.defaultGenerator()
	}

	switch {
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1"):
		if r.cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: OpenAI API key not configured", ErrNoProvider)
		}
		return r.cached("openai/"+model, func() TextGenerator {
			return NewOpenAIClient(OpenAIConfig{APIKey: r.cfg.OpenAIAPIKey, Model: model})
		}), nil
	case strings.HasPrefix(model, "claude"):
		if r.cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: Anthropic API key not configured", ErrNoProvider)
		}
		return r.cached("anthropic/"+model, func() TextGenerator {
			return NewAnthropicClient(AnthropicConfig{APIKey: r.cfg.AnthropicAPIKey, Model: model})
		}), nil
	case r.cfg.Provider == "ollama":
		return r.cached("ollama/"+model, func() TextGenerator {
			return NewOllamaClient(OllamaConfig{BaseURL: r.cfg.OllamaURL, Model: model})
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model: %q", model)
	}
}

func (r *Router) defaultGenerator() (TextGenerator, error) {
	switch r.cfg.Provider {
	case "openai":
		if r.cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: OpenAI API key not configured", ErrNoProvider)
		}
		return r.cached("openai/"+r.cfg.OpenAIModel, func() TextGenerator {
			return NewOpenAIClient(OpenAIConfig{APIKey: r.cfg.OpenAIAPIKey, Model: r.cfg.OpenAIModel})
		}), nil
	case "anthropic":
		if r.cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: Anthropic API key not configured", ErrNoProvider)
		}
		return r.cached("anthropic/"+r.cfg.AnthropicModel, func() TextGenerator {
			return NewAnthropicClient(AnthropicConfig{APIKey: r.cfg.AnthropicAPIKey, Model: r.cfg.AnthropicModel})
		}), nil
	case "ollama":
		return r.cached("ollama/"+r.cfg.OllamaModel, func() TextGenerator {
			return NewOllamaClient(OllamaConfig{BaseURL: r.cfg.OllamaURL, Model: r.cfg.OllamaModel})
		}), nil
	default:
		return nil, ErrNoProvider
	}
}

func (r *Router) cached(key string, build func() TextGenerator) TextGenerator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen, ok := r.cache[key]; ok {
		return gen
	}
	gen := build()
	r.cache[key] = gen
	return gen
}

// AvailableModels lists the models clients may request given the
// configured API keys. With no provider at all, only "fallback" remains.
func (r *Router) AvailableModels() []string {
	var models []string
	if r.cfg.OpenAIAPIKey != "" {
		models = append(models, "gpt-4o-mini", "gpt-4o", "gpt-4-turbo")
	}
	if r.cfg.AnthropicAPIKey != "" {
		models = append(models,
			"claude-3-opus-20240229",
			"claude-3-sonnet-20240229",
			"claude-3-haiku-20240307",
		)
	}
	if r.cfg.Provider == "ollama" {
		models = append(models, r.cfg.OllamaModel)
	}
	if len(models) == 0 {
		models = append(models, "fallback")
	}
	return models
}
