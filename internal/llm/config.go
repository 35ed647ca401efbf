// Package llm provides centralized LLM configuration and client abstractions.
// Skill extraction and verification talk to the AI backend only through Client.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: username extraction, skill lists
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: structured skill matching
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenRouter is any OpenAI-compatible chat completions endpoint (OpenRouter by default)
	ProviderOpenRouter Provider = "openrouter"
)

// DefaultOpenRouterBaseURL is the OpenRouter API root
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string

	// BaseURL overrides the chat completions root for OpenAI-compatible providers.
	BaseURL string
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// DefaultOpenRouterConfig returns a configuration using deepseek-chat for every tier
func DefaultOpenRouterConfig() *Config {
	return &Config{
		Provider: ProviderOpenRouter,
		Models: map[ModelTier]string{
			TierLite:     "deepseek/deepseek-chat",
			TierStandard: "deepseek/deepseek-chat",
			TierAdvanced: "deepseek/deepseek-chat",
		},
		BaseURL: DefaultOpenRouterBaseURL,
		Referer: "http://localhost:8080",
		Title:   "Skill Verifier",
	}
}

// ConfigFor returns the default configuration for a provider name, falling back to Gemini.
func ConfigFor(provider string) *Config {
	if Provider(provider) == ProviderOpenRouter {
		return DefaultOpenRouterConfig()
	}
	return DefaultGeminiConfig()
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := *c
	newConfig.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return &newConfig
}

// WithAllModels returns a new Config that uses model for every tier
func (c *Config) WithAllModels(model string) *Config {
	out := c
	for _, tier := range []ModelTier{TierLite, TierStandard, TierAdvanced} {
		out = out.WithModel(tier, model)
	}
	return out
}
