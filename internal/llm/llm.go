package llm

import (
	"context"
	"fmt"

	"github.com/comigor/evo-go/internal/config"
	"github.com/sashabaranov/go-openai"
)

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(config)
}

// NewGenerator builds the Generator for the configured provider.
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAIGenerator(NewClient(cfg), cfg), nil
	case config.ProviderGemini, config.ProviderOllama, config.ProviderAnthropic:
		return NewLangchainGenerator(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
