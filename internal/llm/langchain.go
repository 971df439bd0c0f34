package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/comigor/evo-go/internal/config"
)

// LangchainGenerator serves the non-OpenAI providers through langchaingo.
type LangchainGenerator struct {
	llm          llms.Model
	systemPrompt string
}

// NewLangchainGenerator creates a generator for gemini, ollama or anthropic.
func NewLangchainGenerator(ctx context.Context, cfg config.LLMConfig) (*LangchainGenerator, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case config.ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key required")
		}
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create gemini model: %w", err)
		}

	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return newLangchainGenerator(model, cfg.SystemPrompt), nil
}

func newLangchainGenerator(model llms.Model, systemPrompt string) *LangchainGenerator {
	return &LangchainGenerator{llm: model, systemPrompt: systemPrompt}
}

// Generate performs one content-generation call.
func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (Response, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if g.systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, g.systemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := g.llm.GenerateContent(ctx, messages)
	if err != nil {
		return Response{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, nil
	}
	return Response{Text: resp.Choices[0].Content}, nil
}
