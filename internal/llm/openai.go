package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/evo-go/internal/config"
	"github.com/comigor/evo-go/internal/logger"
)

// OpenAIGenerator sends each prompt as a single-turn chat completion.
type OpenAIGenerator struct {
	client       Client
	model        string
	systemPrompt string
}

// NewOpenAIGenerator wraps an OpenAI-compatible client.
func NewOpenAIGenerator(client Client, cfg config.LLMConfig) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:       client,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
	}
}

// Generate performs one completion call. A reply with no choices is a
// successful call with an empty Response, not an error.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if g.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		logger.L.Warn("LLM response had no choices", "model", g.model)
		return Response{}, nil
	}
	return Response{Text: resp.Choices[0].Message.Content}, nil
}
