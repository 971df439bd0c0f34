package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is minimal subset of openai.Client used by the generator; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Response is the outcome of a single successful generation call.
// Text is empty when the upstream answered without usable content.
type Response struct {
	Text string
}

// Empty reports whether the upstream produced no usable text.
func (r Response) Empty() bool {
	return r.Text == ""
}

// Generator turns a prompt into assistant text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (Response, error) {
	return f(ctx, prompt)
}
