package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIInterpreter asks an OpenAI-compatible chat completion endpoint.
type OpenAIInterpreter struct {
	client openai.Client
	model  string
}

// NewOpenAIInterpreter creates the interpreter. baseURL may be empty.
func NewOpenAIInterpreter(apiKey, model, baseURL string) *OpenAIInterpreter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // the caller's deadline bounds the call
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIInterpreter{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *OpenAIInterpreter) Interpret(ctx context.Context, instructions, text string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
