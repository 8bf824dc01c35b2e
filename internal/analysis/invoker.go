// Package analysis runs specialist and evaluator passes over triaged
// instrument bundles.
package analysis

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Invoker executes one analysis invocation: a system prompt plus a user
// prompt built from a bundle, returning the model's raw text output.
// Invocation failures are caught per call by the pools, never propagated
// as a pipeline fault.
type Invoker interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIInvoker implements Invoker against an OpenAI-compatible endpoint.
type OpenAIInvoker struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// OpenAIOptions for creating an OpenAIInvoker.
type OpenAIOptions struct {
	APIKey      string
	BaseURL     string // optional, for OpenAI-compatible providers
	Model       string // default gpt-4o-mini
	Temperature float32
	MaxTokens   int // default 1024
}

// NewOpenAIInvoker creates an OpenAI-backed invoker.
func NewOpenAIInvoker(opts OpenAIOptions) *OpenAIInvoker {
	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &OpenAIInvoker{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   maxTokens,
	}
}

// Invoke runs one chat completion and returns the first choice's content.
func (i *OpenAIInvoker) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       i.model,
		Temperature: i.temperature,
		MaxTokens:   i.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Verify interface compliance at compile time.
var _ Invoker = (*OpenAIInvoker)(nil)
