package openai

import (
	"context"
	"math"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"pdfrag/internal/domain"
)

// DefaultChatModel is the small OpenAI chat model.
const DefaultChatModel = goopenai.GPT4oMini

// GeneratorConfig configures the chat completion adapter.
type GeneratorConfig struct {
	Config
	Temperature float32
}

// Generator implements domain.GenerationProvider on the chat completions API.
type Generator struct {
	client      *goopenai.Client
	model       string
	temperature float32
	breaker     *gobreaker.CircuitBreaker
}

// NewGenerator creates a generation adapter from cfg.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	client, err := newClient(cfg.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	return &Generator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		breaker:     newBreaker("openai-chat"),
	}, nil
}

// Model returns the chat model name.
func (g *Generator) Model() string { return g.model }

// Complete sends prompt as a single user message and returns the first choice.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := g.temperature
	if temperature == 0 {
		// the request field is omitempty; a zero would fall back to the API default of 1
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := execute(g.breaker, func() (goopenai.ChatCompletionResponse, error) {
		resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: temperature,
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return resp, wrapError("chat completion failed", err)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &domain.ProviderError{Provider: providerName, Message: "chat completion returned no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}
