package llm

import (
	"context"
	"errors"
	"math"

	"github.com/sashabaranov/go-openai"

	"memcat/internal/costtracker"
	"memcat/internal/models"
	"memcat/pkg/categorizer"
)

// chatCompleter is the part of *openai.Client the adapter uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to the OpenAI chat API or any server speaking it.
type OpenAIClient struct {
	client  chatCompleter
	model   string
	tracker costtracker.Tracker
}

// NewOpenAIClient builds a client. An empty baseURL uses api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string, tracker costtracker.Tracker) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if tracker == nil {
		tracker = costtracker.Noop()
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model, tracker: tracker}
}

func (c *OpenAIClient) Name() string  { return "openai" }
func (c *OpenAIClient) Model() string { return c.model }

// GenerateResponse implements categorizer.LLMClient.
func (c *OpenAIClient) GenerateResponse(ctx context.Context, messages []categorizer.Message, format categorizer.ResponseFormat, temperature float64) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(temperature),
	}
	// go-openai drops a zero temperature from the request body, which makes
	// the server use its default of 1.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if format.Type == categorizer.JSONObject.Type {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	recordUsage(ctx, c.tracker, c.Name(), c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func recordUsage(ctx context.Context, tracker costtracker.Tracker, provider, model string, in, out int) {
	if in == 0 && out == 0 {
		return
	}
	err := tracker.Record(ctx, costtracker.Usage{
		Provider:     provider,
		Model:        model,
		Operation:    models.ServiceTypeCategorization,
		InputTokens:  in,
		OutputTokens: out,
	})
	if err != nil {
		logger.Errorf("Failed to record AI usage log for %s: %v", provider, err)
	}
}
